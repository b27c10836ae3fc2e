package embeddings

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/agentloop/internal/config"
)

func cosine(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

func TestHashProvider_Deterministic(t *testing.T) {
	p := NewHashProvider(0)
	assert.Equal(t, DefaultHashDimension, p.Dimension())

	ctx := context.Background()
	a, err := p.EmbedQuery(ctx, "read the config file")
	require.NoError(t, err)
	b, err := p.EmbedQuery(ctx, "read the config file")
	require.NoError(t, err)
	assert.Equal(t, a, b)

	var norm float64
	for _, v := range a {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)
}

func TestHashProvider_Similarity(t *testing.T) {
	p := NewHashProvider(256)
	ctx := context.Background()

	docs, err := p.EmbedDocuments(ctx, []string{
		"list files in the project directory",
		"weather forecast for tomorrow",
	})
	require.NoError(t, err)
	q, err := p.EmbedQuery(ctx, "list the project files")
	require.NoError(t, err)

	assert.Greater(t, cosine(q, docs[0]), cosine(q, docs[1]))
}

func TestHashProvider_EdgeCases(t *testing.T) {
	p := NewHashProvider(8)
	ctx := context.Background()

	_, err := p.EmbedQuery(ctx, "")
	assert.ErrorIs(t, err, ErrEmptyInput)
	_, err = p.EmbedDocuments(ctx, nil)
	assert.ErrorIs(t, err, ErrEmptyInput)

	v, err := p.EmbedQuery(ctx, "!!!")
	require.NoError(t, err)
	assert.Equal(t, float32(1), v[0])

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = p.EmbedQuery(cancelled, "x")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewProvider(t *testing.T) {
	p, err := NewProvider(config.EmbeddingsConfig{Provider: "hash", Dimension: 16})
	require.NoError(t, err)
	assert.Equal(t, 16, p.Dimension())
	assert.NoError(t, p.Close())

	_, err = NewProvider(config.EmbeddingsConfig{Provider: "tei"})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewProvider(config.EmbeddingsConfig{Provider: "openai", Model: "text-embedding-3-small"})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
