// Package embeddings turns text into vectors for the memory store.
package embeddings

import (
	"context"
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/agentloop/internal/config"
)

var (
	ErrInvalidConfig   = errors.New("invalid embeddings configuration")
	ErrEmptyInput      = errors.New("empty input")
	ErrEmbeddingFailed = errors.New("embedding failed")
)

// Embedder generates vectors for documents and queries.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Provider is an Embedder with a known dimension and resources to release.
type Provider interface {
	Embedder
	Dimension() int
	Close() error
}

// NewProvider builds the provider selected by cfg.
func NewProvider(cfg config.EmbeddingsConfig) (Provider, error) {
	switch cfg.Provider {
	case "fastembed", "":
		return NewFastEmbedProvider(FastEmbedConfig{
			Model:    cfg.Model,
			CacheDir: cfg.CacheDir,
		})
	case "openai":
		return NewOpenAIProvider(OpenAIConfig{
			BaseURL:   cfg.BaseURL,
			APIKey:    cfg.APIKey.Value(),
			Model:     cfg.Model,
			Dimension: cfg.Dimension,
		})
	case "hash":
		return NewHashProvider(cfg.Dimension), nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
}
