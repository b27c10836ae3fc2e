package vectorstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/agentloop/internal/embeddings"
)

func newTestStore(t *testing.T, path string) *ChromemStore {
	t.Helper()
	s, err := NewChromemStore(ChromemConfig{Path: path}, embeddings.NewHashProvider(64), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestChromemStore_AddAndSearch(t *testing.T) {
	s := newTestStore(t, "")
	ctx := context.Background()

	ids, err := s.AddDocuments(ctx, "notes", []Document{
		{ID: "a", Content: "deploy the service to production", Metadata: map[string]string{"session_id": "s1"}},
		{ID: "b", Content: "buy milk and eggs", Metadata: map[string]string{"session_id": "s1"}},
		{ID: "c", Content: "deploy the service to staging", Metadata: map[string]string{"session_id": "s2"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids)

	results, err := s.Search(ctx, "notes", "deploy the service", 10, map[string]string{"session_id": "s1"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].ID)
	assert.LessOrEqual(t, results[0].Distance, results[1].Distance)
	assert.GreaterOrEqual(t, results[0].Distance, 0.0)
	assert.Equal(t, "s1", results[0].Metadata["session_id"])
}

func TestChromemStore_EmptyCollection(t *testing.T) {
	s := newTestStore(t, "")

	results, err := s.Search(context.Background(), "empty", "anything", 5, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestChromemStore_UpsertAndDelete(t *testing.T) {
	s := newTestStore(t, "")
	ctx := context.Background()

	_, err := s.AddDocuments(ctx, "tasks", []Document{{ID: "t1", Content: "first"}})
	require.NoError(t, err)
	_, err = s.AddDocuments(ctx, "tasks", []Document{{ID: "t1", Content: "second", Metadata: map[string]string{"status": "done"}}})
	require.NoError(t, err)

	n, err := s.Count(ctx, "tasks")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	doc, err := s.Get(ctx, "tasks", "t1")
	require.NoError(t, err)
	assert.Equal(t, "second", doc.Content)
	assert.Equal(t, "done", doc.Metadata["status"])

	require.NoError(t, s.Delete(ctx, "tasks", "t1"))
	_, err = s.Get(ctx, "tasks", "t1")
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestChromemStore_Persistence(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s := newTestStore(t, dir)
	_, err := s.AddDocuments(ctx, "conversations", []Document{{ID: "m1", Content: "hello there"}})
	require.NoError(t, err)

	reopened := newTestStore(t, dir)
	n, err := reopened.Count(ctx, "conversations")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestChromemStore_Validation(t *testing.T) {
	s := newTestStore(t, "")
	ctx := context.Background()

	_, err := s.AddDocuments(ctx, "notes", nil)
	assert.ErrorIs(t, err, ErrEmptyDocuments)

	_, err = s.AddDocuments(ctx, "Bad-Name", []Document{{ID: "x", Content: "x"}})
	assert.ErrorIs(t, err, ErrInvalidCollectionName)

	_, err = s.AddDocuments(ctx, "notes", []Document{{Content: "no id"}})
	assert.Error(t, err)

	_, err = s.Search(ctx, "notes", "", 1, nil)
	assert.Error(t, err)

	_, err = s.Search(ctx, "notes", "x", 0, nil)
	assert.Error(t, err)

	_, err = NewChromemStore(ChromemConfig{}, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
