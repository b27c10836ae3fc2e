// Package vectorstore stores text documents with embeddings and answers
// similarity queries over named collections.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

var (
	ErrInvalidConfig         = errors.New("invalid configuration")
	ErrEmptyDocuments        = errors.New("empty or nil documents")
	ErrEmbeddingFailed       = errors.New("failed to generate embeddings")
	ErrInvalidCollectionName = errors.New("invalid collection name")
	ErrDocumentNotFound      = errors.New("document not found")
)

// Embedder generates vectors for documents and queries.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Document is a unit of stored text. Metadata values are strings so they
// can be used as equality filters.
type Document struct {
	ID       string
	Content  string
	Metadata map[string]string
}

// SearchResult is a Document with its distance from the query.
// Distance is 1 - cosine similarity, so 0 is an exact match.
type SearchResult struct {
	ID       string
	Content  string
	Metadata map[string]string
	Distance float64
}

// Store is the vector storage contract used by the memory manager.
type Store interface {
	// AddDocuments upserts docs by ID and returns their IDs.
	AddDocuments(ctx context.Context, collection string, docs []Document) ([]string, error)
	// Search returns at most k documents matching filter, nearest first.
	Search(ctx context.Context, collection, query string, k int, filter map[string]string) ([]SearchResult, error)
	Get(ctx context.Context, collection, id string) (Document, error)
	Delete(ctx context.Context, collection string, ids ...string) error
	Count(ctx context.Context, collection string) (int, error)
	Close() error
}

var collectionNamePattern = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

// ValidateCollectionName accepts lowercase alphanumerics and underscores.
func ValidateCollectionName(name string) error {
	if !collectionNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidCollectionName, name)
	}
	return nil
}
