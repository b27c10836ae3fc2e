// Package memory stores conversation turns, tasks and interactions in the
// vector store and aggregates ranked context from them for planning.
package memory

import (
	"context"
	"errors"
)

// ErrSourceUnavailable wraps failures of a single memory source.
var ErrSourceUnavailable = errors.New("memory source unavailable")

// ItemType names the store an item came from.
type ItemType string

const (
	ItemConversation ItemType = "conversation"
	ItemTask         ItemType = "task"
	ItemInteraction  ItemType = "interaction"
)

// priority orders equal-distance items; lower wins.
func (t ItemType) priority() int {
	switch t {
	case ItemConversation:
		return 0
	case ItemInteraction:
		return 1
	case ItemTask:
		return 2
	}
	return 3
}

// ContextItem is one retrieved memory. Distance is non-negative and lower
// means more relevant.
type ContextItem struct {
	Type     ItemType          `json:"type"`
	Content  string            `json:"content"`
	Distance float64           `json:"distance"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Query is what a Source is asked for. Limit is already reduced to the
// source's sub-limit.
type Query struct {
	Text      string
	SessionID string
	TaskID    string
	Limit     int
}

// Source retrieves context items of one type.
type Source interface {
	Type() ItemType
	Retrieve(ctx context.Context, q Query) ([]ContextItem, error)
}

// ErrorContext describes a failed run for later learning.
type ErrorContext struct {
	Error     string `json:"error"`
	Phase     string `json:"phase"`
	Iteration int    `json:"iteration"`
	TaskID    string `json:"task_id,omitempty"`
}
