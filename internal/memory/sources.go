package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/agentloop/internal/vectorstore"
)

// collectionSource adapts one collection to Source, filtering on a single
// metadata key taken from the query.
type collectionSource struct {
	store      vectorstore.Store
	typ        ItemType
	collection string
	filterKey  string
}

func (s *collectionSource) Type() ItemType { return s.typ }

func (s *collectionSource) Retrieve(ctx context.Context, q Query) ([]ContextItem, error) {
	value := q.SessionID
	if s.filterKey == "task_id" {
		value = q.TaskID
	}
	if value == "" || q.Limit <= 0 || strings.TrimSpace(q.Text) == "" {
		return nil, nil
	}

	results, err := s.store.Search(ctx, s.collection, q.Text, q.Limit, map[string]string{s.filterKey: value})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSourceUnavailable, s.collection, err)
	}
	items := make([]ContextItem, len(results))
	for i, r := range results {
		items[i] = ContextItem{
			Type:     s.typ,
			Content:  r.Content,
			Distance: r.Distance,
			Metadata: r.Metadata,
		}
	}
	return items, nil
}

// ConversationSource searches the session's conversation turns.
func (m *Manager) ConversationSource() Source {
	return &collectionSource{store: m.store, typ: ItemConversation, collection: CollectionConversations, filterKey: "session_id"}
}

// TaskSource searches the task record for the query's task.
func (m *Manager) TaskSource() Source {
	return &collectionSource{store: m.store, typ: ItemTask, collection: CollectionTasks, filterKey: "task_id"}
}

// InteractionSource searches the session's past interactions and errors.
func (m *Manager) InteractionSource() Source {
	return &collectionSource{store: m.store, typ: ItemInteraction, collection: CollectionInteractions, filterKey: "session_id"}
}

// Sources returns the conversation, task and interaction sources in that
// order.
func (m *Manager) Sources() []Source {
	return []Source{m.ConversationSource(), m.TaskSource(), m.InteractionSource()}
}
