package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/agentloop/internal/secrets"
	"github.com/fyrsmithlabs/agentloop/internal/vectorstore"
)

// Collection names.
const (
	CollectionConversations = "conversations"
	CollectionTasks         = "tasks"
	CollectionInteractions  = "interactions"
)

// Task statuses.
const (
	TaskActive    = "active"
	TaskCompleted = "completed"
	TaskFailed    = "failed"
)

// ConversationTurn is one stored message.
type ConversationTurn struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// TaskRecord is the stored state of a task. It is keyed by TaskID.
type TaskRecord struct {
	TaskID      string         `json:"task_id"`
	SessionID   string         `json:"session_id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Plan        string         `json:"plan,omitempty"`
	ToolsUsed   []string       `json:"tools_used,omitempty"`
	Results     map[string]any `json:"results,omitempty"`
	Status      string         `json:"status"`
	Timestamp   time.Time      `json:"timestamp"`
}

// Interaction records one plan-execute-reflect cycle.
type Interaction struct {
	SessionID  string
	TaskID     string
	UserInput  string
	Plan       string
	ToolsUsed  []string
	Results    map[string]any
	Reflection string
}

// Stats reports document counts per collection.
type Stats struct {
	Conversations int `json:"conversations"`
	Tasks         int `json:"tasks"`
	Interactions  int `json:"interactions"`
	Total         int `json:"total"`
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithScrubber redacts secrets from content before it is stored.
func WithScrubber(s *secrets.Scrubber) ManagerOption {
	return func(m *Manager) { m.scrubber = s }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// Manager writes and reads the three memory collections.
type Manager struct {
	store    vectorstore.Store
	scrubber *secrets.Scrubber
	logger   *zap.Logger
	now      func() time.Time
}

// NewManager creates a Manager over store.
func NewManager(store vectorstore.Store, logger *zap.Logger, opts ...ManagerOption) (*Manager, error) {
	if store == nil {
		return nil, errors.New("memory: store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{store: store, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

func (m *Manager) scrub(s string) string {
	if m.scrubber == nil {
		return s
	}
	return m.scrubber.String(s)
}

func (m *Manager) timestamp() string {
	return m.now().UTC().Format(time.RFC3339Nano)
}

func (m *Manager) put(ctx context.Context, collection string, doc vectorstore.Document) error {
	if strings.TrimSpace(doc.Content) == "" {
		return fmt.Errorf("memory: refusing to store empty %s document", collection)
	}
	if _, err := m.store.AddDocuments(ctx, collection, []vectorstore.Document{doc}); err != nil {
		return fmt.Errorf("storing %s: %w", collection, err)
	}
	return nil
}

// StoreConversationTurn stores one message and returns its ID.
func (m *Manager) StoreConversationTurn(ctx context.Context, sessionID, role, content string) (string, error) {
	id := uuid.NewString()
	err := m.put(ctx, CollectionConversations, vectorstore.Document{
		ID:      id,
		Content: m.scrub(content),
		Metadata: map[string]string{
			"session_id": sessionID,
			"message_id": id,
			"role":       role,
			"timestamp":  m.timestamp(),
		},
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// StoreTaskMemory upserts rec by TaskID.
func (m *Manager) StoreTaskMemory(ctx context.Context, rec TaskRecord) error {
	if rec.TaskID == "" {
		return errors.New("memory: task id is required")
	}
	if rec.Status == "" {
		rec.Status = TaskActive
	}
	tools, _ := json.Marshal(nonNilStrings(rec.ToolsUsed))
	results, err := json.Marshal(nonNilMap(rec.Results))
	if err != nil {
		return fmt.Errorf("encoding task results: %w", err)
	}

	content := strings.TrimSpace(rec.Title + "\n" + rec.Description + "\n" + rec.Plan)
	return m.put(ctx, CollectionTasks, vectorstore.Document{
		ID:      rec.TaskID,
		Content: m.scrub(content),
		Metadata: map[string]string{
			"task_id":     rec.TaskID,
			"session_id":  rec.SessionID,
			"title":       m.scrub(rec.Title),
			"description": m.scrub(rec.Description),
			"plan":        m.scrub(rec.Plan),
			"tools_used":  string(tools),
			"results":     m.scrub(string(results)),
			"status":      rec.Status,
			"timestamp":   m.timestamp(),
		},
	})
}

// UpdateTaskStatus changes the status of a stored task, replacing its
// results when results is non-nil. It reports false for unknown tasks.
func (m *Manager) UpdateTaskStatus(ctx context.Context, taskID, status string, results map[string]any) (bool, error) {
	doc, err := m.store.Get(ctx, CollectionTasks, taskID)
	if errors.Is(err, vectorstore.ErrDocumentNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	doc.Metadata["status"] = status
	if results != nil {
		data, err := json.Marshal(results)
		if err != nil {
			return false, fmt.Errorf("encoding task results: %w", err)
		}
		doc.Metadata["results"] = m.scrub(string(data))
	}
	doc.Metadata["updated_at"] = m.timestamp()

	if err := m.put(ctx, CollectionTasks, doc); err != nil {
		return false, err
	}
	return true, nil
}

// StoreInteraction stores a cycle summary and returns its ID.
func (m *Manager) StoreInteraction(ctx context.Context, in Interaction) (string, error) {
	id := uuid.NewString()
	tools, _ := json.Marshal(nonNilStrings(in.ToolsUsed))
	results, err := json.Marshal(nonNilMap(in.Results))
	if err != nil {
		return "", fmt.Errorf("encoding interaction results: %w", err)
	}

	content := fmt.Sprintf("User: %s\nPlan: %s\nTools: %s\nReflection: %s",
		in.UserInput, in.Plan, strings.Join(in.ToolsUsed, ", "), in.Reflection)
	err = m.put(ctx, CollectionInteractions, vectorstore.Document{
		ID:      id,
		Content: m.scrub(content),
		Metadata: map[string]string{
			"type":           "interaction",
			"interaction_id": id,
			"session_id":     in.SessionID,
			"task_id":        in.TaskID,
			"user_input":     m.scrub(in.UserInput),
			"agent_plan":     m.scrub(in.Plan),
			"tools_executed": string(tools),
			"results":        m.scrub(string(results)),
			"reflection":     m.scrub(in.Reflection),
			"timestamp":      m.timestamp(),
		},
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// StoreError records a failed run in the interactions collection.
func (m *Manager) StoreError(ctx context.Context, sessionID string, ec ErrorContext) error {
	data, _ := json.Marshal(ec)
	msg := ec.Error
	if msg == "" {
		msg = "Unknown error"
	}
	id := uuid.NewString()
	return m.put(ctx, CollectionInteractions, vectorstore.Document{
		ID:      id,
		Content: m.scrub("Error: " + msg),
		Metadata: map[string]string{
			"type":          "error",
			"session_id":    sessionID,
			"task_id":       ec.TaskID,
			"error_context": m.scrub(string(data)),
			"timestamp":     m.timestamp(),
		},
	})
}

// ConversationHistory returns up to limit of the most recent turns for
// sessionID, oldest first.
func (m *Manager) ConversationHistory(ctx context.Context, sessionID string, limit int) ([]ConversationTurn, error) {
	docs, err := m.list(ctx, CollectionConversations, "session_id", sessionID)
	if err != nil {
		return nil, err
	}
	turns := make([]ConversationTurn, 0, len(docs))
	for _, d := range docs {
		turns = append(turns, ConversationTurn{
			ID:        d.ID,
			SessionID: d.Metadata["session_id"],
			Role:      d.Metadata["role"],
			Content:   d.Content,
			Timestamp: parseTime(d.Metadata["timestamp"]),
		})
	}
	sort.SliceStable(turns, func(i, j int) bool { return turns[i].Timestamp.Before(turns[j].Timestamp) })
	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	return turns, nil
}

// TaskHistory returns tasks for sessionID, newest first. An empty status
// matches every task.
func (m *Manager) TaskHistory(ctx context.Context, sessionID, status string, limit int) ([]TaskRecord, error) {
	docs, err := m.list(ctx, CollectionTasks, "session_id", sessionID)
	if err != nil {
		return nil, err
	}
	tasks := make([]TaskRecord, 0, len(docs))
	for _, d := range docs {
		md := d.Metadata
		if status != "" && md["status"] != status {
			continue
		}
		rec := TaskRecord{
			TaskID:      md["task_id"],
			SessionID:   md["session_id"],
			Title:       md["title"],
			Description: md["description"],
			Plan:        md["plan"],
			Status:      md["status"],
			Timestamp:   parseTime(md["timestamp"]),
		}
		_ = json.Unmarshal([]byte(md["tools_used"]), &rec.ToolsUsed)
		_ = json.Unmarshal([]byte(md["results"]), &rec.Results)
		tasks = append(tasks, rec)
	}
	sort.SliceStable(tasks, func(i, j int) bool { return tasks[i].Timestamp.After(tasks[j].Timestamp) })
	if limit > 0 && len(tasks) > limit {
		tasks = tasks[:limit]
	}
	return tasks, nil
}

// list returns every document whose metadata key equals value. chromem has
// no scan API, so this is a filtered query sized to the whole collection.
func (m *Manager) list(ctx context.Context, collection, key, value string) ([]vectorstore.SearchResult, error) {
	if value == "" {
		return nil, fmt.Errorf("memory: %s is required", key)
	}
	n, err := m.store.Count(ctx, collection)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	return m.store.Search(ctx, collection, value, n, map[string]string{key: value})
}

// Stats returns per-collection counts.
func (m *Manager) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	var errs []error
	for _, c := range []struct {
		name string
		dst  *int
	}{
		{CollectionConversations, &s.Conversations},
		{CollectionTasks, &s.Tasks},
		{CollectionInteractions, &s.Interactions},
	} {
		n, err := m.store.Count(ctx, c.name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		*c.dst = n
		s.Total += n
	}
	return s, errors.Join(errs...)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
