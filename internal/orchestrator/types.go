package orchestrator

import (
	"context"
	"errors"
	"maps"
	"slices"
	"time"

	"github.com/fyrsmithlabs/agentloop/internal/config"
	"github.com/fyrsmithlabs/agentloop/internal/llm"
	"github.com/fyrsmithlabs/agentloop/internal/memory"
	"github.com/fyrsmithlabs/agentloop/internal/tools"
)

// Errors returned by the approval API.
var (
	ErrRunNotFound         = errors.New("run not found")
	ErrNotAwaitingApproval = errors.New("run is not awaiting approval")
	ErrEmptyMessage        = errors.New("message cannot be empty")
)

// Phase is a named stage of the run state machine.
type Phase string

const (
	PhaseIdle             Phase = "idle"
	PhasePlanning         Phase = "planning"
	PhaseToolSelection    Phase = "tool_selection"
	PhaseAwaitingApproval Phase = "awaiting_approval"
	PhaseExecuting        Phase = "executing"
	PhaseReflecting       Phase = "reflecting"
	PhaseCompleted        Phase = "completed"
	PhaseError            Phase = "error"
)

// AllPhases returns every phase in cycle order.
func AllPhases() []Phase {
	return []Phase{
		PhaseIdle, PhasePlanning, PhaseToolSelection, PhaseAwaitingApproval,
		PhaseExecuting, PhaseReflecting, PhaseCompleted, PhaseError,
	}
}

// IsTerminal reports whether p ends a cycle.
func (p Phase) IsTerminal() bool {
	return p == PhaseCompleted || p == PhaseError
}

// Valid reports whether p is a known phase.
func (p Phase) Valid() bool {
	return slices.Contains(AllPhases(), p)
}

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is one entry in a run's history.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ToolResult is the outcome of one tool invocation.
type ToolResult struct {
	Success bool   `json:"success"`
	Result  any    `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Key identifies a run.
type Key struct {
	SessionID string `json:"session_id"`
	TaskID    string `json:"task_id"`
}

// RunState is the state of one run. It is owned by the orchestrator;
// callers and listeners only ever see clones.
type RunState struct {
	SessionID        string                    `json:"session_id"`
	TaskID           string                    `json:"task_id"`
	Messages         []Message                 `json:"messages"`
	Phase            Phase                     `json:"phase"`
	Plan             string                    `json:"plan,omitempty"`
	Reasoning        string                    `json:"reasoning,omitempty"`
	SelectedTools    []string                  `json:"selected_tools"`
	ToolArgs         map[string]map[string]any `json:"tool_args,omitempty"`
	ToolResults      map[string]ToolResult     `json:"tool_results"`
	PendingApprovals []string                  `json:"pending_approvals"`
	ApprovedTools    []string                  `json:"approved_tools,omitempty"`
	IterationCount   int                       `json:"iteration_count"`
	ErrorMessage     string                    `json:"error_message,omitempty"`
	Reflection       string                    `json:"reflection,omitempty"`
	MemoryContext    []memory.ContextItem      `json:"memory_context,omitempty"`
	UpdatedAt        time.Time                 `json:"updated_at"`
}

// NewRunState returns an Idle state for the key.
func NewRunState(sessionID, taskID string) *RunState {
	return &RunState{
		SessionID:        sessionID,
		TaskID:           taskID,
		Messages:         []Message{},
		Phase:            PhaseIdle,
		SelectedTools:    []string{},
		ToolResults:      map[string]ToolResult{},
		PendingApprovals: []string{},
	}
}

// Key returns the run's key.
func (s *RunState) Key() Key {
	return Key{SessionID: s.SessionID, TaskID: s.TaskID}
}

// LastUserMessage returns the most recent user message, or "".
func (s *RunState) LastUserMessage() string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleUser {
			return s.Messages[i].Content
		}
	}
	return ""
}

// Clone returns a deep copy. Tool argument values and results are copied
// one level deep.
func (s *RunState) Clone() *RunState {
	if s == nil {
		return nil
	}
	c := *s
	c.Messages = slices.Clone(s.Messages)
	c.SelectedTools = slices.Clone(s.SelectedTools)
	c.PendingApprovals = slices.Clone(s.PendingApprovals)
	c.ApprovedTools = slices.Clone(s.ApprovedTools)
	c.ToolResults = maps.Clone(s.ToolResults)
	if s.ToolArgs != nil {
		c.ToolArgs = make(map[string]map[string]any, len(s.ToolArgs))
		for k, v := range s.ToolArgs {
			c.ToolArgs[k] = maps.Clone(v)
		}
	}
	if s.MemoryContext != nil {
		c.MemoryContext = make([]memory.ContextItem, len(s.MemoryContext))
		for i, item := range s.MemoryContext {
			item.Metadata = maps.Clone(item.Metadata)
			c.MemoryContext[i] = item
		}
	}
	return &c
}

// Config bounds a run.
type Config struct {
	MaxIterations    int
	PlanningTimeout  time.Duration
	ExecutionTimeout time.Duration
	MemoryRetrievalK int
}

// DefaultConfig returns the built-in limits.
func DefaultConfig() Config {
	return Config{
		MaxIterations:    10,
		PlanningTimeout:  30 * time.Second,
		ExecutionTimeout: 120 * time.Second,
		MemoryRetrievalK: memory.DefaultContextLimit,
	}
}

// ConfigFromSettings converts the agent section of the config file.
func ConfigFromSettings(s config.AgentConfig) Config {
	return Config{
		MaxIterations:    s.MaxIterations,
		PlanningTimeout:  s.PlanningTimeout.Duration(),
		ExecutionTimeout: s.ExecutionTimeout.Duration(),
		MemoryRetrievalK: s.MemoryRetrievalK,
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.MaxIterations <= 0 {
		c.MaxIterations = d.MaxIterations
	}
	if c.PlanningTimeout <= 0 {
		c.PlanningTimeout = d.PlanningTimeout
	}
	if c.ExecutionTimeout <= 0 {
		c.ExecutionTimeout = d.ExecutionTimeout
	}
	if c.MemoryRetrievalK <= 0 {
		c.MemoryRetrievalK = d.MemoryRetrievalK
	}
}

// Planner produces plans and reflections.
type Planner interface {
	GeneratePlan(ctx context.Context, prompt string) (*llm.Plan, error)
	Reflect(ctx context.Context, prompt string) (*llm.Reflection, error)
}

// ContextRetriever returns ranked memory for a planning step.
type ContextRetriever interface {
	RetrieveContext(ctx context.Context, query, sessionID, taskID string, limit int) []memory.ContextItem
}

// MemorySink records what happened. Failures are logged, never fatal.
// Task records are written only for runs with a task ID.
type MemorySink interface {
	StoreConversationTurn(ctx context.Context, sessionID, role, content string) (string, error)
	StoreInteraction(ctx context.Context, in memory.Interaction) (string, error)
	StoreError(ctx context.Context, sessionID string, ec memory.ErrorContext) error
	StoreTaskMemory(ctx context.Context, rec memory.TaskRecord) error
	UpdateTaskStatus(ctx context.Context, taskID, status string, results map[string]any) (bool, error)
}

// Responder writes the answer for a plan that needs no tools.
type Responder interface {
	GenerateResponse(ctx context.Context, message string, items []memory.ContextItem) (string, error)
}

// ToolRegistry is the read side of tools.Registry.
type ToolRegistry interface {
	Has(name string) bool
	Get(name string) (tools.Definition, bool)
	List() []string
}

// StateStore persists run states across restarts.
type StateStore interface {
	Save(ctx context.Context, state *RunState) error
	Load(ctx context.Context, sessionID, taskID string) (*RunState, error)
}

// Listener observes entry into a phase. state is a private snapshot.
type Listener func(ctx context.Context, phase Phase, state *RunState) error
