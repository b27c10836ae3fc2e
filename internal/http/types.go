package http

import (
	"github.com/fyrsmithlabs/agentloop/internal/llm"
	"github.com/fyrsmithlabs/agentloop/internal/memory"
	"github.com/fyrsmithlabs/agentloop/internal/orchestrator"
	"github.com/fyrsmithlabs/agentloop/internal/telemetry"
	"github.com/fyrsmithlabs/agentloop/internal/tools"
)

// HealthResponse is the response body for GET /health.
// Telemetry and Model are omitted when the server has none attached; LLM
// is set only for ?llm=true.
type HealthResponse struct {
	Status    string                  `json:"status"`
	Telemetry *telemetry.HealthStatus `json:"telemetry,omitempty"`
	Model     *llm.ModelInfo          `json:"model,omitempty"`
	LLM       *llm.Health             `json:"llm,omitempty"`
}

// MessageRequest is the request body for POST .../messages.
type MessageRequest struct {
	Message string `json:"message"`
}

// ToolsRequest is the request body for POST .../approve and .../reject.
type ToolsRequest struct {
	Tools []string `json:"tools"`
}

// PermissionRequest is the request body for PUT /api/v1/tools/:name/permission.
type PermissionRequest struct {
	Permission string `json:"permission"`
}

// RunsResponse is the response body for GET /api/v1/runs.
type RunsResponse struct {
	Runs  []*orchestrator.RunState `json:"runs"`
	Count int                      `json:"count"`
}

// ToolsResponse is the response body for GET /api/v1/tools.
type ToolsResponse struct {
	Tools []tools.Info `json:"tools"`
}

// MemoryStatsResponse is the response body for GET /api/v1/memory/stats.
type MemoryStatsResponse struct {
	Collections map[string]int `json:"collections"`
	Total       int            `json:"total"`
}

func newMemoryStatsResponse(s memory.Stats) MemoryStatsResponse {
	return MemoryStatsResponse{
		Collections: map[string]int{
			memory.CollectionConversations: s.Conversations,
			memory.CollectionTasks:         s.Tasks,
			memory.CollectionInteractions:  s.Interactions,
		},
		Total: s.Total,
	}
}

// HistoryResponse is the response body for GET /api/v1/sessions/:session/history.
type HistoryResponse struct {
	SessionID string                    `json:"session_id"`
	Turns     []memory.ConversationTurn `json:"turns"`
	Tasks     []memory.TaskRecord       `json:"tasks"`
}

func newHistoryResponse(sessionID string, turns []memory.ConversationTurn, tasks []memory.TaskRecord) HistoryResponse {
	if turns == nil {
		turns = []memory.ConversationTurn{}
	}
	if tasks == nil {
		tasks = []memory.TaskRecord{}
	}
	return HistoryResponse{SessionID: sessionID, Turns: turns, Tasks: tasks}
}
