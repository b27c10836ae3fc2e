package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/agentloop/internal/memory"
	"github.com/fyrsmithlabs/agentloop/internal/orchestrator"
	"github.com/fyrsmithlabs/agentloop/internal/tools"
)

var errInvalidInput = errors.New("invalid input")

type processMessageInput struct {
	Message   string `json:"message" jsonschema:"The user request to work on"`
	SessionID string `json:"session_id,omitempty" jsonschema:"Session identifier; a new one is generated when empty"`
	TaskID    string `json:"task_id,omitempty" jsonschema:"Task identifier within the session"`
}

type toolsInput struct {
	SessionID string   `json:"session_id" jsonschema:"Session identifier"`
	TaskID    string   `json:"task_id,omitempty" jsonschema:"Task identifier within the session"`
	Tools     []string `json:"tools" jsonschema:"Tool names"`
}

type runStateInput struct {
	SessionID string `json:"session_id" jsonschema:"Session identifier"`
	TaskID    string `json:"task_id,omitempty" jsonschema:"Task identifier within the session"`
}

type historyInput struct {
	SessionID string `json:"session_id" jsonschema:"Session identifier"`
	Status    string `json:"status,omitempty" jsonschema:"Only tasks with this status: active, completed or failed"`
	Limit     int    `json:"limit,omitempty" jsonschema:"Maximum turns and tasks to return (default 20)"`
}

type listToolsInput struct {
	Category string `json:"category,omitempty" jsonschema:"Only list tools in this category"`
}

type messageView struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type toolResultView struct {
	Success bool   `json:"success"`
	Result  any    `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
}

// runOutput is the host-facing view of a run.
type runOutput struct {
	SessionID        string                    `json:"session_id"`
	TaskID           string                    `json:"task_id"`
	Phase            string                    `json:"phase"`
	Plan             string                    `json:"plan,omitempty"`
	Reasoning        string                    `json:"reasoning,omitempty"`
	SelectedTools    []string                  `json:"selected_tools,omitempty"`
	PendingApprovals []string                  `json:"pending_approvals,omitempty"`
	ToolResults      map[string]toolResultView `json:"tool_results,omitempty"`
	IterationCount   int                       `json:"iteration_count"`
	Reflection       string                    `json:"reflection,omitempty"`
	ErrorMessage     string                    `json:"error_message,omitempty"`
	Answer           string                    `json:"answer,omitempty"`
	Messages         []messageView             `json:"messages,omitempty"`
}

type toolView struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Permission  string `json:"permission"`
	RiskLevel   int    `json:"risk_level"`
}

type listToolsOutput struct {
	Tools []toolView `json:"tools"`
	Count int        `json:"count"`
}

type taskView struct {
	TaskID    string   `json:"task_id"`
	Title     string   `json:"title"`
	Status    string   `json:"status"`
	Plan      string   `json:"plan,omitempty"`
	ToolsUsed []string `json:"tools_used,omitempty"`
}

type historyOutput struct {
	SessionID string        `json:"session_id"`
	Turns     []messageView `json:"turns"`
	Tasks     []taskView    `json:"tasks"`
}

const defaultHistoryLimit = 20

func newRunOutput(st *orchestrator.RunState) runOutput {
	out := runOutput{
		SessionID:        st.SessionID,
		TaskID:           st.TaskID,
		Phase:            string(st.Phase),
		Plan:             st.Plan,
		Reasoning:        st.Reasoning,
		SelectedTools:    st.SelectedTools,
		PendingApprovals: st.PendingApprovals,
		IterationCount:   st.IterationCount,
		Reflection:       st.Reflection,
		ErrorMessage:     st.ErrorMessage,
	}
	if len(st.ToolResults) > 0 {
		out.ToolResults = make(map[string]toolResultView, len(st.ToolResults))
		for name, r := range st.ToolResults {
			out.ToolResults[name] = toolResultView{Success: r.Success, Result: r.Result, Error: r.Error}
		}
	}
	for _, m := range st.Messages {
		out.Messages = append(out.Messages, messageView{Role: m.Role, Content: m.Content})
	}
	if st.Phase == orchestrator.PhaseCompleted && len(st.Messages) > 0 {
		if last := st.Messages[len(st.Messages)-1]; last.Role == orchestrator.RoleAssistant {
			out.Answer = last.Content
		}
	}
	return out
}

// textResult mirrors the structured output as JSON text.
func textResult(v any) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		data = []byte(fmt.Sprintf("%v", v))
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "process_message",
		Description: "Send a request to the agent. Runs plan, tool and reflection cycles until the task completes or a tool needs approval.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, args processMessageInput) (res *mcp.CallToolResult, out runOutput, err error) {
		done := s.metrics.track(ctx, "process_message")
		defer func() { done(err) }()

		st, err := s.runner.ProcessMessage(ctx, args.Message, args.SessionID, args.TaskID)
		if err != nil {
			return nil, runOutput{}, err
		}
		out = newRunOutput(st)
		return textResult(out), out, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "approve_tools",
		Description: "Approve tools a run is waiting on. The run continues once nothing is pending.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, args toolsInput) (res *mcp.CallToolResult, out runOutput, err error) {
		done := s.metrics.track(ctx, "approve_tools")
		defer func() { done(err) }()

		if err = validateTools(args); err != nil {
			return nil, runOutput{}, err
		}
		st, err := s.runner.ApproveTools(ctx, args.SessionID, args.TaskID, args.Tools)
		if err != nil {
			return nil, runOutput{}, err
		}
		out = newRunOutput(st)
		return textResult(out), out, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "reject_tools",
		Description: "Reject tools a run is waiting on. Rejecting every pending tool sends the run back to planning.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, args toolsInput) (res *mcp.CallToolResult, out runOutput, err error) {
		done := s.metrics.track(ctx, "reject_tools")
		defer func() { done(err) }()

		if err = validateTools(args); err != nil {
			return nil, runOutput{}, err
		}
		st, err := s.runner.RejectTools(ctx, args.SessionID, args.TaskID, args.Tools)
		if err != nil {
			return nil, runOutput{}, err
		}
		out = newRunOutput(st)
		return textResult(out), out, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "run_state",
		Description: "Show the current state of a run.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, args runStateInput) (res *mcp.CallToolResult, out runOutput, err error) {
		done := s.metrics.track(ctx, "run_state")
		defer func() { done(err) }()

		if strings.TrimSpace(args.SessionID) == "" {
			err = fmt.Errorf("%w: session_id is required", errInvalidInput)
			return nil, runOutput{}, err
		}
		st, ok := s.runner.State(args.SessionID, args.TaskID)
		if !ok {
			err = fmt.Errorf("%w: %s/%s", orchestrator.ErrRunNotFound, args.SessionID, args.TaskID)
			return nil, runOutput{}, err
		}
		out = newRunOutput(st)
		return textResult(out), out, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "list_tools",
		Description: "List the tools the agent can call, with their permission and risk level.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, args listToolsInput) (res *mcp.CallToolResult, out listToolsOutput, err error) {
		done := s.metrics.track(ctx, "list_tools")
		defer func() { done(err) }()

		out.Tools = []toolView{}
		for _, info := range s.catalog.Export() {
			if args.Category != "" && info.Category != args.Category {
				continue
			}
			out.Tools = append(out.Tools, toolView{
				Name:        info.Name,
				Description: info.Description,
				Category:    info.Category,
				Permission:  info.Permission.String(),
				RiskLevel:   info.RiskLevel,
			})
		}
		out.Count = len(out.Tools)
		s.logger.Debug("listed tools", zap.Int("count", out.Count))
		return textResult(out), out, nil
	})

	if s.history != nil {
		s.registerHistory()
	}
}

func (s *Server) registerHistory() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "session_history",
		Description: "Show a session's stored conversation and its tasks, newest tasks first.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, args historyInput) (res *mcp.CallToolResult, out historyOutput, err error) {
		done := s.metrics.track(ctx, "session_history")
		defer func() { done(err) }()

		if strings.TrimSpace(args.SessionID) == "" {
			err = fmt.Errorf("%w: session_id is required", errInvalidInput)
			return nil, historyOutput{}, err
		}
		switch args.Status {
		case "", memory.TaskActive, memory.TaskCompleted, memory.TaskFailed:
		default:
			err = fmt.Errorf("%w: unknown task status %q", errInvalidInput, args.Status)
			return nil, historyOutput{}, err
		}
		limit := args.Limit
		if limit <= 0 {
			limit = defaultHistoryLimit
		}

		turns, err := s.history.ConversationHistory(ctx, args.SessionID, limit)
		if err != nil {
			return nil, historyOutput{}, err
		}
		tasks, err := s.history.TaskHistory(ctx, args.SessionID, args.Status, limit)
		if err != nil {
			return nil, historyOutput{}, err
		}

		out = historyOutput{SessionID: args.SessionID, Turns: []messageView{}, Tasks: []taskView{}}
		for _, turn := range turns {
			out.Turns = append(out.Turns, messageView{Role: turn.Role, Content: turn.Content})
		}
		for _, task := range tasks {
			out.Tasks = append(out.Tasks, taskView{
				TaskID:    task.TaskID,
				Title:     task.Title,
				Status:    task.Status,
				Plan:      task.Plan,
				ToolsUsed: task.ToolsUsed,
			})
		}
		return textResult(out), out, nil
	})
}

func validateTools(args toolsInput) error {
	if strings.TrimSpace(args.SessionID) == "" {
		return fmt.Errorf("%w: session_id is required", errInvalidInput)
	}
	if len(args.Tools) == 0 {
		return fmt.Errorf("%w: tools is required", errInvalidInput)
	}
	return nil
}

var _ Catalog = (*tools.Registry)(nil)
