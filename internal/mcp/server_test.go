package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/agentloop/internal/embeddings"
	"github.com/fyrsmithlabs/agentloop/internal/llm"
	"github.com/fyrsmithlabs/agentloop/internal/memory"
	"github.com/fyrsmithlabs/agentloop/internal/orchestrator"
	"github.com/fyrsmithlabs/agentloop/internal/tools"
	"github.com/fyrsmithlabs/agentloop/internal/vectorstore"
)

type fixedPlanner struct {
	tools []string
}

func (p fixedPlanner) GeneratePlan(context.Context, string) (*llm.Plan, error) {
	return &llm.Plan{Plan: "check the weather", Tools: p.tools}, nil
}

func (fixedPlanner) Reflect(context.Context, string) (*llm.Reflection, error) {
	return &llm.Reflection{Reflection: "It is sunny.", Completed: true}, nil
}

func testRegistry(t *testing.T) *tools.Registry {
	t.Helper()
	reg := tools.NewRegistry()
	require.NoError(t, reg.Register(tools.Definition{
		Name:        "weather",
		Description: "Current weather",
		Capability: tools.CapabilityFunc(func(context.Context, map[string]any) (any, error) {
			return "sunny", nil
		}),
		Category: "web",
	}))
	require.NoError(t, reg.Register(tools.Definition{
		Name:        "write_file",
		Description: "Writes a file",
		Capability: tools.CapabilityFunc(func(context.Context, map[string]any) (any, error) {
			return "written", nil
		}),
		Permission: tools.RequireConfirmation,
		Category:   "filesystem",
		RiskLevel:  3,
	}))
	return reg
}

// connect starts a server for planned and returns a connected client session.
func connect(t *testing.T, planned ...string) *mcp.ClientSession {
	t.Helper()
	return connectWith(t, planned, nil)
}

func connectWith(t *testing.T, planned []string, opts []Option) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()
	reg := testRegistry(t)

	orch, err := orchestrator.New(orchestrator.Deps{
		Planner:  fixedPlanner{tools: planned},
		Registry: reg,
	}, orchestrator.Config{}, nil)
	require.NoError(t, err)

	srv, err := NewServer(&Config{Logger: zap.NewNop()}, orch, reg, opts...)
	require.NoError(t, err)

	serverT, clientT := mcp.NewInMemoryTransports()
	ss, err := srv.Connect(ctx, serverT)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ss.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0"}, nil)
	cs, err := client.Connect(ctx, clientT, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cs.Close() })
	return cs
}

func call(t *testing.T, cs *mcp.ClientSession, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	return res
}

func decode[T any](t *testing.T, res *mcp.CallToolResult) T {
	t.Helper()
	require.False(t, res.IsError, "tool returned an error: %v", res.Content)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	var out T
	require.NoError(t, json.Unmarshal([]byte(text.Text), &out))
	return out
}

// failed reports whether a call ended in a tool or protocol error.
func failed(cs *mcp.ClientSession, name string, args map[string]any) bool {
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	return err != nil || res.IsError
}

func TestNewServer(t *testing.T) {
	reg := testRegistry(t)
	orch, err := orchestrator.New(orchestrator.Deps{Planner: fixedPlanner{}, Registry: reg}, orchestrator.Config{}, nil)
	require.NoError(t, err)

	t.Run("defaults", func(t *testing.T) {
		srv, err := NewServer(nil, orch, reg)
		require.NoError(t, err)
		assert.NotNil(t, srv.mcp)
		assert.NotNil(t, srv.metrics)
	})

	t.Run("requires runner", func(t *testing.T) {
		_, err := NewServer(nil, nil, reg)
		assert.ErrorContains(t, err, "runner is required")
	})

	t.Run("requires catalog", func(t *testing.T) {
		_, err := NewServer(nil, orch, nil)
		assert.ErrorContains(t, err, "tool catalog is required")
	})
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "agentloop", cfg.Name)
	assert.Equal(t, "dev", cfg.Version)
	assert.NotNil(t, cfg.Logger)
}

func TestListTools_Registered(t *testing.T) {
	cs := connect(t)
	res, err := cs.ListTools(context.Background(), nil)
	require.NoError(t, err)

	names := make([]string, 0, len(res.Tools))
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"process_message", "approve_tools", "reject_tools", "run_state", "list_tools"}, names)
}

func TestProcessMessage_Completes(t *testing.T) {
	cs := connect(t, "weather")
	out := decode[runOutput](t, call(t, cs, "process_message", map[string]any{
		"message":    "what's the weather?",
		"session_id": "s1",
		"task_id":    "t1",
	}))

	assert.Equal(t, "completed", out.Phase)
	assert.Equal(t, "It is sunny.", out.Answer)
	assert.Equal(t, "sunny", out.ToolResults["weather"].Result)

	state := decode[runOutput](t, call(t, cs, "run_state", map[string]any{"session_id": "s1", "task_id": "t1"}))
	assert.Equal(t, "completed", state.Phase)
	assert.Len(t, state.Messages, 2)
}

func TestProcessMessage_GeneratesSession(t *testing.T) {
	cs := connect(t)
	out := decode[runOutput](t, call(t, cs, "process_message", map[string]any{"message": "hello"}))
	assert.NotEmpty(t, out.SessionID)
	assert.Equal(t, "check the weather", out.Answer)
}

func TestApprovalRoundTrip(t *testing.T) {
	cs := connect(t, "weather", "write_file")

	out := decode[runOutput](t, call(t, cs, "process_message", map[string]any{
		"message":    "save the forecast",
		"session_id": "s1",
	}))
	require.Equal(t, "awaiting_approval", out.Phase)
	assert.Equal(t, []string{"write_file"}, out.PendingApprovals)

	out = decode[runOutput](t, call(t, cs, "approve_tools", map[string]any{
		"session_id": "s1",
		"tools":      []string{"write_file"},
	}))
	assert.Equal(t, "completed", out.Phase)
	assert.Equal(t, "written", out.ToolResults["write_file"].Result)
}

func TestRejectTools(t *testing.T) {
	cs := connect(t, "write_file")

	decode[runOutput](t, call(t, cs, "process_message", map[string]any{"message": "save it", "session_id": "s1"}))
	out := decode[runOutput](t, call(t, cs, "reject_tools", map[string]any{
		"session_id": "s1",
		"tools":      []string{"write_file"},
	}))

	require.NotEmpty(t, out.Messages)
	var notes []string
	for _, m := range out.Messages {
		if m.Role == orchestrator.RoleSystem {
			notes = append(notes, m.Content)
		}
	}
	assert.Contains(t, notes, "User rejected tools: write_file")
}

func TestToolErrors(t *testing.T) {
	cs := connect(t)

	assert.True(t, failed(cs, "process_message", map[string]any{"message": "  "}), "blank message")
	assert.True(t, failed(cs, "approve_tools", map[string]any{"session_id": "nope", "tools": []string{"x"}}), "unknown run")
	assert.True(t, failed(cs, "approve_tools", map[string]any{"session_id": "s1", "tools": []string{}}), "no tools")
	assert.True(t, failed(cs, "reject_tools", map[string]any{"session_id": "", "tools": []string{"x"}}), "no session")
	assert.True(t, failed(cs, "run_state", map[string]any{"session_id": "nope"}), "unknown state")

	// A completed run is not awaiting approval.
	decode[runOutput](t, call(t, cs, "process_message", map[string]any{"message": "hi", "session_id": "done"}))
	assert.True(t, failed(cs, "approve_tools", map[string]any{"session_id": "done", "tools": []string{"x"}}), "not awaiting")
}

func TestListToolsTool(t *testing.T) {
	cs := connect(t)

	all := decode[listToolsOutput](t, call(t, cs, "list_tools", map[string]any{}))
	assert.Equal(t, 2, all.Count)

	fsTools := decode[listToolsOutput](t, call(t, cs, "list_tools", map[string]any{"category": "filesystem"}))
	require.Equal(t, 1, fsTools.Count)
	assert.Equal(t, "write_file", fsTools.Tools[0].Name)
	assert.Equal(t, "require_confirmation", fsTools.Tools[0].Permission)
	assert.Equal(t, 3, fsTools.Tools[0].RiskLevel)
}

func TestSessionHistory(t *testing.T) {
	store, err := vectorstore.NewChromemStore(vectorstore.ChromemConfig{}, embeddings.NewHashProvider(32), nil)
	require.NoError(t, err)
	manager, err := memory.NewManager(store, nil)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = manager.StoreConversationTurn(ctx, "s1", "user", "plan the trip")
	require.NoError(t, err)
	require.NoError(t, manager.StoreTaskMemory(ctx, memory.TaskRecord{
		TaskID: "trip", SessionID: "s1", Title: "plan the trip", Plan: "check the weather", ToolsUsed: []string{"weather"},
	}))
	_, err = manager.UpdateTaskStatus(ctx, "trip", memory.TaskCompleted, nil)
	require.NoError(t, err)

	cs := connectWith(t, nil, []Option{WithHistory(manager)})

	out := decode[historyOutput](t, call(t, cs, "session_history", map[string]any{"session_id": "s1"}))
	assert.Equal(t, "s1", out.SessionID)
	require.Len(t, out.Turns, 1)
	assert.Equal(t, messageView{Role: "user", Content: "plan the trip"}, out.Turns[0])
	require.Len(t, out.Tasks, 1)
	assert.Equal(t, taskView{TaskID: "trip", Title: "plan the trip", Status: memory.TaskCompleted, Plan: "check the weather", ToolsUsed: []string{"weather"}}, out.Tasks[0])

	out = decode[historyOutput](t, call(t, cs, "session_history", map[string]any{"session_id": "s1", "status": "failed"}))
	assert.Empty(t, out.Tasks)

	assert.True(t, failed(cs, "session_history", map[string]any{"session_id": ""}))
	assert.True(t, failed(cs, "session_history", map[string]any{"session_id": "s1", "status": "lost"}))
}

func TestSessionHistory_OnlyWithHistory(t *testing.T) {
	res, err := connect(t).ListTools(context.Background(), nil)
	require.NoError(t, err)
	for _, tool := range res.Tools {
		assert.NotEqual(t, "session_history", tool.Name)
	}
}
