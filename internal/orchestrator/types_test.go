package orchestrator

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/agentloop/internal/config"
	"github.com/fyrsmithlabs/agentloop/internal/memory"
	"github.com/fyrsmithlabs/agentloop/internal/tools"
)

func TestPhase(t *testing.T) {
	assert.Len(t, AllPhases(), 8)
	assert.True(t, PhaseCompleted.IsTerminal())
	assert.True(t, PhaseError.IsTerminal())
	assert.False(t, PhaseAwaitingApproval.IsTerminal())
	assert.True(t, PhaseReflecting.Valid())
	assert.False(t, Phase("sleeping").Valid())
}

func TestRunState_Clone(t *testing.T) {
	orig := NewRunState("s1", "t1")
	orig.Messages = append(orig.Messages, Message{Role: RoleUser, Content: "hi"})
	orig.SelectedTools = []string{"a", "b"}
	orig.PendingApprovals = []string{"b"}
	orig.ToolArgs = map[string]map[string]any{"a": {"x": 1}}
	orig.ToolResults["a"] = ToolResult{Success: true, Result: "ok"}
	orig.MemoryContext = []memory.ContextItem{{Type: memory.ItemTask, Content: "c", Metadata: map[string]string{"k": "v"}}}

	c := orig.Clone()
	assert.Equal(t, orig, c)

	c.Messages[0].Content = "changed"
	c.SelectedTools[0] = "z"
	c.PendingApprovals = append(c.PendingApprovals, "a")
	c.ToolArgs["a"]["x"] = 2
	c.ToolResults["b"] = ToolResult{}
	c.MemoryContext[0].Metadata["k"] = "other"

	assert.Equal(t, "hi", orig.Messages[0].Content)
	assert.Equal(t, []string{"a", "b"}, orig.SelectedTools)
	assert.Equal(t, []string{"b"}, orig.PendingApprovals)
	assert.Equal(t, 1, orig.ToolArgs["a"]["x"])
	assert.NotContains(t, orig.ToolResults, "b")
	assert.Equal(t, "v", orig.MemoryContext[0].Metadata["k"])

	var nilState *RunState
	assert.Nil(t, nilState.Clone())
}

func TestRunState_LastUserMessage(t *testing.T) {
	s := NewRunState("s", "t")
	assert.Empty(t, s.LastUserMessage())
	s.Messages = []Message{
		{Role: RoleUser, Content: "first"},
		{Role: RoleAssistant, Content: "reply"},
		{Role: RoleUser, Content: "second"},
		{Role: RoleSystem, Content: "note"},
	}
	assert.Equal(t, "second", s.LastUserMessage())
	assert.Equal(t, Key{SessionID: "s", TaskID: "t"}, s.Key())
}

func TestConfig(t *testing.T) {
	cfg := ConfigFromSettings(config.AgentConfig{
		MaxIterations:    4,
		PlanningTimeout:  config.Duration(time.Second),
		ExecutionTimeout: config.Duration(2 * time.Second),
		MemoryRetrievalK: 7,
	})
	assert.Equal(t, Config{MaxIterations: 4, PlanningTimeout: time.Second, ExecutionTimeout: 2 * time.Second, MemoryRetrievalK: 7}, cfg)

	var empty Config
	empty.applyDefaults()
	assert.Equal(t, DefaultConfig(), empty)
}

func TestIndicatesCompletion(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"Task complete", true},
		{"COMPLETED successfully", true},
		{"the work is completely done", true},
		{"incomplete results", false},
		{"needs another pass", false},
		{"", false},
		{"The task is not complete yet", false},
		{"Not yet complete: the file is missing", false},
		{"It isn't fully completed", false},
		{"This can't be completed without credentials", false},
		{"The write was never completed", false},
		{"Step one is not complete, but the task is now complete", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, indicatesCompletion(tt.text), tt.text)
	}
}

func TestTruncate_KeepsRunesWhole(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	got := truncate("héllo wörld ✓✓✓", 7)
	assert.Equal(t, "héllo w...", got)
	assert.True(t, utf8.ValidString(truncate(strings.Repeat("✓", 400), 301)))
	assert.Equal(t, 300+len("..."), utf8.RuneCountInString(oneLine(strings.Repeat("é ", 400))))
}

func TestPlanningPrompt(t *testing.T) {
	noop := tools.CapabilityFunc(func(context.Context, map[string]any) (any, error) { return nil, nil })
	r := tools.NewRegistry()
	require.NoError(t, r.Register(tools.Definition{
		Name: "read_file", Description: "Read a file", Capability: noop,
		Schema: tools.NewSchema(tools.String("file_path", "path", tools.Required())), RiskLevel: 1,
	}))
	require.NoError(t, r.Register(tools.Definition{
		Name: "rm_rf", Description: "Delete everything", Capability: noop,
		Permission: tools.Blocked, RiskLevel: 5,
	}))

	s := NewRunState("s", "t")
	s.Messages = []Message{
		{Role: RoleUser, Content: "show me main.go"},
		{Role: RoleSystem, Content: "User rejected tools: run_command"},
	}
	s.MemoryContext = []memory.ContextItem{{Type: memory.ItemConversation, Content: "earlier\nwe read go.mod"}}

	p := planningPrompt(s, r)
	assert.Contains(t, p, "- [conversation] earlier we read go.mod")
	assert.Contains(t, p, "Note: User rejected tools: run_command")
	assert.Contains(t, p, "Current request: show me main.go")
	assert.Contains(t, p, "- read_file: Read a file")
	assert.Contains(t, p, `"file_path"`)
	assert.NotContains(t, p, "rm_rf")
	assert.Contains(t, p, `"arguments"`)
}

func TestReflectionPrompt(t *testing.T) {
	s := NewRunState("s", "t")
	s.Messages = []Message{{Role: RoleUser, Content: "count files"}}
	s.Plan = "run ls"
	s.SelectedTools = []string{"list_directory", "run_command"}
	s.ToolResults = map[string]ToolResult{
		"run_command":    {Error: "timed out"},
		"list_directory": {Success: true, Result: 3},
	}

	p := reflectionPrompt(s)
	assert.Contains(t, p, "Original request: count files")
	assert.Contains(t, p, "Plan executed: run ls")
	assert.Contains(t, p, "Tools used: list_directory, run_command")
	assert.Contains(t, p, `"error":"timed out"`)
}
