package tools

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoTool(name, category string, perm Permission) Definition {
	return Definition{
		Name:        name,
		Description: "echoes its input",
		Capability: CapabilityFunc(func(_ context.Context, args map[string]any) (any, error) {
			return args["text"], nil
		}),
		Schema:     NewSchema(String("text", "text to echo", Required())),
		Permission: perm,
		Category:   category,
		RiskLevel:  1,
	}
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(echoTool("b", "utility", AutoApprove)))
	require.NoError(t, r.Register(echoTool("a", "utility", RequireConfirmation)))
	require.NoError(t, r.Register(echoTool("c", "web", RequireConfirmation)))

	assert.True(t, r.Has("a"))
	assert.False(t, r.Has("zzz"))
	assert.Equal(t, []string{"b", "a", "c"}, r.List())
	assert.Equal(t, []string{"b", "a"}, r.ListByCategory("utility"))
	assert.Equal(t, []string{"c"}, r.ListByCategory("web"))
	assert.Empty(t, r.ListByCategory("nope"))
	assert.Equal(t, []string{"utility", "web"}, r.Categories())
	assert.Equal(t, 3, r.Len())

	def, ok := r.Get("a")
	require.True(t, ok)
	assert.Equal(t, RequireConfirmation, def.Permission)

	_, ok = r.Get("zzz")
	assert.False(t, ok)
}

func TestRegistry_DuplicateAndReplace(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(echoTool("a", "utility", AutoApprove)))
	require.NoError(t, r.Register(echoTool("b", "utility", AutoApprove)))

	err := r.Register(echoTool("a", "web", Blocked))
	assert.ErrorIs(t, err, ErrDuplicateTool)

	require.NoError(t, r.Register(echoTool("a", "web", Blocked), WithReplace()))
	assert.Equal(t, []string{"a", "b"}, r.List(), "replacement keeps its position")
	assert.Equal(t, []string{"b"}, r.ListByCategory("utility"))
	assert.Equal(t, []string{"a"}, r.ListByCategory("web"))

	perm, _ := r.Permission("a")
	assert.Equal(t, Blocked, perm)
}

func TestRegistry_Unregister(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(echoTool("a", "utility", AutoApprove)))
	require.NoError(t, r.Register(echoTool("b", "utility", AutoApprove)))

	assert.True(t, r.Unregister("a"))
	assert.False(t, r.Unregister("a"))
	assert.Equal(t, []string{"b"}, r.List())
	assert.Equal(t, []string{"b"}, r.ListByCategory("utility"))

	assert.True(t, r.Unregister("b"))
	assert.Empty(t, r.Categories())
}

func TestRegistry_InvalidDefinitions(t *testing.T) {
	r := NewRegistry()
	base := echoTool("ok", "utility", AutoApprove)

	tests := []struct {
		name   string
		mutate func(*Definition)
	}{
		{"empty name", func(d *Definition) { d.Name = "" }},
		{"nil capability", func(d *Definition) { d.Capability = nil }},
		{"risk too low", func(d *Definition) { d.RiskLevel = 0 }},
		{"risk too high", func(d *Definition) { d.RiskLevel = 6 }},
		{"bad permission", func(d *Definition) { d.Permission = Permission(9) }},
		{"duplicate param", func(d *Definition) { d.Schema = NewSchema(String("x", ""), String("x", "")) }},
		{"bad param type", func(d *Definition) { d.Schema = NewSchema(Param{Name: "x", Type: "date"}) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := base
			tt.mutate(&def)
			assert.ErrorIs(t, r.Register(def), ErrInvalidTool)
		})
	}
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_SetPermission(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(echoTool("a", "utility", AutoApprove)))
	require.NoError(t, r.Register(echoTool("b", "utility", RequireConfirmation)))

	assert.Equal(t, []string{"a"}, r.SafeTools())
	assert.Equal(t, []string{"b"}, r.RequiringApproval())

	assert.True(t, r.SetPermission("a", RequireConfirmation))
	assert.False(t, r.SetPermission("missing", AutoApprove))
	assert.False(t, r.SetPermission("a", Permission(42)))

	assert.Empty(t, r.SafeTools())
	assert.Equal(t, []string{"a", "b"}, r.RequiringApproval())

	// Copies returned by Get do not alias registry state.
	def, _ := r.Get("b")
	def.Permission = AutoApprove
	perm, _ := r.Permission("b")
	assert.Equal(t, RequireConfirmation, perm)
}

func TestRegistry_Invoke(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(echoTool("echo", "utility", AutoApprove)))
	require.NoError(t, r.Register(echoTool("blocked", "utility", Blocked)))

	out, err := r.Invoke(context.Background(), "echo", map[string]any{"text": "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hi", out)

	_, err = r.Invoke(context.Background(), "echo", map[string]any{})
	assert.ErrorIs(t, err, ErrInvalidArguments)

	_, err = r.Invoke(context.Background(), "blocked", map[string]any{"text": "hi"})
	assert.ErrorIs(t, err, ErrBlocked)

	_, err = r.Invoke(context.Background(), "missing", nil)
	assert.ErrorIs(t, err, ErrToolNotFound)
}

func TestRegistry_InvokeCapabilityError(t *testing.T) {
	r := NewRegistry()
	boom := errors.New("boom")
	def := echoTool("fail", "utility", AutoApprove)
	def.Schema = Schema{}
	def.Capability = CapabilityFunc(func(context.Context, map[string]any) (any, error) { return nil, boom })
	require.NoError(t, r.Register(def))

	_, err := r.Invoke(context.Background(), "fail", nil)
	assert.ErrorIs(t, err, boom)
}

func TestRegistry_Export(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(echoTool("echo", "utility", RequireConfirmation)))

	infos := r.Export()
	require.Len(t, infos, 1)
	assert.Equal(t, "echo", infos[0].Name)
	assert.Equal(t, RequireConfirmation, infos[0].Permission)
	assert.Equal(t, []string{"text"}, infos[0].Parameters["required"])

	info, ok := r.Info("echo")
	require.True(t, ok)
	assert.Equal(t, infos[0], info)
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_ = r.Register(echoTool(fmt.Sprintf("t%d", i), "utility", AutoApprove))
			r.SetPermission(fmt.Sprintf("t%d", i), RequireConfirmation)
		}(i)
		go func() {
			defer wg.Done()
			_ = r.List()
			_ = r.RequiringApproval()
			_ = r.Has("t0")
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, r.Len())
	assert.Len(t, r.RequiringApproval(), 20)
}

func TestPermission_Text(t *testing.T) {
	for _, p := range []Permission{AutoApprove, RequireConfirmation, Blocked} {
		text, err := p.MarshalText()
		require.NoError(t, err)
		var back Permission
		require.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, p, back)
	}

	p, err := ParsePermission("confirm")
	require.NoError(t, err)
	assert.Equal(t, RequireConfirmation, p)

	_, err = ParsePermission("maybe")
	assert.Error(t, err)
}
