package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/agentloop/internal/config"
	"github.com/fyrsmithlabs/agentloop/internal/llm"
)

// scriptedModel plans write_file on the first planning call and nothing
// afterwards. Reflection always reports completion and direct answers are
// fixed text.
type scriptedModel struct {
	plans atomic.Int32
}

func (m *scriptedModel) Generate(_ context.Context, prompt string, _ llm.GenerateOptions) (string, error) {
	if strings.Contains(prompt, "Available tools:") {
		if m.plans.Add(1) == 1 {
			return `{"plan": "write the note", "tools": ["write_file"], "arguments": {"write_file": {"file_path": "note.txt", "content": "hello"}}}`, nil
		}
		return `{"plan": "Skipped writing the note.", "tools": []}`, nil
	}
	if strings.HasSuffix(prompt, "Assistant:") {
		return "Understood, the note was not written.", nil
	}
	return `{"reflection": "Wrote the note.", "completed": true}`, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Embeddings.Provider = "hash"
	cfg.Embeddings.Dimension = 64
	cfg.Memory.Path = ""
	cfg.RunStore.Path = filepath.Join(dir, "runs.db")
	cfg.Tools.Workdir = dir
	cfg.Logging.File = filepath.Join(dir, "agentloop.log")
	return cfg
}

func TestRunOnce_ApprovesAndCompletes(t *testing.T) {
	cfg := testConfig(t)
	var out bytes.Buffer

	err := runOnce(context.Background(), cfg, appOptions{stderrLogs: true, transport: &scriptedModel{}},
		runFlags{sessionID: "cli", taskID: "t1"}, "write a note", strings.NewReader("y\n"), &out)
	require.NoError(t, err)

	got := out.String()
	assert.Contains(t, got, "[t1] planning")
	assert.Contains(t, got, "[t1] awaiting_approval")
	assert.Contains(t, got, "Run write_file (risk 3)")
	assert.Contains(t, got, "[t1] completed")
	assert.Contains(t, got, "Wrote the note.")

	data, err := os.ReadFile(filepath.Join(cfg.Tools.Workdir, "note.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestRunOnce_RejectReplans(t *testing.T) {
	cfg := testConfig(t)
	var out bytes.Buffer

	err := runOnce(context.Background(), cfg, appOptions{stderrLogs: true, transport: &scriptedModel{}},
		runFlags{sessionID: "cli"}, "write a note", strings.NewReader("n\n"), &out)
	require.NoError(t, err)

	assert.Contains(t, out.String(), "Understood, the note was not written.")
	assert.NoFileExists(t, filepath.Join(cfg.Tools.Workdir, "note.txt"))
}

func TestRunOnce_ClosedInputLeavesRunPending(t *testing.T) {
	cfg := testConfig(t)
	var out bytes.Buffer

	err := runOnce(context.Background(), cfg, appOptions{stderrLogs: true, transport: &scriptedModel{}},
		runFlags{sessionID: "cli"}, "write a note", strings.NewReader(""), &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "run left awaiting approval for: write_file")
}

func TestRunOnce_AutoApprove(t *testing.T) {
	cfg := testConfig(t)
	var out bytes.Buffer

	err := runOnce(context.Background(), cfg, appOptions{stderrLogs: true, transport: &scriptedModel{}},
		runFlags{sessionID: "cli", autoApprove: true}, "write a note", strings.NewReader(""), &out)
	require.NoError(t, err)
	assert.NotContains(t, out.String(), "[y/N]")
	assert.FileExists(t, filepath.Join(cfg.Tools.Workdir, "note.txt"))
}

func TestNewApp_UnknownProvider(t *testing.T) {
	cfg := testConfig(t)
	cfg.LLM.Provider = "carrier-pigeon"
	_, err := newApp(context.Background(), cfg, appOptions{stderrLogs: true})
	assert.ErrorContains(t, err, "unknown llm provider")
}

func TestNewApp_PersistsRuns(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	a, err := newApp(ctx, cfg, appOptions{stderrLogs: true, transport: &scriptedModel{}})
	require.NoError(t, err)
	_, err = a.orch.ProcessMessage(ctx, "write a note", "persist", "t1")
	require.NoError(t, err)
	_ = a.close()

	// A fresh process picks the parked run up from SQLite.
	b, err := newApp(ctx, cfg, appOptions{stderrLogs: true, transport: &scriptedModel{}})
	require.NoError(t, err)
	defer b.close()

	st, err := b.orch.ApproveTools(ctx, "persist", "t1", []string{"write_file"})
	require.NoError(t, err)
	assert.Equal(t, "completed", string(st.Phase))
}

func TestNewApp_StartupLogHidesAPIKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.LLM.APIKey = config.Secret("sk-test-123456")

	a, err := newApp(context.Background(), cfg, appOptions{stderrLogs: true, transport: &scriptedModel{}})
	require.NoError(t, err)
	require.NoError(t, a.close())

	data, err := os.ReadFile(cfg.Logging.File)
	require.NoError(t, err)
	logs := string(data)
	assert.Contains(t, logs, "agentloop initialized")
	assert.Contains(t, logs, "llm_api_key")
	assert.Contains(t, logs, "[REDACTED:14]")
	assert.Contains(t, logs, "llm_max_attempts")
	assert.NotContains(t, logs, "sk-test-123456")
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	configPath, envFile = "", ".env"
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--env-file", ""))
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Version:    dev")
}

func TestToolsCmds(t *testing.T) {
	out, err := execute(t, "tools", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "write_file")
	assert.Contains(t, out, "require_confirmation")

	out, err = execute(t, "tools", "list", "--category", "utility")
	require.NoError(t, err)
	assert.Contains(t, out, "calculate")
	assert.NotContains(t, out, "write_file")

	out, err = execute(t, "tools", "info", "calculate")
	require.NoError(t, err)
	assert.Contains(t, out, `"name": "calculate"`)
	assert.Contains(t, out, `"expression"`)

	_, err = execute(t, "tools", "info", "teleport")
	assert.ErrorContains(t, err, "tool not found")
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, loadEnvFile(filepath.Join(dir, ".env"), false))
	assert.Error(t, loadEnvFile(filepath.Join(dir, "missing.env"), true))

	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("AGENTLOOP_TEST_ENV_FILE=loaded\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("AGENTLOOP_TEST_ENV_FILE") })

	require.NoError(t, loadEnvFile(path, true))
	assert.Equal(t, "loaded", os.Getenv("AGENTLOOP_TEST_ENV_FILE"))
}
