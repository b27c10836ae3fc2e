package builtin

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"runtime"
	"time"

	"github.com/fyrsmithlabs/agentloop/internal/tools"
)

// ErrTimedOut is returned when a tool exceeds its own timeout. It reports
// Timeout() == true like net.Error.
var ErrTimedOut error = timeoutError{}

type timeoutError struct{}

func (timeoutError) Error() string { return "timed out" }
func (timeoutError) Timeout() bool { return true }

func runCommand(opts Options) tools.Definition {
	return tools.Definition{
		Name:        "run_command",
		Description: "Execute a shell command",
		Category:    CategorySystem,
		Permission:  tools.RequireConfirmation,
		RiskLevel:   4,
		Schema: tools.NewSchema(
			tools.String("command", "shell command to run", tools.Required()),
			tools.Integer("timeout", "timeout in seconds", tools.Default(int(opts.CommandTimeout/time.Second))),
		),
		Capability: tools.CapabilityFunc(func(ctx context.Context, args map[string]any) (any, error) {
			command := args["command"].(string)
			timeout := time.Duration(args["timeout"].(int)) * time.Second
			if timeout <= 0 {
				timeout = opts.CommandTimeout
			}

			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			cmd := exec.CommandContext(ctx, "sh", "-c", command)
			cmd.Dir = opts.Workdir
			cmd.WaitDelay = time.Second
			var stdout, stderr bytes.Buffer
			cmd.Stdout = &stdout
			cmd.Stderr = &stderr

			err := cmd.Run()
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, ErrTimedOut
			}
			code := 0
			if err != nil {
				var exitErr *exec.ExitError
				if !errors.As(err, &exitErr) {
					return nil, err
				}
				code = exitErr.ExitCode()
			}
			return map[string]any{
				"command":     command,
				"return_code": code,
				"stdout":      stdout.String(),
				"stderr":      stderr.String(),
			}, nil
		}),
	}
}

func systemInfo(opts Options) tools.Definition {
	return tools.Definition{
		Name:        "get_system_info",
		Description: "Get system information",
		Category:    CategorySystem,
		Permission:  tools.AutoApprove,
		RiskLevel:   1,
		Capability: tools.CapabilityFunc(func(_ context.Context, _ map[string]any) (any, error) {
			hostname, _ := os.Hostname()
			var mem runtime.MemStats
			runtime.ReadMemStats(&mem)
			return map[string]any{
				"platform":   runtime.GOOS,
				"arch":       runtime.GOARCH,
				"go_version": runtime.Version(),
				"hostname":   hostname,
				"cpu_count":  runtime.NumCPU(),
				"goroutines": runtime.NumGoroutine(),
				"memory": map[string]any{
					"heap_alloc": mem.HeapAlloc,
					"sys":        mem.Sys,
				},
				"workdir":   opts.Workdir,
				"timestamp": opts.Now().Format(time.RFC3339),
			}, nil
		}),
	}
}
