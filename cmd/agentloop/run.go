package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/agentloop/internal/config"
	"github.com/fyrsmithlabs/agentloop/internal/events"
	"github.com/fyrsmithlabs/agentloop/internal/orchestrator"
)

type runFlags struct {
	sessionID   string
	taskID      string
	follow      bool
	autoApprove bool
}

func newRunCmd() *cobra.Command {
	var flags runFlags
	cmd := &cobra.Command{
		Use:   `run "<message>"`,
		Short: "Run one request interactively",
		Long: `Run one request to completion, printing each phase and asking on stdin
before running tools that need confirmation.

With --follow, phases are read back from NATS (events.nats_url) instead
of the in-process listener, which exercises the same stream other
subscribers see.

Examples:
  agentloop run "what's in the current directory?"
  agentloop run --session demo --task t1 "summarise README.md"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			opts := appOptions{stderrLogs: true, events: flags.follow}
			return runOnce(cmd.Context(), cfg, opts, flags, args[0], cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&flags.sessionID, "session", "", "session id (default: generated)")
	cmd.Flags().StringVar(&flags.taskID, "task", "", "task id within the session")
	cmd.Flags().BoolVar(&flags.follow, "follow", false, "print phases from the NATS event stream")
	cmd.Flags().BoolVarP(&flags.autoApprove, "yes", "y", false, "approve every tool without asking")
	return cmd
}

func runOnce(ctx context.Context, cfg *config.Config, opts appOptions, flags runFlags, message string, in io.Reader, out io.Writer) error {
	a, err := newApp(ctx, cfg, opts)
	if err != nil {
		return err
	}
	defer a.close()

	sessionID := flags.sessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	if flags.follow && a.nc != nil {
		sub, err := events.Watch(a.nc, cfg.Events.SubjectPrefix, sessionID, func(ev events.PhaseEvent) {
			fmt.Fprintf(out, "[%s] %s\n", ev.TaskID, ev.Phase)
		})
		if err != nil {
			return err
		}
		defer drain(sub, a)
	} else {
		if flags.follow {
			a.logger.Warn(ctx, "--follow needs events.nats_url; printing phases locally")
		}
		a.orch.OnAnyPhase(func(_ context.Context, phase orchestrator.Phase, st *orchestrator.RunState) error {
			fmt.Fprintf(out, "[%s] %s\n", st.TaskID, phase)
			return nil
		})
	}

	state, err := a.orch.ProcessMessage(ctx, message, sessionID, flags.taskID)
	if err != nil {
		return err
	}

	prompt := bufio.NewScanner(in)
	for state.Phase == orchestrator.PhaseAwaitingApproval {
		approved, rejected, eof := decide(state, a, prompt, out, flags.autoApprove)
		if eof {
			fmt.Fprintf(out, "\ninput closed; run left awaiting approval for: %s\n", strings.Join(state.PendingApprovals, ", "))
			break
		}
		if len(rejected) > 0 {
			if state, err = a.orch.RejectTools(ctx, state.SessionID, state.TaskID, rejected); err != nil {
				return err
			}
		}
		if len(approved) > 0 && state.Phase == orchestrator.PhaseAwaitingApproval {
			if state, err = a.orch.ApproveTools(ctx, state.SessionID, state.TaskID, approved); err != nil {
				return err
			}
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	printOutcome(out, state)
	return nil
}

// decide asks about every pending tool. EOF on stdin abandons the round
// so nothing is decided without an answer.
func decide(state *orchestrator.RunState, a *app, prompt *bufio.Scanner, out io.Writer, yes bool) (approved, rejected []string, eof bool) {
	for _, name := range state.PendingApprovals {
		if yes {
			approved = append(approved, name)
			continue
		}
		risk := 0
		if info, ok := a.registry.Info(name); ok {
			risk = info.RiskLevel
		}
		fmt.Fprintf(out, "Run %s (risk %d) with %s? [y/N] ", name, risk, formatArgs(state.ToolArgs[name]))
		if !prompt.Scan() {
			return nil, nil, true
		}
		switch strings.ToLower(strings.TrimSpace(prompt.Text())) {
		case "y", "yes":
			approved = append(approved, name)
		default:
			rejected = append(rejected, name)
		}
	}
	return approved, rejected, false
}

func formatArgs(args map[string]any) string {
	if len(args) == 0 {
		return "no arguments"
	}
	parts := make([]string, 0, len(args))
	for k, v := range args {
		parts = append(parts, fmt.Sprintf("%s=%v", k, v))
	}
	return strings.Join(parts, ", ")
}

func printOutcome(out io.Writer, state *orchestrator.RunState) {
	fmt.Fprintf(out, "\nsession: %s  iterations: %d\n", state.SessionID, state.IterationCount)
	if state.ErrorMessage != "" {
		fmt.Fprintf(out, "error: %s\n", state.ErrorMessage)
	}
	for name, r := range state.ToolResults {
		if r.Success {
			fmt.Fprintf(out, "  %s: ok\n", name)
		} else {
			fmt.Fprintf(out, "  %s: %s\n", name, r.Error)
		}
	}
	for i := len(state.Messages) - 1; i >= 0; i-- {
		if m := state.Messages[i]; m.Role == orchestrator.RoleAssistant {
			fmt.Fprintf(out, "\n%s\n", m.Content)
			break
		}
	}
}

// drain waits for in-flight events so the last phases are printed.
func drain(sub *nats.Subscription, a *app) {
	if a.publisher != nil {
		_ = a.publisher.Flush(context.Background())
	}
	if err := sub.Drain(); err != nil {
		a.logger.Underlying().Debug("drain subscription", zap.Error(err))
		return
	}
	deadline := time.Now().Add(2 * time.Second)
	for sub.IsValid() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
}
