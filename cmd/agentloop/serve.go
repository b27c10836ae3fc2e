package main

import (
	"context"
	"errors"
	nethttp "net/http"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/agentloop/internal/config"
	httpserver "github.com/fyrsmithlabs/agentloop/internal/http"
)

func newServeCmd() *cobra.Command {
	var (
		host string
		port int
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the agent over HTTP",
		Long: `Serve the agent over a JSON HTTP API with Prometheus metrics at /metrics.

Phase events are published to NATS when events.nats_url is set, and run
state is persisted to SQLite when runstore.path is set.

Examples:
  agentloop serve
  agentloop serve --port 8080 --config agentloop.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("host") {
				cfg.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "listen host (overrides server.host)")
	cmd.Flags().IntVar(&port, "port", 0, "listen port (overrides server.port)")
	return cmd
}

// serve blocks until ctx is cancelled, then shuts down within
// server.shutdown_timeout.
func serve(ctx context.Context, cfg *config.Config) error {
	a, err := newApp(ctx, cfg, appOptions{events: true})
	if err != nil {
		return err
	}
	defer a.close()

	a.watchPermissions(ctx)

	deps := httpserver.Deps{Runner: a.orch, Tools: a.registry, Telemetry: a.telemetry, LLM: a.llm}
	if a.memory != nil {
		deps.Memory = a.memory
		deps.History = a.memory
	}
	srv, err := httpserver.NewServer(deps, a.logger.Underlying().Named("http"), &httpserver.Config{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	})
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if errors.Is(err, nethttp.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	a.logger.Info(ctx, "shutting down", zap.Duration("timeout", cfg.Server.ShutdownTimeout.Duration()))
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if a.publisher != nil {
		if err := a.publisher.Flush(shutdownCtx); err != nil {
			a.logger.Warn(ctx, "event flush failed", zap.Error(err))
		}
	}
	return nil
}
