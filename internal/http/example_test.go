package http_test

import (
	"context"
	"time"

	"go.uber.org/zap"

	httpserver "github.com/fyrsmithlabs/agentloop/internal/http"
	"github.com/fyrsmithlabs/agentloop/internal/llm"
	"github.com/fyrsmithlabs/agentloop/internal/orchestrator"
	"github.com/fyrsmithlabs/agentloop/internal/tools"
)

// ExampleServer wires an orchestrator and its tool registry into the API.
func ExampleServer() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	transport := llm.TransportFunc(func(ctx context.Context, prompt string, _ llm.GenerateOptions) (string, error) {
		return `{"plan": "answer directly", "tools": []}`, nil
	})
	planner, err := llm.New(transport, llm.Config{}, logger)
	if err != nil {
		logger.Fatal("llm", zap.Error(err))
	}

	registry := tools.NewRegistry()
	orch, err := orchestrator.New(orchestrator.Deps{
		Planner:  planner,
		Registry: registry,
	}, orchestrator.DefaultConfig(), nil)
	if err != nil {
		logger.Fatal("orchestrator", zap.Error(err))
	}

	server, err := httpserver.NewServer(httpserver.Deps{
		Runner: orch,
		Tools:  registry,
	}, logger, &httpserver.Config{Host: "localhost", Port: 8080})
	if err != nil {
		logger.Fatal("http server", zap.Error(err))
	}

	go func() {
		if err := server.Start(); err != nil {
			logger.Error("server error", zap.Error(err))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(ctx)
}
