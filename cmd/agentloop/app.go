package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/agentloop/internal/config"
	"github.com/fyrsmithlabs/agentloop/internal/embeddings"
	"github.com/fyrsmithlabs/agentloop/internal/events"
	"github.com/fyrsmithlabs/agentloop/internal/llm"
	"github.com/fyrsmithlabs/agentloop/internal/llm/gemini"
	"github.com/fyrsmithlabs/agentloop/internal/llm/langchain"
	"github.com/fyrsmithlabs/agentloop/internal/logging"
	"github.com/fyrsmithlabs/agentloop/internal/memory"
	"github.com/fyrsmithlabs/agentloop/internal/orchestrator"
	"github.com/fyrsmithlabs/agentloop/internal/runstore"
	"github.com/fyrsmithlabs/agentloop/internal/secrets"
	"github.com/fyrsmithlabs/agentloop/internal/telemetry"
	"github.com/fyrsmithlabs/agentloop/internal/tools"
	"github.com/fyrsmithlabs/agentloop/internal/tools/builtin"
	"github.com/fyrsmithlabs/agentloop/internal/vectorstore"
)

// appOptions vary the wiring per command.
type appOptions struct {
	// stderrLogs keeps stdout free for MCP frames or interactive output.
	stderrLogs bool
	// events connects to NATS when events.nats_url is set.
	events bool
	// transport replaces the configured LLM provider.
	transport llm.Transport
}

// app holds every wired component. close releases them in reverse order.
type app struct {
	cfg       *config.Config
	logger    *logging.Logger
	telemetry *telemetry.Telemetry
	registry  *tools.Registry
	perms     *tools.PermissionFile
	memory    *memory.Manager
	llm       *llm.Adapter
	runs      *runstore.SQLiteStore
	nc        *nats.Conn
	publisher *events.Publisher
	orch      *orchestrator.Orchestrator

	closers []func() error
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// newApp wires configuration, logging, telemetry, memory, tools, the LLM
// adapter and the orchestrator. On error everything opened so far is closed.
func newApp(ctx context.Context, cfg *config.Config, opts appOptions) (_ *app, err error) {
	a := &app{cfg: cfg}
	defer func() {
		if err != nil {
			_ = a.close()
		}
	}()

	a.telemetry, err = telemetry.New(ctx, telemetry.FromSettings(cfg.Telemetry, version))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	a.onClose(func() error { return a.telemetry.Shutdown(context.Background()) })

	logCfg, err := logging.FromSettings(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to configure logging: %w", err)
	}
	if opts.stderrLogs {
		logCfg.Output.Stdout = false
		logCfg.Output.Stderr = true
	}
	logCfg.Output.OTEL = cfg.Telemetry.Enabled
	a.logger, err = logging.NewLogger(logCfg, a.telemetry.LoggerProvider())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.onClose(a.logger.Sync)
	zl := a.logger.Underlying()

	retriever, err := a.initMemory(cfg, zl)
	if err != nil {
		return nil, err
	}

	if err := a.initTools(cfg, zl); err != nil {
		return nil, err
	}

	transport := opts.transport
	if transport == nil {
		transport, err = newTransport(ctx, cfg.LLM)
		if err != nil {
			return nil, err
		}
	}
	a.llm, err = llm.New(transport, llm.ConfigFromSettings(cfg.LLM), zl.Named("llm"))
	if err != nil {
		return nil, fmt.Errorf("failed to create llm adapter: %w", err)
	}

	var orchOpts []orchestrator.Option
	if cfg.RunStore.Path != "" {
		a.runs, err = runstore.Open(ctx, cfg.RunStore.Path, zl.Named("runstore"))
		if err != nil {
			return nil, err
		}
		a.onClose(a.runs.Close)
		orchOpts = append(orchOpts, orchestrator.WithStateStore(a.runs))
	}

	deps := orchestrator.Deps{
		Planner:   a.llm,
		Context:   retriever,
		Registry:  a.registry,
		Responder: a.llm,
	}
	if a.memory != nil {
		deps.Memory = a.memory
	}
	a.orch, err = orchestrator.New(deps, orchestrator.ConfigFromSettings(cfg.Agent), a.logger.Named("orchestrator"), orchOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create orchestrator: %w", err)
	}

	if opts.events && cfg.Events.NATSURL != "" {
		if err := a.initEvents(cfg, zl); err != nil {
			return nil, err
		}
	}

	model := a.llm.ModelInfo()
	a.logger.Info(ctx, "agentloop initialized",
		zap.String("llm_provider", model.Provider),
		zap.String("llm_model", model.Model),
		zap.Float64("llm_temperature", model.Temperature),
		zap.Int("llm_max_output_tokens", model.MaxOutputTokens),
		zap.Int("llm_max_attempts", model.MaxAttempts),
		logging.Secret("llm_api_key", cfg.LLM.APIKey),
		zap.Int("tools", a.registry.Len()),
		zap.Bool("memory", a.memory != nil),
		zap.Bool("run_store", a.runs != nil),
		zap.Bool("events", a.publisher != nil),
	)
	return a, nil
}

// initMemory opens the vector store and memory manager. A failing
// embedding provider disables memory rather than the whole agent.
func (a *app) initMemory(cfg *config.Config, logger *zap.Logger) (orchestrator.ContextRetriever, error) {
	embedder, err := embeddings.NewProvider(cfg.Embeddings)
	if err != nil {
		logger.Warn("memory disabled: embeddings unavailable", zap.Error(err))
		return nil, nil
	}
	a.onClose(embedder.Close)

	store, err := vectorstore.NewChromemStore(vectorstore.ChromemConfig{
		Path:     cfg.Memory.Path,
		Compress: cfg.Memory.Compress,
	}, embedder, logger.Named("vectorstore"))
	if err != nil {
		return nil, fmt.Errorf("failed to open memory store: %w", err)
	}
	a.onClose(store.Close)

	var mopts []memory.ManagerOption
	if cfg.Memory.ScrubSecrets {
		scrubber, err := secrets.New()
		if err != nil {
			return nil, fmt.Errorf("failed to create secret scrubber: %w", err)
		}
		mopts = append(mopts, memory.WithScrubber(scrubber))
	}
	a.memory, err = memory.NewManager(store, logger.Named("memory"), mopts...)
	if err != nil {
		return nil, err
	}

	limits := map[memory.ItemType]int{
		memory.ItemConversation: cfg.Memory.ConversationLimit,
		memory.ItemTask:         cfg.Memory.TaskLimit,
		memory.ItemInteraction:  cfg.Memory.InteractionLimit,
	}
	return memory.NewAggregator(logger.Named("context"), memory.WithSources(limits, a.memory.Sources()...)), nil
}

func (a *app) initTools(cfg *config.Config, logger *zap.Logger) error {
	a.registry = tools.NewRegistry()
	if err := builtin.Register(a.registry, builtin.OptionsFromConfig(cfg)); err != nil {
		return fmt.Errorf("failed to register built-in tools: %w", err)
	}
	if cfg.Tools.PermissionsFile == "" {
		return nil
	}
	a.perms = tools.NewPermissionFile(cfg.Tools.PermissionsFile, a.registry, logger.Named("permissions"))
	applied, err := a.perms.Apply()
	if err != nil {
		return err
	}
	logger.Info("tool permissions applied", zap.Strings("tools", applied))
	return nil
}

func (a *app) initEvents(cfg *config.Config, logger *zap.Logger) error {
	nc, err := events.Connect(cfg.Events.NATSURL)
	if err != nil {
		return fmt.Errorf("failed to connect to nats: %w", err)
	}
	a.nc = nc
	a.onClose(func() error { nc.Close(); return nil })

	a.publisher = events.NewPublisher(nc, cfg.Events.SubjectPrefix, logger.Named("events"))
	a.orch.OnAnyPhase(a.publisher.Listener())
	return nil
}

// watchPermissions re-applies the permissions file until ctx ends.
func (a *app) watchPermissions(ctx context.Context) {
	if a.perms == nil {
		return
	}
	go func() {
		if err := a.perms.Watch(ctx); err != nil {
			a.logger.Warn(ctx, "permission watcher stopped", zap.Error(err))
		}
	}()
}

func (a *app) onClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

func (a *app) close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// newTransport picks the model backend for cfg.Provider.
func newTransport(ctx context.Context, cfg config.LLMConfig) (llm.Transport, error) {
	switch cfg.Provider {
	case "gemini", "":
		t, err := gemini.New(ctx, cfg.APIKey.Value())
		if err != nil {
			return nil, fmt.Errorf("%w (set AGENTLOOP_LLM_API_KEY)", err)
		}
		return t, nil
	case "openai":
		return langchain.New(langchain.Config{
			APIKey:  cfg.APIKey.Value(),
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
		})
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
