package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/agentloop/internal/memory"
	"github.com/fyrsmithlabs/agentloop/internal/orchestrator"
	"github.com/fyrsmithlabs/agentloop/internal/tools"
)

// Runner is the subset of the orchestrator exposed as MCP tools.
type Runner interface {
	ProcessMessage(ctx context.Context, message, sessionID, taskID string) (*orchestrator.RunState, error)
	ApproveTools(ctx context.Context, sessionID, taskID string, names []string) (*orchestrator.RunState, error)
	RejectTools(ctx context.Context, sessionID, taskID string, names []string) (*orchestrator.RunState, error)
	State(sessionID, taskID string) (*orchestrator.RunState, bool)
}

// Catalog lists the tools the agent can call.
type Catalog interface {
	Export() []tools.Info
}

// History reads stored conversation turns and task records.
type History interface {
	ConversationHistory(ctx context.Context, sessionID string, limit int) ([]memory.ConversationTurn, error)
	TaskHistory(ctx context.Context, sessionID, status string, limit int) ([]memory.TaskRecord, error)
}

// Server is an MCP server backed by an orchestrator.
type Server struct {
	mcp     *mcp.Server
	runner  Runner
	catalog Catalog
	history History
	metrics *Metrics
	logger  *zap.Logger
}

// Option configures optional Server capabilities.
type Option func(*Server)

// WithHistory adds the session_history tool.
func WithHistory(h History) Option {
	return func(s *Server) { s.history = h }
}

// Config configures the MCP server.
type Config struct {
	// Name is the implementation name reported to hosts (default: "agentloop").
	Name string

	// Version is the implementation version (default: "dev").
	Version string

	Logger *zap.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Name:    "agentloop",
		Version: "dev",
		Logger:  zap.NewNop(),
	}
}

// NewServer creates an MCP server and registers its tools.
func NewServer(cfg *Config, runner Runner, catalog Catalog, opts ...Option) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Name == "" {
		cfg.Name = "agentloop"
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if runner == nil {
		return nil, fmt.Errorf("runner is required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("tool catalog is required")
	}

	s := &Server{
		mcp: mcp.NewServer(&mcp.Implementation{
			Name:    cfg.Name,
			Version: cfg.Version,
		}, nil),
		runner:  runner,
		catalog: catalog,
		metrics: NewMetrics(cfg.Logger),
		logger:  cfg.Logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()

	return s, nil
}

// Run serves on stdio until ctx ends or the host disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting MCP server on stdio transport")
	if err := s.mcp.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("server run failed: %w", err)
	}
	return nil
}

// Connect serves a single session over t. Used with in-memory transports.
func (s *Server) Connect(ctx context.Context, t mcp.Transport) (*mcp.ServerSession, error) {
	return s.mcp.Connect(ctx, t, nil)
}
