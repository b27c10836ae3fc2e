// Package http exposes the agent loop over a JSON HTTP API.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/agentloop/internal/llm"
	"github.com/fyrsmithlabs/agentloop/internal/logging"
	"github.com/fyrsmithlabs/agentloop/internal/memory"
	"github.com/fyrsmithlabs/agentloop/internal/orchestrator"
	"github.com/fyrsmithlabs/agentloop/internal/telemetry"
	"github.com/fyrsmithlabs/agentloop/internal/tools"
)

// Runner is the subset of the orchestrator the server drives.
type Runner interface {
	ProcessMessage(ctx context.Context, message, sessionID, taskID string) (*orchestrator.RunState, error)
	ApproveTools(ctx context.Context, sessionID, taskID string, names []string) (*orchestrator.RunState, error)
	RejectTools(ctx context.Context, sessionID, taskID string, names []string) (*orchestrator.RunState, error)
	Resume(ctx context.Context, sessionID, taskID string) (*orchestrator.RunState, error)
	State(sessionID, taskID string) (*orchestrator.RunState, bool)
	Runs() []*orchestrator.RunState
}

// ToolCatalog is the subset of the tool registry the server reads and edits.
type ToolCatalog interface {
	Export() []tools.Info
	Info(name string) (tools.Info, bool)
	SetPermission(name string, perm tools.Permission) bool
}

// MemoryStats reports memory store sizes.
type MemoryStats interface {
	Stats(ctx context.Context) (memory.Stats, error)
}

// History reads stored conversation turns and task records.
type History interface {
	ConversationHistory(ctx context.Context, sessionID string, limit int) ([]memory.ConversationTurn, error)
	TaskHistory(ctx context.Context, sessionID, status string, limit int) ([]memory.TaskRecord, error)
}

// HealthReporter reports exporter health for /health.
type HealthReporter interface {
	Health() telemetry.HealthStatus
}

// ModelChecker describes the model and checks it is reachable.
type ModelChecker interface {
	ModelInfo() llm.ModelInfo
	HealthCheck(ctx context.Context) llm.Health
}

// Deps are the services behind the API. Only Runner and Tools are
// required.
type Deps struct {
	Runner    Runner
	Tools     ToolCatalog
	Memory    MemoryStats
	History   History
	Telemetry HealthReporter
	LLM       ModelChecker
}

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 200
	llmCheckTimeout     = 15 * time.Second
)

// Server provides HTTP endpoints for agentloop.
type Server struct {
	echo   *echo.Echo
	deps   Deps
	logger *zap.Logger
	config *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// NewServer creates a new HTTP server.
func NewServer(deps Deps, logger *zap.Logger, cfg *Config) (*Server, error) {
	if deps.Runner == nil {
		return nil, fmt.Errorf("runner cannot be nil")
	}
	if deps.Tools == nil {
		return nil, fmt.Errorf("tool catalog cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 8080,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(requestContext())
	e.Use(NewHTTPMetrics(logger).MetricsMiddleware())
	e.Use(requestLogger(logger))

	s := &Server{
		echo:   e,
		deps:   deps,
		logger: logger,
		config: cfg,
	}
	s.registerRoutes()

	return s, nil
}

// requestContext copies the request ID onto the request context so logs
// written while serving it carry request.id.
func requestContext() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if id := c.Response().Header().Get(echo.HeaderXRequestID); id != "" {
				req := c.Request()
				c.SetRequest(req.WithContext(logging.WithRequestID(req.Context(), id)))
			}
			return next(c)
		}
	}
}

func requestLogger(logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				// Let echo write the response so the logged status is final.
				c.Error(err)
			}
			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("route", c.Path()),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return nil
		}
	}
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")

	run := v1.Group("/sessions/:session/tasks/:task")
	run.POST("/messages", s.handleMessage)
	run.POST("/approve", s.handleApprove)
	run.POST("/reject", s.handleReject)
	run.POST("/resume", s.handleResume)
	run.GET("/state", s.handleState)

	v1.GET("/sessions/:session/history", s.handleHistory)

	v1.GET("/runs", s.handleRuns)
	v1.GET("/tools", s.handleTools)
	v1.PUT("/tools/:name/permission", s.handlePermission)
	v1.GET("/memory/stats", s.handleMemoryStats)
}

// handleHealth reports process health. The model is only contacted when
// the caller asks with ?llm=true.
func (s *Server) handleHealth(c echo.Context) error {
	resp := HealthResponse{Status: "ok"}
	if s.deps.Telemetry != nil {
		h := s.deps.Telemetry.Health()
		resp.Telemetry = &h
	}
	if s.deps.LLM != nil {
		info := s.deps.LLM.ModelInfo()
		resp.Model = &info

		if check, _ := strconv.ParseBool(c.QueryParam("llm")); check {
			ctx, cancel := context.WithTimeout(c.Request().Context(), llmCheckTimeout)
			defer cancel()
			h := s.deps.LLM.HealthCheck(ctx)
			resp.LLM = &h
			if !h.Healthy {
				resp.Status = "degraded"
			}
		}
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleMessage(c echo.Context) error {
	var req MessageRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid message request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Message) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message field is required")
	}

	state, err := s.deps.Runner.ProcessMessage(c.Request().Context(), req.Message, c.Param("session"), c.Param("task"))
	if err != nil {
		return s.runError(err)
	}
	return c.JSON(http.StatusOK, state)
}

func (s *Server) handleApprove(c echo.Context) error {
	req, err := bindTools(c)
	if err != nil {
		return err
	}
	state, err := s.deps.Runner.ApproveTools(c.Request().Context(), c.Param("session"), c.Param("task"), req.Tools)
	if err != nil {
		return s.runError(err)
	}
	return c.JSON(http.StatusOK, state)
}

func (s *Server) handleReject(c echo.Context) error {
	req, err := bindTools(c)
	if err != nil {
		return err
	}
	state, err := s.deps.Runner.RejectTools(c.Request().Context(), c.Param("session"), c.Param("task"), req.Tools)
	if err != nil {
		return s.runError(err)
	}
	return c.JSON(http.StatusOK, state)
}

func (s *Server) handleResume(c echo.Context) error {
	state, err := s.deps.Runner.Resume(c.Request().Context(), c.Param("session"), c.Param("task"))
	if err != nil {
		return s.runError(err)
	}
	return c.JSON(http.StatusOK, state)
}

func (s *Server) handleState(c echo.Context) error {
	state, ok := s.deps.Runner.State(c.Param("session"), c.Param("task"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, orchestrator.ErrRunNotFound.Error())
	}
	return c.JSON(http.StatusOK, state)
}

// handleRuns lists known runs, optionally filtered by ?phase=.
func (s *Server) handleRuns(c echo.Context) error {
	phase := orchestrator.Phase(c.QueryParam("phase"))
	if phase != "" && !phase.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("unknown phase %q", phase))
	}

	runs := make([]*orchestrator.RunState, 0)
	for _, st := range s.deps.Runner.Runs() {
		if phase == "" || st.Phase == phase {
			runs = append(runs, st)
		}
	}
	return c.JSON(http.StatusOK, RunsResponse{Runs: runs, Count: len(runs)})
}

func (s *Server) handleTools(c echo.Context) error {
	return c.JSON(http.StatusOK, ToolsResponse{Tools: s.deps.Tools.Export()})
}

func (s *Server) handlePermission(c echo.Context) error {
	var req PermissionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	perm, err := tools.ParsePermission(req.Permission)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	name := c.Param("name")
	if !s.deps.Tools.SetPermission(name, perm) {
		return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("%s: %s", tools.ErrToolNotFound, name))
	}
	s.logger.Info("tool permission changed",
		zap.String("tool", name),
		zap.Stringer("permission", perm),
	)

	info, _ := s.deps.Tools.Info(name)
	return c.JSON(http.StatusOK, info)
}

func (s *Server) handleMemoryStats(c echo.Context) error {
	if s.deps.Memory == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "memory is not configured")
	}
	stats, err := s.deps.Memory.Stats(c.Request().Context())
	if err != nil {
		s.logger.Error("memory stats failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "memory stats unavailable")
	}
	return c.JSON(http.StatusOK, newMemoryStatsResponse(stats))
}

// handleHistory returns a session's recent conversation turns and tasks.
// ?limit= caps both lists; ?status= filters tasks.
func (s *Server) handleHistory(c echo.Context) error {
	if s.deps.History == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "memory is not configured")
	}
	limit := defaultHistoryLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = min(n, maxHistoryLimit)
	}
	status := c.QueryParam("status")
	switch status {
	case "", memory.TaskActive, memory.TaskCompleted, memory.TaskFailed:
	default:
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("unknown task status %q", status))
	}

	ctx := c.Request().Context()
	session := c.Param("session")
	turns, err := s.deps.History.ConversationHistory(ctx, session, limit)
	if err != nil {
		s.logger.Error("conversation history failed", zap.String("session_id", session), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "history unavailable")
	}
	tasks, err := s.deps.History.TaskHistory(ctx, session, status, limit)
	if err != nil {
		s.logger.Error("task history failed", zap.String("session_id", session), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "history unavailable")
	}
	return c.JSON(http.StatusOK, newHistoryResponse(session, turns, tasks))
}

func bindTools(c echo.Context) (ToolsRequest, error) {
	var req ToolsRequest
	if err := c.Bind(&req); err != nil {
		return req, echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	return req, nil
}

// runError maps orchestrator errors onto HTTP statuses.
func (s *Server) runError(err error) error {
	switch {
	case errors.Is(err, orchestrator.ErrRunNotFound), errors.Is(err, tools.ErrToolNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, orchestrator.ErrNotAwaitingApproval):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, orchestrator.ErrEmptyMessage):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, context.Canceled):
		return echo.NewHTTPError(499, "client closed request")
	}
	s.logger.Error("run request failed", zap.Error(err))
	return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
}

// Start starts the HTTP server. It returns http.ErrServerClosed after Shutdown.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
