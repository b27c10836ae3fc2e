// Package config provides configuration loading for agentloop.
//
// Configuration is layered: built-in defaults, an optional YAML file, then
// AGENTLOOP_* environment variables.
package config

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig is returned when validation fails.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds the complete agentloop configuration.
type Config struct {
	Agent      AgentConfig      `koanf:"agent"`
	LLM        LLMConfig        `koanf:"llm"`
	Memory     MemoryConfig     `koanf:"memory"`
	Embeddings EmbeddingsConfig `koanf:"embeddings"`
	Tools      ToolsConfig      `koanf:"tools"`
	RunStore   RunStoreConfig   `koanf:"runstore"`
	Server     ServerConfig     `koanf:"server"`
	Events     EventsConfig     `koanf:"events"`
	Logging    LoggingConfig    `koanf:"logging"`
	Telemetry  TelemetryConfig  `koanf:"telemetry"`
}

// AgentConfig controls the orchestration loop.
type AgentConfig struct {
	MaxIterations        int      `koanf:"max_iterations"`
	PlanningTimeout      Duration `koanf:"planning_timeout"`
	ExecutionTimeout     Duration `koanf:"execution_timeout"`
	MemoryRetrievalK     int      `koanf:"memory_retrieval_k"`
	AutoApproveSafeTools bool     `koanf:"auto_approve_safe_tools"`
}

// LLMConfig selects and tunes the model transport.
type LLMConfig struct {
	Provider          string   `koanf:"provider"` // gemini or openai
	Model             string   `koanf:"model"`
	APIKey            Secret   `koanf:"api_key"`
	BaseURL           string   `koanf:"base_url"` // openai-compatible endpoints only
	Temperature       float64  `koanf:"temperature"`
	MaxOutputTokens   int      `koanf:"max_output_tokens"`
	MaxAttempts       int      `koanf:"max_attempts"`
	BackoffBase       Duration `koanf:"backoff_base"`
	BackoffMax        Duration `koanf:"backoff_max"`
	RequestsPerMinute float64  `koanf:"requests_per_minute"`
	Burst             int      `koanf:"burst"`
}

// MemoryConfig controls the vector-backed memory manager.
type MemoryConfig struct {
	Path              string `koanf:"path"` // empty keeps memory in-process only
	Compress          bool   `koanf:"compress"`
	ConversationLimit int    `koanf:"conversation_limit"`
	TaskLimit         int    `koanf:"task_limit"`
	InteractionLimit  int    `koanf:"interaction_limit"`
	ScrubSecrets      bool   `koanf:"scrub_secrets"`
}

// EmbeddingsConfig selects the embedding provider.
type EmbeddingsConfig struct {
	Provider  string `koanf:"provider"` // fastembed, openai or hash
	Model     string `koanf:"model"`
	CacheDir  string `koanf:"cache_dir"`
	Dimension int    `koanf:"dimension"`
	BaseURL   string `koanf:"base_url"` // openai only
	APIKey    Secret `koanf:"api_key"`  // openai only
}

// ToolsConfig controls the built-in tool set.
type ToolsConfig struct {
	Workdir                      string   `koanf:"workdir"`
	CommandTimeout               Duration `koanf:"command_timeout"`
	FetchTimeout                 Duration `koanf:"fetch_timeout"`
	RequireConfirmationByDefault bool     `koanf:"require_confirmation_by_default"`
	PermissionsFile              string   `koanf:"permissions_file"`
	SearchResults                int      `koanf:"search_results"`
}

// RunStoreConfig locates the run-state snapshot database.
type RunStoreConfig struct {
	Path string `koanf:"path"` // empty disables persistence
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// EventsConfig controls phase-event publishing.
type EventsConfig struct {
	NATSURL       string `koanf:"nats_url"` // empty disables publishing
	SubjectPrefix string `koanf:"subject_prefix"`
}

// LoggingConfig is the file-level view of logging settings.
type LoggingConfig struct {
	Level    string `koanf:"level"`
	Format   string `koanf:"format"`
	File     string `koanf:"file"`
	Sampling bool   `koanf:"sampling"`
}

// TelemetryConfig is the file-level view of OpenTelemetry settings.
type TelemetryConfig struct {
	Enabled        bool     `koanf:"enabled"`
	Endpoint       string   `koanf:"endpoint"`
	Protocol       string   `koanf:"protocol"`
	Insecure       bool     `koanf:"insecure"`
	SampleRate     float64  `koanf:"sample_rate"`
	MetricsEnabled bool     `koanf:"metrics_enabled"`
	ExportInterval Duration `koanf:"export_interval"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Agent: AgentConfig{
			MaxIterations:    10,
			PlanningTimeout:  Duration(30 * time.Second),
			ExecutionTimeout: Duration(120 * time.Second),
			MemoryRetrievalK: 5,
		},
		LLM: LLMConfig{
			Provider:          "gemini",
			Model:             "gemini-1.5-flash",
			Temperature:       0.7,
			MaxOutputTokens:   8192,
			MaxAttempts:       3,
			BackoffBase:       Duration(4 * time.Second),
			BackoffMax:        Duration(10 * time.Second),
			RequestsPerMinute: 60,
			Burst:             5,
		},
		Memory: MemoryConfig{
			Path:              "./data/memory",
			Compress:          true,
			ConversationLimit: 3,
			TaskLimit:         1,
			InteractionLimit:  2,
			ScrubSecrets:      true,
		},
		Embeddings: EmbeddingsConfig{
			Provider: "fastembed",
			Model:    "BAAI/bge-small-en-v1.5",
		},
		Tools: ToolsConfig{
			Workdir:                      ".",
			CommandTimeout:               Duration(30 * time.Second),
			FetchTimeout:                 Duration(10 * time.Second),
			RequireConfirmationByDefault: true,
			SearchResults:                5,
		},
		RunStore: RunStoreConfig{
			Path: "./data/runs.db",
		},
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            9090,
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Events: EventsConfig{
			SubjectPrefix: "agentloop.runs",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Telemetry: TelemetryConfig{
			Endpoint:       "localhost:4317",
			Protocol:       "grpc",
			Insecure:       true,
			SampleRate:     1.0,
			MetricsEnabled: true,
			ExportInterval: Duration(15 * time.Second),
		},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []error

	if c.Agent.MaxIterations < 1 {
		errs = append(errs, fmt.Errorf("agent.max_iterations must be >= 1, got %d", c.Agent.MaxIterations))
	}
	if c.Agent.PlanningTimeout.Duration() <= 0 {
		errs = append(errs, errors.New("agent.planning_timeout must be positive"))
	}
	if c.Agent.ExecutionTimeout.Duration() <= 0 {
		errs = append(errs, errors.New("agent.execution_timeout must be positive"))
	}
	if c.Agent.MemoryRetrievalK < 1 {
		errs = append(errs, fmt.Errorf("agent.memory_retrieval_k must be >= 1, got %d", c.Agent.MemoryRetrievalK))
	}

	switch c.LLM.Provider {
	case "gemini", "openai":
	default:
		errs = append(errs, fmt.Errorf("llm.provider must be gemini or openai, got %q", c.LLM.Provider))
	}
	if c.LLM.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("llm.max_attempts must be >= 1, got %d", c.LLM.MaxAttempts))
	}
	if c.LLM.BackoffBase.Duration() > c.LLM.BackoffMax.Duration() {
		errs = append(errs, errors.New("llm.backoff_base must not exceed llm.backoff_max"))
	}
	if c.LLM.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("llm.requests_per_minute must be positive"))
	}

	if c.Memory.ConversationLimit < 0 || c.Memory.TaskLimit < 0 || c.Memory.InteractionLimit < 0 {
		errs = append(errs, errors.New("memory source limits must not be negative"))
	}

	switch c.Embeddings.Provider {
	case "fastembed", "openai", "hash":
	default:
		errs = append(errs, fmt.Errorf("embeddings.provider must be fastembed, openai or hash, got %q", c.Embeddings.Provider))
	}

	if c.Tools.CommandTimeout.Duration() <= 0 || c.Tools.FetchTimeout.Duration() <= 0 {
		errs = append(errs, errors.New("tool timeouts must be positive"))
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}

	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		errs = append(errs, fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format))
	}

	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		errs = append(errs, fmt.Errorf("telemetry.sample_rate must be between 0 and 1, got %f", c.Telemetry.SampleRate))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}
