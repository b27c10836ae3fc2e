// Package llm adapts a text-generation transport into the calls the
// orchestrator needs: free-text completion, plan generation and reflection.
//
// Transport errors are retried with exponential backoff. Structured
// responses are extracted from model text by an ordered list of strategies
// and degrade to a fallback structure rather than failing.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/agentloop/internal/config"
)

// ErrLLMUnavailable is returned once every attempt against the transport
// has failed.
var ErrLLMUnavailable = errors.New("llm unavailable")

var tracer = otel.Tracer("agentloop/llm")

// Kind selects how a completion is requested.
type Kind int

const (
	FreeText Kind = iota
	StructuredJSON
)

func (k Kind) String() string {
	if k == StructuredJSON {
		return "structured_json"
	}
	return "free_text"
}

const jsonInstruction = "\n\nRespond with a single valid JSON object and nothing else."

// GenerateOptions are passed through to the transport on every attempt.
type GenerateOptions struct {
	Model           string
	Temperature     float64
	MaxOutputTokens int
}

// Transport sends one prompt to a model. Every error is treated as
// retryable.
type Transport interface {
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, prompt string, opts GenerateOptions) (string, error)

// Generate calls f.
func (f TransportFunc) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	return f(ctx, prompt, opts)
}

// Config tunes the adapter.
type Config struct {
	Provider        string
	Model           string
	Temperature     float64
	MaxOutputTokens int
	MaxAttempts     int
	BackoffBase     time.Duration
	BackoffMax      time.Duration

	// RequestsPerMinute <= 0 disables rate limiting.
	RequestsPerMinute float64
	Burst             int
}

// ConfigFromSettings maps the llm config section onto Config.
func ConfigFromSettings(s config.LLMConfig) Config {
	return Config{
		Provider:          s.Provider,
		Model:             s.Model,
		Temperature:       s.Temperature,
		MaxOutputTokens:   s.MaxOutputTokens,
		MaxAttempts:       s.MaxAttempts,
		BackoffBase:       s.BackoffBase.Duration(),
		BackoffMax:        s.BackoffMax.Duration(),
		RequestsPerMinute: s.RequestsPerMinute,
		Burst:             s.Burst,
	}
}

func (c *Config) applyDefaults() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = 4 * time.Second
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = 10 * time.Second
	}
	if c.Burst <= 0 {
		c.Burst = 1
	}
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithSleep replaces the backoff sleep, mainly for tests.
func WithSleep(fn SleepFunc) Option {
	return func(a *Adapter) { a.sleep = fn }
}

// Adapter wraps a Transport with retries, rate limiting and extraction.
type Adapter struct {
	transport Transport
	cfg       Config
	limiter   *rate.Limiter
	sleep     SleepFunc
	logger    *zap.Logger
}

// New creates an Adapter over transport.
func New(transport Transport, cfg Config, logger *zap.Logger, opts ...Option) (*Adapter, error) {
	if transport == nil {
		return nil, errors.New("llm: transport is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.applyDefaults()

	a := &Adapter{
		transport: transport,
		cfg:       cfg,
		sleep:     sleepContext,
		logger:    logger,
	}
	if cfg.RequestsPerMinute > 0 {
		a.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerMinute/60), cfg.Burst)
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

func (a *Adapter) newBackOff() *backoff.ExponentialBackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     a.cfg.BackoffBase,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         a.cfg.BackoffMax,
	}
	b.Reset()
	return b
}

// Complete sends prompt to the transport, retrying failed attempts.
// The prompt is identical on every attempt.
func (a *Adapter) Complete(ctx context.Context, prompt string, kind Kind) (string, error) {
	return a.complete(ctx, prompt, kind, a.cfg.MaxAttempts)
}

func (a *Adapter) complete(ctx context.Context, prompt string, kind Kind, attempts int) (string, error) {
	ctx, span := tracer.Start(ctx, "llm.complete", trace.WithAttributes(
		attribute.String("llm.model", a.cfg.Model),
		attribute.String("llm.kind", kind.String()),
	))
	defer span.End()

	if kind == StructuredJSON {
		prompt += jsonInstruction
	}

	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "rate limiter")
			return "", fmt.Errorf("%w: rate limiter: %w", ErrLLMUnavailable, err)
		}
	}

	opts := GenerateOptions{
		Model:           a.cfg.Model,
		Temperature:     a.cfg.Temperature,
		MaxOutputTokens: a.cfg.MaxOutputTokens,
	}
	b := a.newBackOff()

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		text, err := a.transport.Generate(ctx, prompt, opts)
		if err == nil {
			llmAttempts.WithLabelValues("success").Inc()
			span.SetAttributes(attribute.Int("llm.attempts", attempt))
			return text, nil
		}
		lastErr = err
		llmAttempts.WithLabelValues("failure").Inc()

		if attempt == attempts {
			break
		}
		delay := b.NextBackOff()
		a.logger.Warn("llm attempt failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))
		if err := a.sleep(ctx, delay); err != nil {
			lastErr = errors.Join(lastErr, err)
			break
		}
	}

	span.RecordError(lastErr)
	span.SetStatus(codes.Error, "llm unavailable")
	return "", fmt.Errorf("%w: %d attempts failed: %w", ErrLLMUnavailable, attempts, lastErr)
}

// ModelInfo describes the configured model.
type ModelInfo struct {
	Provider        string  `json:"provider"`
	Model           string  `json:"model"`
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"max_output_tokens"`
	MaxAttempts     int     `json:"max_attempts"`
}

// ModelInfo returns the adapter's model settings.
func (a *Adapter) ModelInfo() ModelInfo {
	return ModelInfo{
		Provider:        a.cfg.Provider,
		Model:           a.cfg.Model,
		Temperature:     a.cfg.Temperature,
		MaxOutputTokens: a.cfg.MaxOutputTokens,
		MaxAttempts:     a.cfg.MaxAttempts,
	}
}
