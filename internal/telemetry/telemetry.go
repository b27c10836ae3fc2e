package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Health states reported by Telemetry.Health.
const (
	StateDisabled = "disabled"
	StateOK       = "ok"
	StateDegraded = "degraded"
	StateStopped  = "stopped"
)

// HealthStatus describes the exporter pipeline.
type HealthStatus struct {
	State    string   `json:"state"`
	Exporter string   `json:"exporter,omitempty"`
	Errors   []string `json:"errors,omitempty"`
}

// Telemetry installs the agentloop trace and metric pipelines.
//
// A pipeline whose exporter cannot be built is skipped and recorded; the
// agent keeps running against the global no-op provider for that signal.
type Telemetry struct {
	config *Config

	tracer trace.TracerProvider
	meter  metric.MeterProvider

	mu        sync.Mutex
	shutdowns []func(context.Context) error
	failures  []error
	stopped   bool
}

// New builds the providers and installs them globally.
func New(ctx context.Context, cfg *Config) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid telemetry config: %w", err)
	}

	t := &Telemetry{
		config: cfg,
		tracer: otel.GetTracerProvider(),
		meter:  otel.GetMeterProvider(),
	}
	if !cfg.Enabled {
		return t, nil
	}

	res := newResource(cfg)

	if tp, err := newTracerProvider(ctx, cfg, res); err != nil {
		t.failures = append(t.failures, fmt.Errorf("traces: %w", err))
	} else {
		t.tracer = tp
		t.shutdowns = append(t.shutdowns, tp.Shutdown)
		otel.SetTracerProvider(tp)
	}

	if mp, err := newMeterProvider(ctx, cfg, res); err != nil {
		t.failures = append(t.failures, fmt.Errorf("metrics: %w", err))
	} else if mp != nil {
		t.meter = mp
		t.shutdowns = append(t.shutdowns, mp.Shutdown)
		otel.SetMeterProvider(mp)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return t, nil
}

// Tracer returns a tracer for an instrumentation scope.
func (t *Telemetry) Tracer(name string, opts ...trace.TracerOption) trace.Tracer {
	if t == nil {
		return otel.Tracer(name, opts...)
	}
	return t.tracer.Tracer(name, opts...)
}

// Meter returns a meter for an instrumentation scope.
func (t *Telemetry) Meter(name string, opts ...metric.MeterOption) metric.Meter {
	if t == nil {
		return otel.Meter(name, opts...)
	}
	return t.meter.Meter(name, opts...)
}

// LoggerProvider returns the provider for the otelzap bridge.
func (t *Telemetry) LoggerProvider() log.LoggerProvider {
	return global.GetLoggerProvider()
}

// Shutdown flushes and stops the pipelines in reverse start order. It is
// safe to call more than once.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}

	t.mu.Lock()
	shutdowns := t.shutdowns
	t.shutdowns = nil
	t.stopped = true
	t.mu.Unlock()

	if len(shutdowns) == 0 {
		return nil
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.config.ShutdownTimeout)
		defer cancel()
	}

	var errs []error
	for i := len(shutdowns) - 1; i >= 0; i-- {
		if err := shutdowns[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("telemetry shutdown: %w", err)
	}
	return nil
}

// Health reports the pipeline state for /health.
func (t *Telemetry) Health() HealthStatus {
	if t == nil || !t.config.Enabled {
		return HealthStatus{State: StateDisabled}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	status := HealthStatus{State: StateOK, Exporter: t.config.Protocol + " " + t.config.Endpoint}
	switch {
	case t.stopped:
		status.State = StateStopped
	case len(t.failures) > 0:
		status.State = StateDegraded
	}
	for _, err := range t.failures {
		status.Errors = append(status.Errors, err.Error())
	}
	return status
}

// IsEnabled reports whether at least one pipeline is exporting.
func (t *Telemetry) IsEnabled() bool {
	if t == nil || !t.config.Enabled {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.stopped && len(t.shutdowns) > 0
}
