package telemetry

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// TestTelemetry records spans in memory.
type TestTelemetry struct {
	*Telemetry
	Recorder *tracetest.SpanRecorder
}

// NewTestTelemetry returns telemetry whose tracer feeds an in-memory
// recorder. Nothing is installed globally until Install is called.
func NewTestTelemetry() *TestTelemetry {
	cfg := NewDefaultConfig()
	cfg.Enabled = true

	recorder := tracetest.NewSpanRecorder()
	tp := trace.NewTracerProvider(trace.WithSpanProcessor(recorder))

	t := &Telemetry{
		config:    cfg,
		tracer:    tp,
		meter:     otel.GetMeterProvider(),
		shutdowns: []func(ctx context.Context) error{tp.Shutdown},
	}
	return &TestTelemetry{Telemetry: t, Recorder: recorder}
}

// Install sets the recorder-backed tracer provider as the global one.
// Package-level tracers bind to the first provider installed, so a test
// binary should install once.
func (t *TestTelemetry) Install() {
	otel.SetTracerProvider(t.tracer)
}

// Spans returns all ended spans.
func (t *TestTelemetry) Spans() []trace.ReadOnlySpan {
	return t.Recorder.Ended()
}

// SpanByName finds the first ended span with the given name, or nil.
func (t *TestTelemetry) SpanByName(name string) trace.ReadOnlySpan {
	for _, span := range t.Spans() {
		if span.Name() == name {
			return span
		}
	}
	return nil
}

// SpansWith returns ended spans with the given name that carry key=value.
func (t *TestTelemetry) SpansWith(name, key string, value any) []trace.ReadOnlySpan {
	var out []trace.ReadOnlySpan
	for _, span := range t.Spans() {
		if span.Name() != name {
			continue
		}
		for _, attr := range span.Attributes() {
			if string(attr.Key) == key && attrValue(attr.Value) == value {
				out = append(out, span)
				break
			}
		}
	}
	return out
}

// AssertSpanAttribute fails tb unless the named span carries key=expected.
func (t *TestTelemetry) AssertSpanAttribute(tb testing.TB, spanName, key string, expected any) {
	tb.Helper()
	span := t.SpanByName(spanName)
	if span == nil {
		tb.Fatalf("span %q not found", spanName)
	}
	for _, attr := range span.Attributes() {
		if string(attr.Key) == key {
			if got := attrValue(attr.Value); got != expected {
				tb.Errorf("span %q attribute %q: got %v, want %v", spanName, key, got, expected)
			}
			return
		}
	}
	tb.Errorf("span %q missing attribute %q", spanName, key)
}

func attrValue(v attribute.Value) any {
	switch v.Type() {
	case attribute.STRING:
		return v.AsString()
	case attribute.INT64:
		return v.AsInt64()
	case attribute.FLOAT64:
		return v.AsFloat64()
	case attribute.BOOL:
		return v.AsBool()
	default:
		return v.AsInterface()
	}
}
