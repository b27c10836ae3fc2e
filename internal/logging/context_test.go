package logging

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/trace"
)

func fieldKeys(ctx context.Context) []string {
	var keys []string
	for _, f := range ContextFields(ctx) {
		keys = append(keys, f.Key)
	}
	return keys
}

func TestContextFields_Empty(t *testing.T) {
	assert.Empty(t, ContextFields(context.Background()))
}

func TestContextFields_RunAndRequest(t *testing.T) {
	ctx := WithRun(context.Background(), "sess", "task")
	ctx = WithRequestID(ctx, "req-42")

	assert.Equal(t, []string{"session.id", "task.id", "request.id"}, fieldKeys(ctx))
	assert.Equal(t, "sess", SessionIDFromContext(ctx))
	assert.Equal(t, "task", TaskIDFromContext(ctx))
	assert.Equal(t, "req-42", RequestIDFromContext(ctx))
}

func TestContextFields_Trace(t *testing.T) {
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: trace.TraceID{1, 2, 3},
		SpanID:  trace.SpanID{4, 5, 6},
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	assert.Equal(t, []string{"trace_id", "span_id"}, fieldKeys(ctx))
}

func TestWithSessionID_RejectsInvalid(t *testing.T) {
	tests := []string{"", "has space", "line\nbreak", strings.Repeat("a", maxIDLen+1)}
	for _, id := range tests {
		ctx := WithSessionID(context.Background(), id)
		assert.Empty(t, SessionIDFromContext(ctx), "id %q", id)
	}
}
