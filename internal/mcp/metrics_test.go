package mcp

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/agentloop/internal/orchestrator"
	"github.com/fyrsmithlabs/agentloop/internal/tools"
)

func newTestMetrics() (*Metrics, *metric.ManualReader) {
	reader := metric.NewManualReader()
	mp := metric.NewMeterProvider(metric.WithReader(reader))
	m := &Metrics{
		meter:  mp.Meter(instrumentationName),
		logger: zap.NewNop(),
	}
	m.init()
	return m, reader
}

func sumOf(t *testing.T, reader *metric.ManualReader, name string) (int64, bool) {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "%s is not an int64 sum", name)
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			return total, true
		}
	}
	return 0, false
}

func TestMetrics_RecordInvocation(t *testing.T) {
	m, reader := newTestMetrics()
	ctx := context.Background()

	m.RecordInvocation(ctx, "run_state", 100*time.Millisecond, nil)
	m.RecordInvocation(ctx, "run_state", 50*time.Millisecond, orchestrator.ErrRunNotFound)

	invocations, ok := sumOf(t, reader, "agentloop.mcp.tool.invocations_total")
	require.True(t, ok)
	assert.Equal(t, int64(2), invocations)

	errs, ok := sumOf(t, reader, "agentloop.mcp.tool.errors_total")
	require.True(t, ok)
	assert.Equal(t, int64(1), errs)
}

func TestMetrics_TrackBalancesActiveRequests(t *testing.T) {
	m, reader := newTestMetrics()
	ctx := context.Background()

	done1 := m.track(ctx, "process_message")
	done2 := m.track(ctx, "process_message")
	done1(nil)

	active, ok := sumOf(t, reader, "agentloop.mcp.tool.active_requests")
	require.True(t, ok)
	assert.Equal(t, int64(1), active)

	done2(errors.New("boom"))
	active, _ = sumOf(t, reader, "agentloop.mcp.tool.active_requests")
	assert.Zero(t, active)
}

func TestCategorizeError(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{fmt.Errorf("lookup: %w", orchestrator.ErrRunNotFound), "not_found"},
		{tools.ErrToolNotFound, "not_found"},
		{fmt.Errorf("%w: phase is completed", orchestrator.ErrNotAwaitingApproval), "conflict"},
		{orchestrator.ErrEmptyMessage, "validation_error"},
		{fmt.Errorf("%w: tools is required", errInvalidInput), "validation_error"},
		{context.DeadlineExceeded, "timeout"},
		{context.Canceled, "canceled"},
		{errors.New("something else"), "internal_error"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, categorizeError(tt.err), "%v", tt.err)
	}
}
