package orchestrator

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

type listenerEntry struct {
	phase Phase // empty for every phase
	fn    Listener
}

// RegisterPhaseListener calls fn on every entry into phase.
func (o *Orchestrator) RegisterPhaseListener(phase Phase, fn Listener) error {
	if !phase.Valid() {
		return fmt.Errorf("unknown phase %q", phase)
	}
	if fn == nil {
		return fmt.Errorf("listener for %s is nil", phase)
	}
	o.listenersMu.Lock()
	o.listeners = append(o.listeners, listenerEntry{phase: phase, fn: fn})
	o.listenersMu.Unlock()
	return nil
}

// OnAnyPhase calls fn on every phase entry.
func (o *Orchestrator) OnAnyPhase(fn Listener) {
	if fn == nil {
		return
	}
	o.listenersMu.Lock()
	o.listeners = append(o.listeners, listenerEntry{fn: fn})
	o.listenersMu.Unlock()
}

// notify runs the listeners for phase in registration order. Each gets its
// own snapshot.
func (o *Orchestrator) notify(ctx context.Context, phase Phase, state *RunState) {
	o.listenersMu.RLock()
	entries := make([]listenerEntry, 0, len(o.listeners))
	for _, e := range o.listeners {
		if e.phase == "" || e.phase == phase {
			entries = append(entries, e)
		}
	}
	o.listenersMu.RUnlock()

	for i, e := range entries {
		if err := callListener(ctx, e.fn, phase, state.Clone()); err != nil {
			o.logger.Warn(ctx, "phase listener failed",
				zap.String("phase", string(phase)),
				zap.Int("listener", i),
				zap.Error(err))
		}
	}
}

func callListener(ctx context.Context, fn Listener, phase Phase, state *RunState) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("listener panic: %v", r)
		}
	}()
	return fn(ctx, phase, state)
}
