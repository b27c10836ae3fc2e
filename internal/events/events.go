// Package events publishes orchestrator phase transitions to NATS.
//
// Subjects have the form:
//
//	{prefix}.{session_id}.{task_id}.{phase}
//
// with an empty task ID published as "_".
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/agentloop/internal/orchestrator"
)

// DefaultPrefix is the subject prefix used when none is configured.
const DefaultPrefix = "agentloop.runs"

// PhaseEvent is the payload published on every phase entry.
type PhaseEvent struct {
	SessionID        string                             `json:"session_id"`
	TaskID           string                             `json:"task_id"`
	Phase            orchestrator.Phase                 `json:"phase"`
	IterationCount   int                                `json:"iteration_count"`
	SelectedTools    []string                           `json:"selected_tools,omitempty"`
	PendingApprovals []string                           `json:"pending_approvals,omitempty"`
	ToolResults      map[string]orchestrator.ToolResult `json:"tool_results,omitempty"`
	ErrorMessage     string                             `json:"error_message,omitempty"`
	Reflection       string                             `json:"reflection,omitempty"`
	Timestamp        time.Time                          `json:"timestamp"`
}

// NewPhaseEvent builds the event for state entering phase.
func NewPhaseEvent(phase orchestrator.Phase, state *orchestrator.RunState) PhaseEvent {
	return PhaseEvent{
		SessionID:        state.SessionID,
		TaskID:           state.TaskID,
		Phase:            phase,
		IterationCount:   state.IterationCount,
		SelectedTools:    state.SelectedTools,
		PendingApprovals: state.PendingApprovals,
		ToolResults:      state.ToolResults,
		ErrorMessage:     state.ErrorMessage,
		Reflection:       state.Reflection,
		Timestamp:        state.UpdatedAt,
	}
}

// Connect dials NATS with reconnects enabled.
func Connect(url string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("agentloop"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return nc, nil
}

// Publisher sends phase events to NATS.
type Publisher struct {
	nc     *nats.Conn
	prefix string
	logger *zap.Logger
}

// NewPublisher creates a Publisher. The connection stays owned by the
// caller.
func NewPublisher(nc *nats.Conn, prefix string, logger *zap.Logger) *Publisher {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{nc: nc, prefix: prefix, logger: logger}
}

// Subject returns the subject for a phase of a run.
func (p *Publisher) Subject(sessionID, taskID string, phase orchestrator.Phase) string {
	return Subject(p.prefix, sessionID, taskID, phase)
}

// Subject builds {prefix}.{session}.{task}.{phase} with tokens made safe
// for NATS.
func Subject(prefix, sessionID, taskID string, phase orchestrator.Phase) string {
	return strings.Join([]string{prefix, token(sessionID), token(taskID), string(phase)}, ".")
}

// token replaces characters NATS treats specially inside a subject token.
func token(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, s)
}

// Publish sends one event.
func (p *Publisher) Publish(ev PhaseEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal phase event: %w", err)
	}
	subject := p.Subject(ev.SessionID, ev.TaskID, ev.Phase)
	if err := p.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// Listener adapts the publisher to an orchestrator phase listener.
func (p *Publisher) Listener() orchestrator.Listener {
	return func(_ context.Context, phase orchestrator.Phase, state *orchestrator.RunState) error {
		return p.Publish(NewPhaseEvent(phase, state))
	}
}

// Flush waits for buffered events to reach the server.
func (p *Publisher) Flush(ctx context.Context) error {
	return p.nc.FlushWithContext(ctx)
}

// Watch registers fn for events of one run, or of every run when
// sessionID is empty. Malformed payloads are skipped. The caller
// unsubscribes.
func Watch(nc *nats.Conn, prefix, sessionID string, fn func(PhaseEvent)) (*nats.Subscription, error) {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	subject := prefix + ".>"
	if sessionID != "" {
		subject = prefix + "." + token(sessionID) + ".>"
	}
	sub, err := nc.Subscribe(subject, func(msg *nats.Msg) {
		var ev PhaseEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			return
		}
		fn(ev)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", subject, err)
	}
	// Make sure the server has the interest before returning.
	if err := nc.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return nil, fmt.Errorf("subscribe %s: %w", subject, err)
	}
	return sub, nil
}

// Subscribe is Watch that blocks until ctx ends.
func Subscribe(ctx context.Context, nc *nats.Conn, prefix, sessionID string, fn func(PhaseEvent)) error {
	sub, err := Watch(nc, prefix, sessionID, fn)
	if err != nil {
		return err
	}
	defer func() { _ = sub.Unsubscribe() }()
	<-ctx.Done()
	return ctx.Err()
}
