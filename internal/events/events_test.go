package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/agentloop/internal/llm"
	"github.com/fyrsmithlabs/agentloop/internal/orchestrator"
	"github.com/fyrsmithlabs/agentloop/internal/tools"
)

// startTestNATSServer starts an embedded NATS server for testing.
func startTestNATSServer(t *testing.T) *natsserver.Server {
	opts := &natsserver.Options{
		Host:   "127.0.0.1",
		Port:   -1,
		NoLog:  true,
		NoSigs: true,
	}
	server, err := natsserver.NewServer(opts)
	require.NoError(t, err)

	go server.Start()
	if !server.ReadyForConnections(5 * time.Second) {
		t.Fatal("NATS server not ready")
	}
	t.Cleanup(func() {
		server.Shutdown()
		server.WaitForShutdown()
	})
	return server
}

func connect(t *testing.T, server *natsserver.Server) *nats.Conn {
	nc, err := nats.Connect(server.ClientURL())
	require.NoError(t, err)
	t.Cleanup(nc.Close)
	return nc
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "agentloop.runs.s1.t1.planning", Subject(DefaultPrefix, "s1", "t1", orchestrator.PhasePlanning))
	assert.Equal(t, "p.a_b_c._.completed", Subject("p", "a.b c", "", orchestrator.PhaseCompleted))
	assert.Equal(t, "p.x__.y.error", Subject("p", "x*>", "y", orchestrator.PhaseError))
}

func TestPublisher_Publish(t *testing.T) {
	server := startTestNATSServer(t)
	nc := connect(t, server)

	sub, err := nc.SubscribeSync("test.>")
	require.NoError(t, err)

	p := NewPublisher(nc, "test", nil)
	state := orchestrator.NewRunState("s1", "t1")
	state.PendingApprovals = []string{"run_command"}
	require.NoError(t, p.Listener()(context.Background(), orchestrator.PhaseAwaitingApproval, state))

	msg, err := sub.NextMsg(2 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, "test.s1.t1.awaiting_approval", msg.Subject)

	var ev PhaseEvent
	require.NoError(t, json.Unmarshal(msg.Data, &ev))
	assert.Equal(t, orchestrator.PhaseAwaitingApproval, ev.Phase)
	assert.Equal(t, []string{"run_command"}, ev.PendingApprovals)
}

type stubPlanner struct{}

func (stubPlanner) GeneratePlan(context.Context, string) (*llm.Plan, error) {
	return &llm.Plan{Plan: "p", Tools: []string{"echo"}}, nil
}

func (stubPlanner) Reflect(context.Context, string) (*llm.Reflection, error) {
	return &llm.Reflection{Reflection: "complete"}, nil
}

func TestSubscribe_ReceivesRunPhasesInOrder(t *testing.T) {
	server := startTestNATSServer(t)
	pubConn := connect(t, server)
	subConn := connect(t, server)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got := make(chan PhaseEvent, 16)
	sub, err := Watch(subConn, "", "s1", func(ev PhaseEvent) { got <- ev })
	require.NoError(t, err)
	defer func() { _ = sub.Unsubscribe() }()

	registry := tools.NewRegistry()
	require.NoError(t, registry.Register(tools.Definition{
		Name:        "echo",
		Description: "echo",
		Capability: tools.CapabilityFunc(func(context.Context, map[string]any) (any, error) {
			return "x", nil
		}),
		RiskLevel: 1,
	}))
	orch, err := orchestrator.New(orchestrator.Deps{Planner: stubPlanner{}, Registry: registry}, orchestrator.Config{}, nil)
	require.NoError(t, err)
	pub := NewPublisher(pubConn, "", nil)
	orch.OnAnyPhase(pub.Listener())

	_, err = orch.ProcessMessage(ctx, "go", "s1", "t1")
	require.NoError(t, err)
	require.NoError(t, pub.Flush(ctx))

	want := []orchestrator.Phase{
		orchestrator.PhasePlanning,
		orchestrator.PhaseToolSelection,
		orchestrator.PhaseExecuting,
		orchestrator.PhaseReflecting,
		orchestrator.PhaseCompleted,
	}
	for _, phase := range want {
		select {
		case ev := <-got:
			assert.Equal(t, phase, ev.Phase)
			assert.Equal(t, "s1", ev.SessionID)
		case <-ctx.Done():
			t.Fatalf("timed out waiting for %s", phase)
		}
	}
}
