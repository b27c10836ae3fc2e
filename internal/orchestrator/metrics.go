package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Tool execution outcomes.
const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
	outcomeTimeout = "timeout"
	outcomeSkipped = "skipped"
)

var (
	phaseTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agentloop",
		Name:      "phase_transitions_total",
		Help:      "Phase entries by phase.",
	}, []string{"phase"})

	toolExecutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agentloop",
		Name:      "tool_executions_total",
		Help:      "Tool executions by tool and outcome.",
	}, []string{"tool", "outcome"})
)
