package llm

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// llmAttempts counts transport attempts.
// Labels: outcome (success, failure)
var llmAttempts = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "agentloop",
		Subsystem: "llm",
		Name:      "attempts_total",
		Help:      "Total number of LLM transport attempts by outcome",
	},
	[]string{"outcome"},
)
