package memory

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// sourceFailures counts degraded source queries.
// Labels: source (conversation, task, interaction)
var sourceFailures = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "agentloop",
		Subsystem: "memory",
		Name:      "source_failures_total",
		Help:      "Total number of memory source queries that failed and were skipped",
	},
	[]string{"source"},
)
