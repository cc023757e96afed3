package evaluator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	opsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ledger",
		Subsystem: "evaluator",
		Name:      "operations_applied_total",
		Help:      "Operations applied, by type",
	}, []string{"type"})

	opsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ledger",
		Subsystem: "evaluator",
		Name:      "operations_failed_total",
		Help:      "Operations rejected, by type and status",
	}, []string{"type", "status"})

	virtualOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ledger",
		Subsystem: "evaluator",
		Name:      "virtual_operations_total",
		Help:      "Virtual operations applied, by type",
	}, []string{"type"})
)
