package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	restored = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ledger",
		Subsystem: "scheduler",
		Name:      "transactions_restored_total",
		Help:      "Transactions resubmitted after a block switch, by outcome",
	}, []string{"outcome"})

	reinjected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ledger",
		Subsystem: "scheduler",
		Name:      "entries_reinjected_total",
		Help:      "Scheduled entries submitted as transactions, by kind and outcome",
	}, []string{"kind", "outcome"})
)
