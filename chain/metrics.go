package chain

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	blocksApplied = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ledger",
		Subsystem: "chain",
		Name:      "blocks_applied_total",
		Help:      "Blocks committed to the chain",
	})

	blocksAborted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ledger",
		Subsystem: "chain",
		Name:      "blocks_aborted_total",
		Help:      "Blocks rolled back during application",
	})

	trxDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ledger",
		Subsystem: "chain",
		Name:      "transactions_dropped_total",
		Help:      "Transactions left out of a produced block or the pending pool, by status",
	}, []string{"status"})

	maintenanceRuns = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ledger",
		Subsystem: "chain",
		Name:      "maintenance_runs_total",
		Help:      "Maintenance passes run",
	})

	headBlock = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "ledger",
		Subsystem: "chain",
		Name:      "head_block_number",
		Help:      "Number of the committed head block",
	})
)
