package node

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	checked = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ledger",
		Subsystem: "node",
		Name:      "check_tx_total",
		Help:      "Transactions gate-checked, by status",
	}, []string{"status"})

	queries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ledger",
		Subsystem: "node",
		Name:      "queries_total",
		Help:      "State queries served, by path and status",
	}, []string{"path", "status"})

	proposals = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ledger",
		Subsystem: "node",
		Name:      "proposals_total",
		Help:      "Proposals built and verified, by result",
	}, []string{"result"})

	snapshotsExported = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ledger",
		Subsystem: "node",
		Name:      "snapshots_exported_total",
		Help:      "Snapshots streamed to peers",
	})

	snapshotsImported = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ledger",
		Subsystem: "node",
		Name:      "snapshots_imported_total",
		Help:      "Snapshots restored",
	})
)
