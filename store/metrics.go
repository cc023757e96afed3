package store

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var sessionDepth = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "ledger",
	Subsystem: "store",
	Name:      "session_depth",
	Help:      "Number of open undo sessions",
})
