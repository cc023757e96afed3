package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var calls = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "ledger",
	Subsystem: "server",
	Name:      "calls_total",
	Help:      "Lifecycle calls routed to the node, by method",
}, []string{"method"})
