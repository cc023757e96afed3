package fee

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var feesCollected = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "ledger",
	Subsystem: "fee",
	Name:      "core_collected_total",
	Help:      "Core value of operation fees collected",
})
