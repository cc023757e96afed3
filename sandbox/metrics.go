package sandbox

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	timeouts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ledger",
		Subsystem: "sandbox",
		Name:      "timeouts_total",
		Help:      "Operations cancelled for exceeding their run time budget",
	})

	panics = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ledger",
		Subsystem: "sandbox",
		Name:      "panics_total",
		Help:      "Operations whose evaluation panicked",
	})

	runTime = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ledger",
		Subsystem: "sandbox",
		Name:      "run_time_seconds",
		Help:      "Wall time spent evaluating one operation",
		Buckets:   prometheus.ExponentialBuckets(0.00005, 4, 9),
	}, []string{"mode"})
)
