package notify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var published = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "ledger",
	Subsystem: "notify",
	Name:      "messages_published_total",
	Help:      "Notices published, by topic and result",
}, []string{"topic", "result"})
