package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	BoardLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rsiboard",
			Subsystem: "api",
			Name:      "latency_seconds",
			Help:      "Latency of board endpoints",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	BoardErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rsiboard",
			Subsystem: "api",
			Name:      "errors_total",
			Help:      "Rejected board requests by endpoint and reason",
		},
		[]string{"endpoint", "reason"},
	)
)

func Register() {
	RegisterWith(prometheus.DefaultRegisterer)
}

// RegisterWith registers the collectors once on reg.
func RegisterWith(reg prometheus.Registerer) {
	once.Do(func() {
		reg.MustRegister(BoardLatency, BoardErrors)
	})
}
