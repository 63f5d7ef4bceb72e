package gateway

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"habitSocialAPI/internal/apperr"
)

var (
	callsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_calls_total",
			Help: "Remote gateway calls by operation and outcome kind",
		},
		[]string{"operation", "outcome"},
	)

	callDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_call_duration_seconds",
			Help:    "Remote gateway call latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	registerOnce sync.Once
)

// RegisterMetrics adds the gateway collectors to the default registry.
func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(callsTotal, callDuration)
	})
}

func observe(operation string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = string(apperr.KindOf(err))
	}
	callsTotal.WithLabelValues(operation, outcome).Inc()
	callDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
