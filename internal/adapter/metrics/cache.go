package metrics

import "github.com/prometheus/client_golang/prometheus"

// CacheMetrics covers the leave request cache and its circuit breaker.
type CacheMetrics struct {
	Refreshes          *prometheus.CounterVec
	Entries            prometheus.Gauge
	BreakerTransitions *prometheus.CounterVec
}

func NewCacheMetrics(reg prometheus.Registerer) *CacheMetrics {
	m := &CacheMetrics{
		Refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "leave_requests",
			Name:      "refreshes_total",
			Help:      "Leave request refreshes by result (ok, error, rejected).",
		}, []string{"result"}),
		Entries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "leave_requests",
			Name:      "entries",
			Help:      "Leave requests currently cached.",
		}),
		BreakerTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "leave_requests",
			Name:      "breaker_transitions_total",
			Help:      "Circuit breaker transitions by new state.",
		}, []string{"state"}),
	}

	reg.MustRegister(m.Refreshes, m.Entries, m.BreakerTransitions)
	return m
}
