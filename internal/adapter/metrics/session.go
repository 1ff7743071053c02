package metrics

import "github.com/prometheus/client_golang/prometheus"

type SessionMetrics struct {
	Invalidations *prometheus.CounterVec
	Validations   *prometheus.CounterVec
	Logins        *prometheus.CounterVec
}

func NewSessionMetrics(reg prometheus.Registerer) *SessionMetrics {
	m := &SessionMetrics{
		Invalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "invalidations_total",
			Help:      "Effective session invalidations by reason.",
		}, []string{"reason"}),
		Validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "validations_total",
			Help:      "Credential validation probes by result.",
		}, []string{"result"}),
		Logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "logins_total",
			Help:      "Login attempts by method and result.",
		}, []string{"method", "result"}),
	}

	reg.MustRegister(m.Invalidations, m.Validations, m.Logins)
	return m
}
