package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/pscheid92/leavenotify/internal/domain"
)

var connectionStates = []domain.ConnectionState{
	domain.StateIdle,
	domain.StateConnecting,
	domain.StateOpen,
	domain.StateClosing,
	domain.StateReconnecting,
	domain.StateExhausted,
}

type ConnectionMetrics struct {
	State            *prometheus.GaugeVec
	Reconnects       prometheus.Counter
	Exhaustions      prometheus.Counter
	MessagesReceived *prometheus.CounterVec
	MessagesSent     *prometheus.CounterVec
	SendDropped      prometheus.Counter
}

func NewConnectionMetrics(reg prometheus.Registerer) *ConnectionMetrics {
	m := &ConnectionMetrics{
		State: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "connection",
			Name:      "state",
			Help:      "1 for the current connection state, 0 for all others.",
		}, []string{"state"}),
		Reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "connection",
			Name:      "reconnects_total",
			Help:      "Total number of scheduled reconnect attempts.",
		}),
		Exhaustions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "connection",
			Name:      "exhaustions_total",
			Help:      "Number of times reconnecting gave up.",
		}),
		MessagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "connection",
			Name:      "messages_received_total",
			Help:      "Inbound messages by type.",
		}, []string{"type"}),
		MessagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "connection",
			Name:      "messages_sent_total",
			Help:      "Outbound messages by type.",
		}, []string{"type"}),
		SendDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "connection",
			Name:      "send_dropped_total",
			Help:      "Outbound messages dropped because the writer was full or closed.",
		}),
	}

	reg.MustRegister(m.State, m.Reconnects, m.Exhaustions, m.MessagesReceived, m.MessagesSent, m.SendDropped)
	m.ObserveState(domain.StateIdle)
	return m
}

// ObserveState flips the state gauge so exactly one label reads 1.
func (m *ConnectionMetrics) ObserveState(current domain.ConnectionState) {
	for _, s := range connectionStates {
		v := 0.0
		if s == current {
			v = 1
		}
		m.State.WithLabelValues(s.String()).Set(v)
	}
}
