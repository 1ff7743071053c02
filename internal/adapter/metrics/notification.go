package metrics

import "github.com/prometheus/client_golang/prometheus"

type NotificationMetrics struct {
	Received *prometheus.CounterVec
	Toasts   *prometheus.CounterVec
	Alerts   *prometheus.CounterVec
	Unread   prometheus.Gauge
}

func NewNotificationMetrics(reg prometheus.Registerer) *NotificationMetrics {
	m := &NotificationMetrics{
		Received: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "received_total",
			Help:      "Notifications recorded, by audience.",
		}, []string{"audience"}),
		Toasts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "toasts_total",
			Help:      "Toasts shown, by severity.",
		}, []string{"severity"}),
		Alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "alerts_total",
			Help:      "Out-of-band alerts by result (sent, failed, throttled).",
		}, []string{"result"}),
		Unread: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "unread",
			Help:      "Unread entries in the notification log.",
		}),
	}

	reg.MustRegister(m.Received, m.Toasts, m.Alerts, m.Unread)
	return m
}
