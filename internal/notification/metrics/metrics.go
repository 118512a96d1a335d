package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics covers admin fan-out and the notification event stream.
type Metrics struct {
	FannedOut        *prometheus.CounterVec
	FanOutFailures   *prometheus.CounterVec
	PublishFailures  prometheus.Counter
	PublishDropped   prometheus.Counter
	PublisherCircuit prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		FannedOut: f.NewCounterVec(prometheus.CounterOpts{
			Name: "workguard_notifications_fanned_out_total",
			Help: "Notification rows written, by notification type",
		}, []string{"type"}),
		FanOutFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "workguard_notification_fanout_failures_total",
			Help: "Fan-out events that could not be persisted, by notification type",
		}, []string{"type"}),
		PublishFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "workguard_notification_publish_failures_total",
			Help: "Notification events the stream rejected",
		}),
		PublishDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "workguard_notification_publish_dropped_total",
			Help: "Notification events skipped while the publisher circuit was open",
		}),
		PublisherCircuit: f.NewGauge(prometheus.GaugeOpts{
			Name: "workguard_notification_publisher_circuit_open",
			Help: "1 while the publisher circuit is open",
		}),
	}
}

func (m *Metrics) ObserveFanOut(notificationType string, rows int) {
	m.FannedOut.WithLabelValues(notificationType).Add(float64(rows))
}

func (m *Metrics) IncFanOutFailure(notificationType string) {
	m.FanOutFailures.WithLabelValues(notificationType).Inc()
}

func (m *Metrics) IncPublishFailures() {
	m.PublishFailures.Inc()
}

func (m *Metrics) IncPublishDropped() {
	m.PublishDropped.Inc()
}

func (m *Metrics) SetCircuitOpen(open bool) {
	if open {
		m.PublisherCircuit.Set(1)
	} else {
		m.PublisherCircuit.Set(0)
	}
}
