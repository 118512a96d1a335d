package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Login outcomes.
const (
	OutcomeSuccess            = "success"
	OutcomeInvalidCredentials = "invalid_credentials"
	OutcomeMobileRestricted   = "mobile_restricted"
	OutcomeError              = "error"
)

// Metrics provides observability for the login pipeline and the session gate.
type Metrics struct {
	LoginsTotal         *prometheus.CounterVec
	LoginDuration       prometheus.Histogram
	SessionsInvalidated prometheus.Counter
	SessionsClosed      *prometheus.CounterVec
	GateRejections      *prometheus.CounterVec
	FanOutFailures      *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		LoginsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "workguard_logins_total",
			Help: "Login calls by outcome",
		}, []string{"outcome"}),
		LoginDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "workguard_login_duration_seconds",
			Help:    "Duration of Login, including password hashing",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		SessionsInvalidated: f.NewCounter(prometheus.CounterOpts{
			Name: "workguard_sessions_invalidated_total",
			Help: "Sessions displaced by a login from another device",
		}),
		SessionsClosed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "workguard_sessions_logged_out_total",
			Help: "Sessions expired by an explicit logout, by kind",
		}, []string{"kind"}),
		GateRejections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "workguard_gate_rejections_total",
			Help: "Authenticated requests rejected at the session gate, by reason",
		}, []string{"reason"}),
		FanOutFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "workguard_login_notification_failures_total",
			Help: "Admin notifications the login pipeline could not deliver, by type",
		}, []string{"type"}),
	}
}

// ObserveLogin records the outcome and duration. Call with time.Now() at the
// start of the operation.
func (m *Metrics) ObserveLogin(outcome string, start time.Time) {
	m.LoginsTotal.WithLabelValues(outcome).Inc()
	m.LoginDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncSessionsInvalidated() {
	m.SessionsInvalidated.Inc()
}

func (m *Metrics) IncSessionsClosed(kind string) {
	m.SessionsClosed.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncGateRejection(reason string) {
	m.GateRejections.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncFanOutFailure(notificationType string) {
	m.FanOutFailures.WithLabelValues(notificationType).Inc()
}
