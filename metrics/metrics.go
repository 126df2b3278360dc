package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Gate labels for DuplicatesFound.
const (
	GateEntry  = "entry"
	GateCommit = "commit"
)

// Metrics holds the onboarding counters. A nil *Metrics is valid and records nothing,
// which keeps tests that don't care about metrics free of registry setup.
type Metrics struct {
	RegistrationsBegun     prometheus.Counter
	RegistrationsCompleted prometheus.Counter
	RegistrationsCancelled prometheus.Counter
	DuplicatesFound        *prometheus.CounterVec
	StoreErrors            *prometheus.CounterVec
	NotificationsFailed    prometheus.Counter
	WebhooksFailed         prometheus.Counter
	ActiveSessions         prometheus.Gauge
	SessionsEvicted        prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RegistrationsBegun: factory.NewCounter(prometheus.CounterOpts{
			Name: "seller_registrations_begun_total",
			Help: "Total number of registration flows started",
		}),
		RegistrationsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "seller_registrations_completed_total",
			Help: "Total number of seller records created by the bot",
		}),
		RegistrationsCancelled: factory.NewCounter(prometheus.CounterOpts{
			Name: "seller_registrations_cancelled_total",
			Help: "Total number of registration flows cancelled by the user",
		}),
		DuplicatesFound: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "seller_registration_duplicates_total",
			Help: "Registrations short-circuited because a seller record already existed",
		}, []string{"gate"}),
		StoreErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "seller_store_errors_total",
			Help: "Record store calls that failed",
		}, []string{"op"}),
		NotificationsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "seller_notifications_failed_total",
			Help: "Direct messages that could not be delivered",
		}),
		WebhooksFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "seller_webhooks_failed_total",
			Help: "Automation webhook deliveries that failed after retries",
		}),
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "seller_registration_sessions_active",
			Help: "Registration sessions currently held in memory",
		}),
		SessionsEvicted: factory.NewCounter(prometheus.CounterOpts{
			Name: "seller_registration_sessions_evicted_total",
			Help: "Registration sessions dropped after the idle timeout",
		}),
	}
}

func (m *Metrics) RegistrationBegun() {
	if m == nil {
		return
	}
	m.RegistrationsBegun.Inc()
}

func (m *Metrics) RegistrationCompleted() {
	if m == nil {
		return
	}
	m.RegistrationsCompleted.Inc()
}

func (m *Metrics) RegistrationCancelled() {
	if m == nil {
		return
	}
	m.RegistrationsCancelled.Inc()
}

func (m *Metrics) DuplicateFound(gate string) {
	if m == nil {
		return
	}
	m.DuplicatesFound.WithLabelValues(gate).Inc()
}

func (m *Metrics) StoreError(op string) {
	if m == nil {
		return
	}
	m.StoreErrors.WithLabelValues(op).Inc()
}

func (m *Metrics) NotificationFailed() {
	if m == nil {
		return
	}
	m.NotificationsFailed.Inc()
}

func (m *Metrics) WebhookFailed() {
	if m == nil {
		return
	}
	m.WebhooksFailed.Inc()
}

func (m *Metrics) SetActiveSessions(count int) {
	if m == nil {
		return
	}
	m.ActiveSessions.Set(float64(count))
}

func (m *Metrics) SessionEvicted() {
	if m == nil {
		return
	}
	m.SessionsEvicted.Inc()
}
