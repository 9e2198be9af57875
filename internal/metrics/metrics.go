package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the linking workflow.
// All methods are safe to call on a nil *Metrics.
type Metrics struct {
	IntentsCreated     *prometheus.CounterVec
	IntentsFinished    *prometheus.CounterVec
	Failures           *prometheus.CounterVec
	VerificationChecks *prometheus.CounterVec
	AnalysisLatency    prometheus.Histogram
	Notifications      *prometheus.CounterVec
}

// New creates a Metrics instance registered on reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		IntentsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "domainlink_intents_created_total",
			Help: "Linking intents created by requested strategy hint",
		}, []string{"strategy_hint"}),

		IntentsFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "domainlink_intents_finished_total",
			Help: "Linking intents that reached a terminal state",
		}, []string{"state"}),

		Failures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "domainlink_failures_total",
			Help: "Workflow failures by failure reason",
		}, []string{"reason"}),

		VerificationChecks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "domainlink_verification_checks_total",
			Help: "Verification checks by type and outcome",
		}, []string{"type", "outcome"}),

		AnalysisLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "domainlink_analysis_duration_seconds",
			Help:    "Duration of domain analysis",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		}),

		Notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "domainlink_notifications_total",
			Help: "Notification attempts by message type and result",
		}, []string{"message_type", "result"}),
	}
}

// IncIntentCreated records a new intent
func (m *Metrics) IncIntentCreated(hint string) {
	if m != nil {
		if hint == "" {
			hint = "none"
		}
		m.IntentsCreated.WithLabelValues(hint).Inc()
	}
}

// IncIntentFinished records an intent reaching state
func (m *Metrics) IncIntentFinished(state string) {
	if m != nil {
		m.IntentsFinished.WithLabelValues(state).Inc()
	}
}

// IncFailure records a workflow failure
func (m *Metrics) IncFailure(reason string) {
	if m != nil {
		m.Failures.WithLabelValues(reason).Inc()
	}
}

// IncVerificationCheck records one verification check
func (m *Metrics) IncVerificationCheck(verificationType, outcome string) {
	if m != nil {
		m.VerificationChecks.WithLabelValues(verificationType, outcome).Inc()
	}
}

// ObserveAnalysis records the duration of one domain analysis
func (m *Metrics) ObserveAnalysis(d time.Duration) {
	if m != nil {
		m.AnalysisLatency.Observe(d.Seconds())
	}
}

// IncNotification records a notification attempt
func (m *Metrics) IncNotification(messageType, result string) {
	if m != nil {
		m.Notifications.WithLabelValues(messageType, result).Inc()
	}
}
