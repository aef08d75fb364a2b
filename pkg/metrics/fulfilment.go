package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeApplied  = "applied"
	OutcomeNoop     = "noop"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"

	WebhookProcessed = "processed"
	WebhookDuplicate = "duplicate"
	WebhookDropped   = "dropped"
	WebhookFailed    = "failed"
)

// FulfilmentMetrics records order transitions, provider latency and email sends.
type FulfilmentMetrics struct {
	transitions      *prometheus.CounterVec
	providerDuration *prometheus.HistogramVec
	emails           *prometheus.CounterVec
	webhooks         *prometheus.CounterVec
}

// NewFulfilmentMetrics registers the fulfilment metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewFulfilmentMetrics(reg prometheus.Registerer) *FulfilmentMetrics {
	if reg == nil {
		return &FulfilmentMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fulfilment_transitions_total",
		Help: "Order transitions by action and outcome.",
	}, []string{"action", "outcome"})
	providerDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "provider_call_duration_seconds",
		Help:    "Latency of calls to payment, shipping and email providers.",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider", "operation", "result"})
	emails := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notification_sends_total",
		Help: "Notification ledger decisions by email type.",
	}, []string{"email_type", "outcome"})
	webhooks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_total",
		Help: "Inbound provider webhooks by provider and outcome.",
	}, []string{"provider", "outcome"})
	reg.MustRegister(transitions, providerDuration, emails, webhooks)
	return &FulfilmentMetrics{
		transitions:      transitions,
		providerDuration: providerDuration,
		emails:           emails,
		webhooks:         webhooks,
	}
}

// IncTransition counts one transition attempt.
func (m *FulfilmentMetrics) IncTransition(action, outcome string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(action), normalizeLabel(outcome)).Inc()
}

// ObserveProviderCall records how long an outbound provider call took.
func (m *FulfilmentMetrics) ObserveProviderCall(provider, operation string, duration time.Duration, err error) {
	if m == nil || m.providerDuration == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.providerDuration.WithLabelValues(normalizeLabel(provider), normalizeLabel(operation), result).Observe(duration.Seconds())
}

// IncEmail counts one ensure-sent decision (sent, skipped or failed).
func (m *FulfilmentMetrics) IncEmail(emailType, outcome string) {
	if m == nil || m.emails == nil {
		return
	}
	m.emails.WithLabelValues(normalizeLabel(emailType), normalizeLabel(outcome)).Inc()
}

// IncWebhook counts one inbound webhook delivery.
func (m *FulfilmentMetrics) IncWebhook(provider, outcome string) {
	if m == nil || m.webhooks == nil {
		return
	}
	m.webhooks.WithLabelValues(normalizeLabel(provider), normalizeLabel(outcome)).Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
