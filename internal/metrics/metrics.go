// Package metrics exposes Prometheus counters for chat turns.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Turn outcomes.
const (
	OutcomeSuccess          = "success"
	OutcomeInvalidInput     = "invalid_input"
	OutcomeNotFound         = "not_found"
	OutcomeQuotaExceeded    = "quota_exceeded"
	OutcomeFlaggedProfanity = "flagged_profanity"
	OutcomeFlaggedAge       = "flagged_age"
	OutcomeFlaggedRule      = "flagged_rule"
	OutcomeProviderBlocked  = "provider_blocked"
	OutcomeProviderError    = "provider_error"
	OutcomeNotConfigured    = "not_configured"
	OutcomeInternalError    = "internal_error"
)

// Metrics holds the service collectors on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry         *prometheus.Registry
	turns            *prometheus.CounterVec
	auditLogFailures prometheus.Counter
	modelLatency     prometheus.Histogram
}

// New creates the collectors and registers them with a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	factory := promauto.With(registry)
	return &Metrics{
		registry: registry,
		turns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mascotchat_turns_total",
				Help: "Total number of chat turns, partitioned by outcome.",
			},
			[]string{"outcome"},
		),
		auditLogFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "mascotchat_audit_log_failures_total",
			Help: "Total number of conversation log writes that failed and were dropped.",
		}),
		modelLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "mascotchat_model_latency_seconds",
			Help:    "Latency of completion calls to the model provider.",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30},
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// TurnOutcome counts one finished turn.
func (m *Metrics) TurnOutcome(outcome string) {
	if m == nil {
		return
	}
	m.turns.WithLabelValues(outcome).Inc()
}

// AuditLogFailure counts one dropped log write.
func (m *Metrics) AuditLogFailure() {
	if m == nil {
		return
	}
	m.auditLogFailures.Inc()
}

// ObserveModelLatency records the duration of one model call.
func (m *Metrics) ObserveModelLatency(d time.Duration) {
	if m == nil {
		return
	}
	m.modelLatency.Observe(d.Seconds())
}
