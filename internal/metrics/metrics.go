// Package metrics holds the Prometheus collectors for the scoring pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "newslens"

// Status label values.
const (
	StatusSuccess   = "success"
	StatusFailure   = "failure"
	StatusRejected  = "rejected"
	StatusDuplicate = "duplicate"
)

// Metrics groups all collectors. A nil *Metrics is valid and records nothing,
// so components can be built without a registry in tests.
type Metrics struct {
	sentimentScored     *prometheus.CounterVec
	subscorerFailures   *prometheus.CounterVec
	taxonomyReloads     *prometheus.CounterVec
	themeMatches        prometheus.Counter
	classifierRequests  *prometheus.CounterVec
	articlesIngested    *prometheus.CounterVec
	circuitBreakerState *prometheus.GaugeVec
}

// NewMetrics creates the collectors. They are not registered; call Register.
func NewMetrics() *Metrics {
	return &Metrics{
		sentimentScored: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sentiment_scored_total",
				Help:      "Sentiment results produced, by model and category",
			},
			[]string{"model", "type"},
		),
		subscorerFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "subscorer_failures_total",
				Help:      "Sub-scorer failures recovered inside the ensemble",
			},
			[]string{"component"},
		),
		taxonomyReloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "taxonomy_reloads_total",
				Help:      "Theme taxonomy reloads from the store, by status",
			},
			[]string{"status"},
		),
		themeMatches: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "theme_matches_total",
				Help:      "Theme labels reported above the relevance threshold",
			},
		),
		classifierRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "classifier_requests_total",
				Help:      "Remote classifier calls, by status",
			},
			[]string{"status"},
		),
		articlesIngested: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "articles_ingested_total",
				Help:      "Feed entries handled by ingestion, by status",
			},
			[]string{"status"},
		),
		circuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_state",
				Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
			},
			[]string{"name"},
		),
	}
}

// Collectors returns every collector, mainly for tests.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.sentimentScored,
		m.subscorerFailures,
		m.taxonomyReloads,
		m.themeMatches,
		m.classifierRequests,
		m.articlesIngested,
		m.circuitBreakerState,
	}
}

// Register registers all collectors with reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) IncSentimentScored(model, category string) {
	if m == nil {
		return
	}
	m.sentimentScored.WithLabelValues(model, category).Inc()
}

func (m *Metrics) IncSubscorerFailure(component string) {
	if m == nil {
		return
	}
	m.subscorerFailures.WithLabelValues(component).Inc()
}

func (m *Metrics) IncTaxonomyReload(status string) {
	if m == nil {
		return
	}
	m.taxonomyReloads.WithLabelValues(status).Inc()
}

func (m *Metrics) AddThemeMatches(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.themeMatches.Add(float64(n))
}

func (m *Metrics) IncClassifierRequest(status string) {
	if m == nil {
		return
	}
	m.classifierRequests.WithLabelValues(status).Inc()
}

func (m *Metrics) IncArticlesIngested(status string) {
	if m == nil {
		return
	}
	m.articlesIngested.WithLabelValues(status).Inc()
}

func (m *Metrics) SetCircuitBreakerState(name string, state float64) {
	if m == nil {
		return
	}
	m.circuitBreakerState.WithLabelValues(name).Set(state)
}
