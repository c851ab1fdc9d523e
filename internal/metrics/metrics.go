// Package metrics defines the Prometheus collectors exported by the service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds application collectors registered on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	lookups             *prometheus.CounterVec
	confirmations       *prometheus.CounterVec
	enrichmentCalls     *prometheus.CounterVec
	enrichmentDuration  prometheus.Histogram
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cardsavvy",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "path", "status"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cardsavvy",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cardsavvy",
			Name:      "card_lookups_total",
			Help:      "Card lookups by resolution status.",
		}, []string{"status"}),
		confirmations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cardsavvy",
			Name:      "card_confirmations_total",
			Help:      "Card confirmations by whether a catalog entry was created or reused.",
		}, []string{"result"}),
		enrichmentCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cardsavvy",
			Name:      "enrichment_calls_total",
			Help:      "Calls to the enrichment provider by outcome.",
		}, []string{"outcome"}),
		enrichmentDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "cardsavvy",
			Name:      "enrichment_duration_seconds",
			Help:      "Latency of enrichment provider calls.",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60},
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpRequestDuration,
		m.lookups,
		m.confirmations,
		m.enrichmentCalls,
		m.enrichmentDuration,
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveHTTPRequest records one served request.
func (m *Metrics) ObserveHTTPRequest(method, path, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, path, status).Inc()
	m.httpRequestDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

// IncLookup counts a lookup resolved with the given status tag.
func (m *Metrics) IncLookup(status string) {
	if m == nil {
		return
	}
	m.lookups.WithLabelValues(status).Inc()
}

// IncConfirmation counts a confirmation; created is false when an existing
// catalog entry was reused.
func (m *Metrics) IncConfirmation(created bool) {
	if m == nil {
		return
	}
	result := "reused"
	if created {
		result = "created"
	}
	m.confirmations.WithLabelValues(result).Inc()
}

// ObserveEnrichment records one call to the enrichment provider.
func (m *Metrics) ObserveEnrichment(success bool, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "failure"
	if success {
		outcome = "success"
	}
	m.enrichmentCalls.WithLabelValues(outcome).Inc()
	m.enrichmentDuration.Observe(d.Seconds())
}
