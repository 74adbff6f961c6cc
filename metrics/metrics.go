// Package metrics exposes Prometheus counters for the API and the ingestion pipeline.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Search modes
const (
	ModeSemantic = "semantic"
	ModeBrowse   = "browse"
	ModeSimilar  = "similar"
)

// Metrics holds the collectors on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests   *prometheus.CounterVec
	httpLatency    *prometheus.HistogramVec
	searches       *prometheus.CounterVec
	providerErrors *prometheus.CounterVec
	ingestedCases  *prometheus.CounterVec
}

// New creates the collectors and registers them with a fresh registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "caselaw",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "caselaw",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"method", "route"}),
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "caselaw",
			Name:      "searches_total",
			Help:      "Case searches served by mode.",
		}, []string{"mode"}),
		providerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "caselaw",
			Name:      "llm_provider_errors_total",
			Help:      "Failed embedding or generation calls.",
		}, []string{"op"}),
		ingestedCases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "caselaw",
			Name:      "ingested_cases_total",
			Help:      "Cases processed by the ingestion pipeline by outcome.",
		}, []string{"outcome"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpLatency,
		m.searches,
		m.providerErrors,
		m.ingestedCases,
	)
	return m
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpLatency.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (m *Metrics) SearchServed(mode string) {
	if m == nil {
		return
	}
	m.searches.WithLabelValues(mode).Inc()
}

func (m *Metrics) ProviderError(op string) {
	if m == nil {
		return
	}
	m.providerErrors.WithLabelValues(op).Inc()
}

// CaseIngested counts one case by outcome: "stored", "failed" or "partial"
func (m *Metrics) CaseIngested(outcome string) {
	if m == nil {
		return
	}
	m.ingestedCases.WithLabelValues(outcome).Inc()
}
