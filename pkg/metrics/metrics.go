// Package metrics defines the Prometheus collectors used by the worddensity
// binaries and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	AnalysesTotal     *prometheus.CounterVec
	AnalysisDuration  *prometheus.HistogramVec
	SegmentsProcessed prometheus.Counter
	DistinctPhrases   prometheus.Histogram

	FetchesTotal     *prometheus.CounterVec
	FetchDuration    prometheus.Histogram
	FetchedBytes     prometheus.Histogram
	CacheHitsTotal   prometheus.Counter
	CacheMissesTotal prometheus.Counter
	JobsTotal        *prometheus.CounterVec

	CircuitBreakerState *prometheus.GaugeVec
}

// New creates all collectors and registers them with reg. A nil reg means
// the default Prometheus registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		AnalysesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "worddensity_analyses_total",
				Help: "Total analyses by source kind (url, html, text) and outcome.",
			},
			[]string{"source", "outcome"},
		),
		AnalysisDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "worddensity_analysis_duration_seconds",
				Help:    "Time spent segmenting, indexing and ranking a document.",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"source"},
		),
		SegmentsProcessed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "worddensity_segments_processed_total",
				Help: "Total segments ingested into phrase indexes.",
			},
		),
		DistinctPhrases: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "worddensity_distinct_phrases",
				Help:    "Distinct phrases per analyzed document.",
				Buckets: prometheus.ExponentialBuckets(10, 4, 8),
			},
		),
		FetchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "worddensity_fetches_total",
				Help: "Total document fetches by outcome.",
			},
			[]string{"outcome"},
		),
		FetchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "worddensity_fetch_duration_seconds",
				Help:    "Document fetch latency in seconds.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
			},
		),
		FetchedBytes: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "worddensity_fetched_bytes",
				Help:    "Size of fetched document bodies.",
				Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of report cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of report cache misses.",
			},
		),
		JobsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "worddensity_jobs_total",
				Help: "Asynchronous analysis jobs by outcome.",
			},
			[]string{"outcome"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.AnalysesTotal,
		m.AnalysisDuration,
		m.SegmentsProcessed,
		m.DistinctPhrases,
		m.FetchesTotal,
		m.FetchDuration,
		m.FetchedBytes,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.JobsTotal,
		m.CircuitBreakerState,
	)
	return m
}

// NewUnregistered returns collectors bound to a throwaway registry. Tests and
// the CLI use it where nothing scrapes.
func NewUnregistered() *Metrics {
	return New(prometheus.NewRegistry())
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
