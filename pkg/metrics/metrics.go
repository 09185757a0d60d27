// Package metrics defines the Prometheus collectors shared by the catalog
// search services and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors. A nil *Metrics is valid and
// records nothing, so components can run without metrics in tests.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	SearchQueriesTotal   *prometheus.CounterVec
	SearchLatency        *prometheus.HistogramVec
	SearchResultsCount   *prometheus.HistogramVec
	SuggestRequestsTotal *prometheus.CounterVec
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	DocsIndexedTotal     *prometheus.CounterVec
	SuggestionsAdded     prometheus.Counter
	SyncRunsTotal        *prometheus.CounterVec
	SyncDuration         prometheus.Histogram
	CorpusSize           *prometheus.GaugeVec
	RateLimitedTotal     *prometheus.CounterVec
	CircuitBreakerState  *prometheus.GaugeVec
}

// New creates the collectors and registers them with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates the collectors and registers them with reg.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
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
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		SearchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_queries_total",
				Help: "Total search queries by mode (exact, fuzzy) and result type (hit, miss, zero_result, error).",
			},
			[]string{"mode", "result_type"},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "search_latency_seconds",
				Help:    "Search query latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
			[]string{"mode", "cache_status"},
		),
		SearchResultsCount: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "search_results_count",
				Help:    "Number of results returned per search query.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
			},
			[]string{"mode"},
		),
		SuggestRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "suggest_requests_total",
				Help: "Total suggestion lookups by fuzzy flag.",
			},
			[]string{"fuzzy"},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of cache misses.",
			},
		),
		DocsIndexedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docs_indexed_total",
				Help: "Total documents indexed by status (success, failure).",
			},
			[]string{"status"},
		),
		SuggestionsAdded: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "suggestions_added_total",
				Help: "Total suggestion phrases added or incremented.",
			},
		),
		SyncRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sync_runs_total",
				Help: "Total catalog sync runs by outcome.",
			},
			[]string{"status"},
		),
		SyncDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sync_duration_seconds",
				Help:    "Duration of full catalog sync runs.",
				Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
			},
		),
		CorpusSize: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "corpus_size",
				Help: "Size of the search corpus by kind (documents, suggestions, vocabulary).",
			},
			[]string{"kind"},
		),
		RateLimitedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rate_limited_requests_total",
				Help: "Requests rejected by the rate limiter, by path.",
			},
			[]string{"path"},
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
		m.SearchQueriesTotal,
		m.SearchLatency,
		m.SearchResultsCount,
		m.SuggestRequestsTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.DocsIndexedTotal,
		m.SuggestionsAdded,
		m.SyncRunsTotal,
		m.SyncDuration,
		m.CorpusSize,
		m.RateLimitedTotal,
		m.CircuitBreakerState,
	)

	return m
}

// ObserveSearch records one search. resultType is hit, miss, zero_result or
// error; cacheStatus is hit, miss or disabled.
func (m *Metrics) ObserveSearch(mode, resultType, cacheStatus string, elapsed time.Duration, results int) {
	if m == nil {
		return
	}
	m.SearchQueriesTotal.WithLabelValues(mode, resultType).Inc()
	m.SearchLatency.WithLabelValues(mode, cacheStatus).Observe(elapsed.Seconds())
	if resultType != "error" {
		m.SearchResultsCount.WithLabelValues(mode).Observe(float64(results))
	}
	switch cacheStatus {
	case "hit":
		m.CacheHitsTotal.Inc()
	case "miss":
		m.CacheMissesTotal.Inc()
	}
}

func (m *Metrics) ObserveSuggest(fuzzy bool) {
	if m == nil {
		return
	}
	label := "false"
	if fuzzy {
		label = "true"
	}
	m.SuggestRequestsTotal.WithLabelValues(label).Inc()
}

func (m *Metrics) DocIndexed(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.DocsIndexedTotal.WithLabelValues("success").Inc()
		return
	}
	m.DocsIndexedTotal.WithLabelValues("failure").Inc()
}

func (m *Metrics) SuggestionsIndexed(n int) {
	if m == nil {
		return
	}
	m.SuggestionsAdded.Add(float64(n))
}

func (m *Metrics) ObserveSync(status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.SyncRunsTotal.WithLabelValues(status).Inc()
	m.SyncDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) SetCorpus(documents int, suggestions int64, vocabulary int) {
	if m == nil {
		return
	}
	m.CorpusSize.WithLabelValues("documents").Set(float64(documents))
	m.CorpusSize.WithLabelValues("suggestions").Set(float64(suggestions))
	m.CorpusSize.WithLabelValues("vocabulary").Set(float64(vocabulary))
}

func (m *Metrics) RateLimited(path string) {
	if m == nil {
		return
	}
	m.RateLimitedTotal.WithLabelValues(path).Inc()
}

func (m *Metrics) SetCircuitState(name string, state int) {
	if m == nil {
		return
	}
	m.CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
