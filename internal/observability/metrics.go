package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry *prometheus.Registry

	// HTTP request rate. Watch for: sudden drops (service down) or spikes (traffic surge).
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per request. Watch for: p95/p99 latency increases.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight.
	HTTPRequestsInFlight prometheus.Gauge

	// Upstream call rate per API (countries, weather) and status class.
	UpstreamCallsTotal *prometheus.CounterVec

	// Upstream latency per API. Watch for: p95 > 2s on weather, directory slowness on cold start.
	UpstreamDuration *prometheus.HistogramVec

	// Upstream failures by category (see client.CategorizeError).
	UpstreamErrorsTotal *prometheus.CounterVec

	// Fetch cache lookups by API and result (hit, miss, error).
	FetchCacheLookupsTotal *prometheus.CounterVec

	// Fetches that joined an in-flight upstream call instead of starting their own.
	FetchCoalescedTotal *prometheus.CounterVec

	// API errors returned to clients by kind (validation, config, upstream, unknown).
	APIErrorsTotal *prometheus.CounterVec

	// Dashboard widget refresh outcomes (success, failure, busy).
	WidgetRefreshesTotal *prometheus.CounterVec

	// Live dashboard sessions.
	DashboardSessions prometheus.Gauge

	// Country directory warm-ups and their latency. Errors mean the first page load pays the cold fetch.
	CacheWarmingTotal           prometheus.Counter
	CacheWarmingErrorsTotal     prometheus.Counter
	CacheWarmingDurationSeconds prometheus.Histogram
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	UpstreamCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstreamCallsTotal",
			Help: "Total number of calls to third-party APIs",
		},
		[]string{"api", "status"},
	)
	UpstreamDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstreamDurationSeconds",
			Help:    "Third-party API latency in seconds (per request)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"api", "status"},
	)
	UpstreamErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstreamErrorsTotal",
			Help: "Third-party API failures by category",
		},
		[]string{"api", "category"},
	)
	FetchCacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetchCacheLookupsTotal",
			Help: "Fetch cache lookups by API and result",
		},
		[]string{"api", "result"},
	)
	FetchCoalescedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetchCoalescedTotal",
			Help: "Fetches that shared an in-flight upstream call",
		},
		[]string{"api"},
	)
	APIErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apiErrorsTotal",
			Help: "Error envelopes returned by /api endpoints, by route and kind",
		},
		[]string{"route", "kind"},
	)
	WidgetRefreshesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "widgetRefreshesTotal",
			Help: "Dashboard single-widget refreshes by widget and outcome",
		},
		[]string{"widget", "outcome"},
	)
	DashboardSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dashboardSessions",
			Help: "Number of live dashboard sessions",
		},
	)

	CacheWarmingTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cacheWarmingTotal",
			Help: "Country directory warm-up runs",
		},
	)
	CacheWarmingErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cacheWarmingErrorsTotal",
			Help: "Country directory warm-up runs that failed",
		},
	)
	CacheWarmingDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cacheWarmingDurationSeconds",
			Help:    "Country directory warm-up duration in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		UpstreamCallsTotal, UpstreamDuration, UpstreamErrorsTotal,
		FetchCacheLookupsTotal, FetchCoalescedTotal,
		APIErrorsTotal,
		WidgetRefreshesTotal, DashboardSessions,
		CacheWarmingTotal, CacheWarmingErrorsTotal, CacheWarmingDurationSeconds,
	)
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
