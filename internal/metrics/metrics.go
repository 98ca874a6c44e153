// Package metrics exposes Prometheus collectors for the opportunity crawler.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels shared by the Observe helpers.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

var (
	evaluatorCallsTotal        *prometheus.CounterVec
	evaluatorCallSeconds       *prometheus.HistogramVec
	searchCallsTotal           *prometheus.CounterVec
	searchResultsTotal         *prometheus.CounterVec
	fetchPagesTotal            *prometheus.CounterVec
	fetchBytesTotal            *prometheus.CounterVec
	fetchDurationSeconds       *prometheus.HistogramVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	activeRuns                 prometheus.Gauge

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		evaluatorCallsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oppcrawler_evaluator_calls_total",
				Help: "Evaluator calls, labeled by kind (tools or schema name) and outcome.",
			},
			[]string{"kind", "outcome"},
		)

		evaluatorCallSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "oppcrawler_evaluator_call_seconds",
				Help:    "Evaluator call latency, labeled by kind.",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"kind"},
		)

		searchCallsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oppcrawler_search_calls_total",
				Help: "Search tool calls, labeled by provider and outcome.",
			},
			[]string{"provider", "outcome"},
		)

		searchResultsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oppcrawler_search_results_total",
				Help: "Search hits returned, labeled by provider.",
			},
			[]string{"provider"},
		)

		fetchPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oppcrawler_fetch_pages_total",
				Help: "Content fetches, labeled by site and outcome.",
			},
			[]string{"site", "outcome"},
		)

		fetchBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oppcrawler_fetch_bytes_total",
				Help: "Raw bytes downloaded, labeled by site.",
			},
			[]string{"site"},
		)

		fetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "oppcrawler_fetch_duration_seconds",
				Help:    "Content fetch latency, labeled by outcome.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"outcome"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)

		activeRuns = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "oppcrawler_active_runs",
				Help: "Number of batch runs currently executing in the run service.",
			},
		)
	})
}

// SanitizeSite extracts a lowercase hostname from a URL.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Outcome maps an error to the outcome label.
func Outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeSuccess
}

// ObserveEvaluatorCall records one evaluator round trip.
func ObserveEvaluatorCall(kind string, err error, duration time.Duration) {
	Init()
	evaluatorCallsTotal.WithLabelValues(kind, Outcome(err)).Inc()
	evaluatorCallSeconds.WithLabelValues(kind).Observe(duration.Seconds())
}

// ObserveSearch records one search tool call.
func ObserveSearch(provider string, results int, err error) {
	Init()
	searchCallsTotal.WithLabelValues(provider, Outcome(err)).Inc()
	if results > 0 {
		searchResultsTotal.WithLabelValues(provider).Add(float64(results))
	}
}

// ObserveFetch records one content fetch.
func ObserveFetch(link string, bytesFetched int, err error, duration time.Duration) {
	Init()
	site := SanitizeSite(link)
	outcome := Outcome(err)
	fetchPagesTotal.WithLabelValues(site, outcome).Inc()
	if bytesFetched > 0 {
		fetchBytesTotal.WithLabelValues(site).Add(float64(bytesFetched))
	}
	fetchDurationSeconds.WithLabelValues(outcome).Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// IncActiveRuns increments the active runs gauge.
func IncActiveRuns() {
	Init()
	activeRuns.Inc()
}

// DecActiveRuns decrements the active runs gauge.
func DecActiveRuns() {
	Init()
	activeRuns.Dec()
}
