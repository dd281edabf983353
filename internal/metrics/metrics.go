// Package metrics exposes Prometheus collectors for the sync engine.
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

var (
	apiCallsTotal              *prometheus.CounterVec
	apiCallDurationSeconds     *prometheus.HistogramVec
	rateLimitDeniedTotal       *prometheus.CounterVec
	usageRecordFailuresTotal   prometheus.Counter
	rowsUpsertedTotal          *prometheus.CounterVec
	syncRunsTotal              *prometheus.CounterVec
	syncDurationSeconds        *prometheus.HistogramVec
	sitemapErrors              *prometheus.GaugeVec
	activeWorkers              prometheus.Gauge
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		apiCallsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gscsync_api_calls_total",
				Help: "Total remote API call attempts, labeled by service, operation and outcome.",
			},
			[]string{"service", "operation", "outcome"},
		)

		apiCallDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gscsync_api_call_duration_seconds",
				Help:    "Histogram of remote API call latencies.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"service", "operation"},
		)

		rateLimitDeniedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gscsync_rate_limit_denied_total",
				Help: "Calls denied by the fixed-window rate limiter, labeled by service.",
			},
			[]string{"service"},
		)

		usageRecordFailuresTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "gscsync_usage_record_failures_total",
				Help: "Usage log writes that failed and were dropped.",
			},
		)

		rowsUpsertedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gscsync_rows_upserted_total",
				Help: "Statistics rows written, labeled by site and action (inserted or updated).",
			},
			[]string{"site", "action"},
		)

		syncRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gscsync_sync_runs_total",
				Help: "Sync runs, labeled by kind and status.",
			},
			[]string{"kind", "status"},
		)

		syncDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gscsync_sync_duration_seconds",
				Help:    "Histogram of sync run durations, labeled by kind.",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
			},
			[]string{"kind"},
		)

		sitemapErrors = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "gscsync_sitemap_errors",
				Help: "Errors reported for submitted sitemaps at the last check, labeled by site.",
			},
			[]string{"site"},
		)

		activeWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "gscsync_active_workers",
				Help: "Number of property sync workers currently busy.",
			},
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
	})
}

// SanitizeSite reduces a site URL or domain property to a lowercase hostname.
// It returns "unknown" if the input cannot be parsed.
func SanitizeSite(rawURL string) string {
	rawURL = strings.TrimPrefix(rawURL, "sc-domain:")
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

// ObserveAPICall records one remote call attempt.
func ObserveAPICall(service, operation string, success bool, duration time.Duration) {
	Init()
	outcome := "failure"
	if success {
		outcome = "success"
	}
	apiCallsTotal.WithLabelValues(service, operation, outcome).Inc()
	apiCallDurationSeconds.WithLabelValues(service, operation).Observe(duration.Seconds())
}

// ObserveRateLimitDenied counts a denied acquire.
func ObserveRateLimitDenied(service string) {
	Init()
	rateLimitDeniedTotal.WithLabelValues(service).Inc()
}

// ObserveUsageRecordFailure counts a dropped usage log write.
func ObserveUsageRecordFailure() {
	Init()
	usageRecordFailuresTotal.Inc()
}

// ObserveRowsUpserted counts rows written for a site.
func ObserveRowsUpserted(site string, inserted, updated int) {
	Init()
	s := SanitizeSite(site)
	if inserted > 0 {
		rowsUpsertedTotal.WithLabelValues(s, "inserted").Add(float64(inserted))
	}
	if updated > 0 {
		rowsUpsertedTotal.WithLabelValues(s, "updated").Add(float64(updated))
	}
}

// ObserveSync records a finished sync run.
func ObserveSync(kind, status string, duration time.Duration) {
	Init()
	syncRunsTotal.WithLabelValues(kind, status).Inc()
	syncDurationSeconds.WithLabelValues(kind).Observe(duration.Seconds())
}

// SetSitemapErrors sets the sitemap error gauge for a site.
func SetSitemapErrors(site string, errors int64) {
	Init()
	sitemapErrors.WithLabelValues(SanitizeSite(site)).Set(float64(errors))
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	Init()
	activeWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	Init()
	activeWorkers.Dec()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
