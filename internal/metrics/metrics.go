// Package metrics exposes Prometheus collectors for the rank checker.
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

	"github.com/JakeFAU/admissions-rank/internal/admission"
)

// Check statuses recorded per URL.
const (
	CheckOK            = "ok"
	CheckTargetMissing = "target_missing"
	CheckFetchFailed   = "fetch_failed"
	CheckExtractFailed = "extract_failed"
	CheckCanceled      = "canceled"
)

var (
	fetchAttemptsTotal         *prometheus.CounterVec
	fetchAttemptDuration       *prometheus.HistogramVec
	checksTotal                *prometheus.CounterVec
	staticProbesTotal          *prometheus.CounterVec
	rateLimitDelaySeconds      *prometheus.HistogramVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		fetchAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rankcheck_fetch_attempts_total",
				Help: "Total number of page fetch attempts, labeled by site and outcome.",
			},
			[]string{"site", "outcome"},
		)

		fetchAttemptDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rankcheck_fetch_attempt_duration_seconds",
				Help:    "Histogram of fetch attempt durations, labeled by outcome.",
				Buckets: []float64{1, 2, 5, 10, 20, 30, 60},
			},
			[]string{"outcome"},
		)

		checksTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rankcheck_checks_total",
				Help: "Total number of ranking list checks, labeled by site and status.",
			},
			[]string{"site", "status"},
		)

		staticProbesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rankcheck_static_probes_total",
				Help: "Total number of static probe fetches, labeled by whether the browser was skipped.",
			},
			[]string{"result"},
		)

		rateLimitDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rankcheck_rate_limit_delay_seconds",
				Help:    "Histogram of delays introduced by per-host pacing, labeled by site.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"site"},
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

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
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

// ObserveAttempt records the outcome and duration of one fetch attempt.
func ObserveAttempt(attempt admission.FetchAttempt) {
	Init()
	fetchAttemptsTotal.WithLabelValues(SanitizeSite(attempt.URL), string(attempt.Outcome)).Inc()
	fetchAttemptDuration.WithLabelValues(string(attempt.Outcome)).Observe(attempt.Duration.Seconds())
}

// ObserveCheck increments the per-URL check counter.
func ObserveCheck(site, status string) {
	Init()
	checksTotal.WithLabelValues(SanitizeSite(site), status).Inc()
}

// ObserveStaticProbe records whether a static probe made the browser unnecessary.
func ObserveStaticProbe(skippedBrowser bool) {
	Init()
	result := "fallback"
	if skippedBrowser {
		result = "used"
	}
	staticProbesTotal.WithLabelValues(result).Inc()
}

// ObserveRateLimitDelay records how long pacing held an attempt back.
func ObserveRateLimitDelay(host string, d time.Duration) {
	Init()
	rateLimitDelaySeconds.WithLabelValues(SanitizeSite(host)).Observe(d.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
