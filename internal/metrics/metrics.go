// Package metrics exposes Prometheus collectors for the lead discovery service.
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
	providerCallsTotal          *prometheus.CounterVec
	providerCallDurationSeconds *prometheus.HistogramVec
	httpRequestsTotal           *prometheus.CounterVec
	httpRequestDurationSeconds  *prometheus.HistogramVec
	quotaRejectionsTotal        *prometheus.CounterVec
	rateLimitRejectionsTotal    prometheus.Counter
	resolveOutcomesTotal        *prometheus.CounterVec
	enrichPagesTotal            *prometheus.CounterVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		providerCallsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leadscout_provider_calls_total",
				Help: "Total outbound vendor API calls, labeled by provider and outcome.",
			},
			[]string{"provider", "outcome"},
		)

		providerCallDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "leadscout_provider_call_duration_seconds",
				Help:    "Histogram of vendor API call latencies, labeled by provider.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"provider"},
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

		quotaRejectionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leadscout_quota_rejections_total",
				Help: "Total calls denied by the monthly quota gate, labeled by provider.",
			},
			[]string{"provider"},
		)

		rateLimitRejectionsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "leadscout_rate_limit_rejections_total",
				Help: "Total API requests rejected by the per-identifier rate limiter.",
			},
		)

		resolveOutcomesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leadscout_resolve_outcomes_total",
				Help: "Website resolution outcomes, labeled by winning provider (or none).",
			},
			[]string{"provider"},
		)

		enrichPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leadscout_enrich_pages_total",
				Help: "Pages fetched during contact extraction, labeled by site and status.",
			},
			[]string{"site", "status"},
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

// ObserveProviderCall records one vendor API call with its latency.
func ObserveProviderCall(provider, outcome string, duration time.Duration) {
	providerCallsTotal.WithLabelValues(provider, outcome).Inc()
	providerCallDurationSeconds.WithLabelValues(provider).Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveQuotaRejection increments the quota denial counter for a provider.
func ObserveQuotaRejection(provider string) {
	quotaRejectionsTotal.WithLabelValues(provider).Inc()
}

// ObserveRateLimitRejection increments the rate limiter rejection counter.
func ObserveRateLimitRejection() {
	rateLimitRejectionsTotal.Inc()
}

// ObserveResolveOutcome records which provider won a website resolution.
// Pass "none" when the cascade exhausted without a hit.
func ObserveResolveOutcome(provider string) {
	resolveOutcomesTotal.WithLabelValues(provider).Inc()
}

// ObserveEnrichPage records a page fetch during contact extraction.
func ObserveEnrichPage(site, status string) {
	enrichPagesTotal.WithLabelValues(SanitizeSite(site), status).Inc()
}
