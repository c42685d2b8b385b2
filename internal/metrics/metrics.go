// Package metrics exposes Prometheus collectors for the scrapers and the API.
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
	fetchTotal                 *prometheus.CounterVec
	fetchAttemptsTotal         *prometheus.CounterVec
	lineupScrapesTotal         *prometheus.CounterVec
	socialFetchTotal           *prometheus.CounterVec
	statsUpsertsTotal          *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	rateLimitDelaySeconds      *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		fetchTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ovalsync_fetch_total",
				Help: "Total number of page fetches, labeled by site and status.",
			},
			[]string{"site", "status"},
		)

		fetchAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ovalsync_fetch_attempts_total",
				Help: "Total number of HTTP attempts made while fetching pages, including retries.",
			},
			[]string{"site"},
		)

		lineupScrapesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ovalsync_lineup_scrapes_total",
				Help: "Total number of lineup scrapes, labeled by winning strategy and outcome.",
			},
			[]string{"strategy", "outcome"},
		)

		socialFetchTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ovalsync_social_fetch_total",
				Help: "Total number of social platform fetches, labeled by platform and outcome.",
			},
			[]string{"platform", "outcome"},
		)

		statsUpsertsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ovalsync_stats_upserts_total",
				Help: "Total number of social stats rows written, labeled by outcome.",
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
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15},
			},
			[]string{"method", "route"},
		)

		rateLimitDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ovalsync_rate_limit_delay_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"domain"},
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

// ObserveFetch records the final outcome of a page fetch and how many attempts it took.
func ObserveFetch(site, status string, attempts int) {
	Init()
	sanitizedSite := SanitizeSite(site)
	fetchTotal.WithLabelValues(sanitizedSite, status).Inc()
	if attempts > 0 {
		fetchAttemptsTotal.WithLabelValues(sanitizedSite).Add(float64(attempts))
	}
}

// ObserveLineupScrape records which strategy produced a lineup.
func ObserveLineupScrape(strategy, outcome string) {
	Init()
	if strategy == "" {
		strategy = "none"
	}
	lineupScrapesTotal.WithLabelValues(strategy, outcome).Inc()
}

// ObserveSocialFetch records a single platform fetch.
func ObserveSocialFetch(platform, outcome string) {
	Init()
	socialFetchTotal.WithLabelValues(platform, outcome).Inc()
}

// ObserveStatsUpsert records a social stats write.
func ObserveStatsUpsert(outcome string) {
	Init()
	statsUpsertsTotal.WithLabelValues(outcome).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	Init()
	rateLimitDelaySeconds.WithLabelValues(domain).Observe(duration.Seconds())
}
