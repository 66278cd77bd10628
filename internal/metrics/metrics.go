// Package metrics exposes Prometheus collectors for the harvester.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	listingFetchesTotal        *prometheus.CounterVec
	listingRetriesTotal        prometheus.Counter
	feedStopsTotal             *prometheus.CounterVec
	postingsTotal              *prometheus.CounterVec
	detailOutcomesTotal        *prometheus.CounterVec
	fetchDurationSeconds       *prometheus.HistogramVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		listingFetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_listing_fetches_total",
				Help: "Total number of listing page fetches, labeled by status code.",
			},
			[]string{"status"},
		)

		listingRetriesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "harvester_listing_retries_total",
				Help: "Total number of listing pages re-issued after a throttled response.",
			},
		)

		feedStopsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_feed_stops_total",
				Help: "Total number of finished feed walks, labeled by stop reason.",
			},
			[]string{"reason"},
		)

		postingsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_postings_total",
				Help: "Total number of extracted postings, labeled by reconciliation result.",
			},
			[]string{"result"},
		)

		detailOutcomesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_detail_outcomes_total",
				Help: "Total number of detail page fetches, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		fetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "harvester_fetch_duration_seconds",
				Help:    "Histogram of upstream fetch latencies, labeled by kind.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"kind"},
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

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveListingFetch records one listing fetch. A status of 0 marks a
// transport failure.
func ObserveListingFetch(status int, duration time.Duration) {
	Init()
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	listingFetchesTotal.WithLabelValues(label).Inc()
	fetchDurationSeconds.WithLabelValues("listing").Observe(duration.Seconds())
}

// ObserveListingRetry increments the retry counter.
func ObserveListingRetry() {
	Init()
	listingRetriesTotal.Inc()
}

// ObserveFeedStop records why a feed walk ended.
func ObserveFeedStop(reason string) {
	Init()
	feedStopsTotal.WithLabelValues(reason).Inc()
}

// ObservePosting records a reconciliation result.
func ObservePosting(result string) {
	Init()
	postingsTotal.WithLabelValues(result).Inc()
}

// ObserveDetail records a detail fetch outcome.
func ObserveDetail(outcome string, duration time.Duration) {
	Init()
	detailOutcomesTotal.WithLabelValues(outcome).Inc()
	fetchDurationSeconds.WithLabelValues("detail").Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
