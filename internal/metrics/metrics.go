// glpidash - GLPI Service Desk Metrics Dashboard
// Copyright 2026 glpidash contributors
// SPDX-License-Identifier: MIT
// https://github.com/glpidash/glpidash

// Package metrics exposes Prometheus collectors for production
// observability: upstream GLPI request latency and outcomes, session
// renewals, circuit breaker state, cache efficiency, aggregation
// timing, and the HTTP API surface.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Upstream GLPI request metrics
	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "glpi_request_duration_seconds",
			Help:    "Duration of GLPI API requests in seconds, including retries",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "endpoint"},
	)

	UpstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "glpi_requests_total",
			Help: "Total number of GLPI API requests by final outcome",
		},
		[]string{"method", "endpoint", "status"},
	)

	UpstreamRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "glpi_request_retries_total",
			Help: "Total number of GLPI request retries by reason",
		},
		[]string{"endpoint", "reason"}, // "rate_limited", "server_error", "network", "reauth"
	)

	// Session lifecycle metrics
	SessionRenewalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "glpi_session_renewals_total",
			Help: "Total number of GLPI session renewal attempts by outcome",
		},
		[]string{"outcome"}, // "success", "failure"
	)

	SessionValid = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "glpi_session_valid",
			Help: "Whether a valid GLPI session is currently held (1) or not (0)",
		},
	)

	// Circuit breaker metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through the circuit breaker by outcome",
		},
		[]string{"name", "outcome"}, // "success", "failure", "rejected"
	)

	// Cache metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache"}, // "dashboard", "names"
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache"},
	)

	StaleServedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dashboard_stale_served_total",
			Help: "Total number of stale dashboard results served while upstream was unavailable",
		},
	)

	// Aggregation pipeline metrics
	AggregationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "aggregation_duration_seconds",
			Help:    "Duration of a full fetch-normalize-aggregate cycle in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	RecordsSkippedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "normalize_records_skipped_total",
			Help: "Total number of upstream records skipped as malformed during normalization",
		},
	)

	// API endpoint metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)
)

// RecordAPIRequest records a completed API request.
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordUpstreamRequest records the final outcome of an upstream GLPI
// request, including however many retries the executor performed.
func RecordUpstreamRequest(method, endpoint string, statusCode int, duration time.Duration) {
	UpstreamRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	UpstreamRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
