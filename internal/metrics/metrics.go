// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package metrics exposes Prometheus instrumentation for the admin:
// outbound backend traffic, the backend circuit breaker, the list cache,
// admin mutations and scheduled jobs.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// BackendRequestsTotal counts backend calls by resource endpoint, method and status.
	// Status is the HTTP status code, "error" for transport failures or "rejected"
	// when the circuit breaker refused the call.
	BackendRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedadmin_backend_requests_total",
			Help: "Total number of requests sent to the content backend",
		},
		[]string{"endpoint", "method", "status"},
	)

	BackendRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "feedadmin_backend_request_duration_seconds",
			Help:    "Duration of content backend requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method"},
	)

	// CircuitBreakerState is 0=closed, 1=half-open, 2=open.
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "feedadmin_circuit_breaker_state",
			Help: "Backend circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedadmin_circuit_breaker_transitions_total",
			Help: "Backend circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	ListCacheResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedadmin_list_cache_results_total",
			Help: "List cache lookups by resource and result (hit, miss)",
		},
		[]string{"resource", "result"},
	)

	// MutationsTotal counts admin mutations by resource, action and outcome.
	MutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedadmin_mutations_total",
			Help: "Admin create/update/delete operations",
		},
		[]string{"resource", "action", "outcome"},
	)

	// BackendUp is 1 when the last scheduled probe reached the backend.
	BackendUp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "feedadmin_backend_up",
			Help: "Whether the last backend probe succeeded",
		},
	)

	JobRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedadmin_scheduler_job_runs_total",
			Help: "Scheduled job executions by job and outcome",
		},
		[]string{"job", "outcome"},
	)
)

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
