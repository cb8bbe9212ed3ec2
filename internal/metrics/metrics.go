// Herald - Multi-Source Content Monitoring and Notification
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/herald

// Package metrics provides Prometheus instrumentation for Herald:
// poll cycles, notification delivery, outbound fetch behavior, circuit
// breaker state, node selection, and activity sampling.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Poll cycle metrics
	PollCycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "herald_poll_cycles_total",
			Help: "Total number of source poll cycles by outcome",
		},
		[]string{"source", "outcome"}, // "ok", "unavailable", "error"
	)

	PollDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "herald_poll_duration_seconds",
			Help:    "Duration of one source poll cycle in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "herald_notifications_sent_total",
			Help: "Total number of notifications dispatched per source",
		},
		[]string{"source"},
	)

	ItemsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "herald_items_skipped_total",
			Help: "Total number of items skipped by reason",
		},
		[]string{"source", "reason"}, // "filtered", "shape", "untracked"
	)

	// Fetch metrics
	FetchRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "herald_fetch_requests_total",
			Help: "Total number of outbound fetch attempts by outcome",
		},
		[]string{"host", "outcome"}, // "success", "failure", "rejected"
	)

	FetchRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "herald_fetch_retries_total",
			Help: "Total number of fetch retry attempts",
		},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "herald_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"host"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "herald_circuit_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"host", "from", "to"},
	)

	// Node selection metrics
	NodeConnectAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "herald_node_connect_attempts_total",
			Help: "Total number of node connect attempts by outcome",
		},
		[]string{"outcome"}, // "success", "failure"
	)

	NodeSwitches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "herald_node_switches_total",
			Help: "Total number of node failover switches by outcome",
		},
		[]string{"outcome"},
	)

	RegistrySize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "herald_node_registry_size",
			Help: "Number of candidate nodes in the registry after the last refresh",
		},
	)

	// Activity sampler metrics
	ActivityPlayers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "herald_activity_players",
			Help: "Total players observed in the last activity sample",
		},
	)

	ActivityServers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "herald_activity_servers",
			Help: "Servers observed in the last activity sample",
		},
	)
)
