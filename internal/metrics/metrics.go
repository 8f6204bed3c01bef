// Stocksync - Offline-First Inventory Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stocksync

// Package metrics exposes Prometheus instrumentation for the sync engine:
// pending queue depth, reconciliation outcomes, remote circuit breaker
// state, and WebSocket fanout.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Pending-Sync Queue Metrics
	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stocksync_queue_depth",
			Help: "Current number of pending queue entries per collection",
		},
		[]string{"collection"},
	)

	QueueBackfilled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stocksync_queue_backfilled_total",
			Help: "Entities re-queued by the self-healing backfill scan",
		},
		[]string{"collection"},
	)

	// Reconciliation Metrics
	ReconcileDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stocksync_reconcile_duration_seconds",
			Help:    "Duration of reconciliation passes in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	ItemsSynced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stocksync_items_synced_total",
			Help: "Queue entries successfully reconciled with the remote store",
		},
		[]string{"collection", "operation"}, // operation: create, update, delete
	)

	ReconcileErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stocksync_reconcile_errors_total",
			Help: "Per-collection reconciliation errors",
		},
		[]string{"collection", "class"}, // class: transient, auth, internal
	)

	ReconcileRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stocksync_reconcile_rejected_total",
			Help: "Reconciliation passes refused before starting",
		},
		[]string{"reason"}, // reason: in_progress, offline
	)

	// Live-Update Bridge Metrics
	SnapshotsApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stocksync_snapshots_applied_total",
			Help: "Remote snapshots applied to the local durable store",
		},
		[]string{"collection"},
	)

	SnapshotErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stocksync_snapshot_errors_total",
			Help: "Remote snapshots dropped due to conversion failures",
		},
		[]string{"collection"},
	)

	// Remote Adapter / Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stocksync_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stocksync_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	RemoteRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stocksync_remote_requests_total",
			Help: "Remote store requests by outcome",
		},
		[]string{"operation", "outcome"}, // outcome: success, auth_failure, transient, rejected
	)

	// WebSocket Hub Metrics
	WebSocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stocksync_websocket_clients",
			Help: "Currently connected WebSocket clients",
		},
	)

	WebSocketDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stocksync_websocket_dropped_total",
			Help: "Broadcast messages dropped because a client send buffer was full",
		},
	)
)
