// Stocksync - Offline-First Inventory Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stocksync

// Package api exposes the sync engine over HTTP: entity CRUD backed by
// the mutation orchestrator, sync status and manual trigger endpoints,
// Prometheus metrics, and the WebSocket live-update feed.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/stocksync/internal/connectivity"
	"github.com/tomtom215/stocksync/internal/engine"
	"github.com/tomtom215/stocksync/internal/queue"
	"github.com/tomtom215/stocksync/internal/reconcile"
	"github.com/tomtom215/stocksync/internal/websocket"
)

// Router owns the HTTP surface and its collaborators.
type Router struct {
	engine     *engine.Orchestrator
	queue      *queue.Queue
	reconciler *reconcile.Reconciler
	signal     *connectivity.Signal
	hub        *websocket.Hub
}

// NewRouter wires a Router. hub may be nil when the WebSocket feed is
// disabled.
func NewRouter(e *engine.Orchestrator, q *queue.Queue, r *reconcile.Reconciler, sig *connectivity.Signal, hub *websocket.Hub) *Router {
	return &Router{engine: e, queue: q, reconciler: r, signal: sig, hub: hub}
}

// Setup builds the route tree.
func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", rt.handleHealth)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/sync/status", rt.handleSyncStatus)
		r.Post("/sync/trigger", rt.handleSyncTrigger)

		if rt.hub != nil {
			r.Get("/ws", rt.handleWebSocket)
		}

		r.Route("/{collection}", func(r chi.Router) {
			r.Get("/", rt.handleList)
			r.Post("/", rt.handleCreate)
			r.Put("/{id}", rt.handleUpdate)
			r.Delete("/{id}", rt.handleDelete)
		})
	})

	return r
}
