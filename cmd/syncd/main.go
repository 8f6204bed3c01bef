// Stocksync - Offline-First Inventory Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stocksync

// Package main is the entry point for the Stocksync daemon.
//
// Stocksync keeps a local inventory database usable with or without a
// network connection. Every change lands in the local BadgerDB store
// first; a pending-sync queue and a periodic reconciliation loop push
// offline work to the remote store when connectivity returns, and a
// live-update bridge streams remote snapshots back into the local
// store.
//
// The daemon wires its components in order:
//
//  1. Configuration: Koanf v2 layered load (defaults, YAML file, STOCKSYNC_* env)
//  2. Local durable store: BadgerDB, with the pending-sync queue on top
//  3. Remote adapter: HTTP+WebSocket when remote.enabled, in-process otherwise
//  4. Event bus, mutation orchestrator, reconciler, live-update bridge
//  5. WebSocket hub and REST API (chi)
//  6. Supervision tree (suture): sync layer and api layer
//
// Graceful shutdown on SIGINT/SIGTERM drains the HTTP server, stops the
// sync services, and closes the database.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/stocksync/internal/api"
	"github.com/tomtom215/stocksync/internal/bridge"
	"github.com/tomtom215/stocksync/internal/config"
	"github.com/tomtom215/stocksync/internal/connectivity"
	"github.com/tomtom215/stocksync/internal/engine"
	"github.com/tomtom215/stocksync/internal/events"
	"github.com/tomtom215/stocksync/internal/logging"
	"github.com/tomtom215/stocksync/internal/notify"
	"github.com/tomtom215/stocksync/internal/queue"
	"github.com/tomtom215/stocksync/internal/reconcile"
	"github.com/tomtom215/stocksync/internal/remote"
	"github.com/tomtom215/stocksync/internal/store"
	"github.com/tomtom215/stocksync/internal/supervisor"
	ws "github.com/tomtom215/stocksync/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Bool("remote_enabled", cfg.Remote.Enabled).
		Bool("in_memory", cfg.Storage.InMemory).
		Str("storage_path", cfg.Storage.Path).
		Msg("Starting Stocksync")

	db, err := store.Open(cfg.Storage.Path, cfg.Storage.InMemory)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open local store")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing local store")
		}
	}()

	localStore := store.New(db)
	pendingQueue := queue.New(localStore)

	var adapter remote.Adapter
	if cfg.Remote.Enabled {
		adapter = remote.NewHTTPAdapter(remote.HTTPConfig{
			BaseURL:   cfg.Remote.BaseURL,
			APIKey:    cfg.Remote.APIKey,
			Timeout:   cfg.Remote.Timeout,
			RateLimit: cfg.Remote.RateLimit,
			Burst:     cfg.Remote.Burst,
		})
		logging.Info().Str("base_url", cfg.Remote.BaseURL).Msg("Remote store adapter enabled")
	} else {
		adapter = remote.NewMemoryAdapter()
		logging.Info().Msg("Remote store disabled - running local-only with in-process adapter")
	}

	connSignal := connectivity.New(cfg.Sync.StartOnline)
	bus := events.NewBus()
	defer func() {
		if err := bus.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing event bus")
		}
	}()
	sink := notify.NewBusSink(bus)

	orchestrator := engine.New(localStore, pendingQueue, adapter, connSignal, sink, bus)
	reconciler := reconcile.New(localStore, pendingQueue, adapter, connSignal, sink, bus)

	hub := ws.NewHub()
	router := api.NewRouter(orchestrator, pendingQueue, reconciler, connSignal, hub)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{})
	tree.AddSyncService(hub)
	tree.AddSyncService(ws.NewForwarder(bus, hub))
	tree.AddSyncService(bridge.New(localStore, adapter, bus))
	tree.AddSyncService(reconcile.NewLoop(reconciler, cfg.Sync.Interval))
	tree.AddAPIService(supervisor.NewHTTPServerService(httpServer, httpServer.Addr, cfg.Server.Timeout))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := tree.Serve(ctx); err != nil && ctx.Err() == nil {
		logging.Error().Err(err).Msg("Supervision tree terminated")
		os.Exit(1)
	}
	logging.Info().Msg("Stocksync stopped")
}
