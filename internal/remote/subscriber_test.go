// Stocksync - Offline-First Inventory Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stocksync

package remote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/stocksync/internal/models"
)

func TestWSSubscriber_DeliversSnapshotsAndSkipsMalformedFrames(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/products/watch" {
			t.Errorf("Expected watch path, got %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("token"); got != "test-key" {
			t.Errorf("Expected token query parameter, got %q", got)
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("Upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		_ = conn.WriteMessage(websocket.TextMessage, []byte(`not json`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`[{"id":"p1","sku":"A"}]`))

		// Hold the connection open until the client hangs up.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	sub := newWSSubscriber(srv.URL, "test-key", models.Products)
	snapshots, stop, err := sub.start(context.Background())
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer stop()

	select {
	case snapshot := <-snapshots:
		if len(snapshot) != 1 || snapshot[0].ID != "p1" {
			t.Errorf("Expected [p1], got %v", snapshot)
		}
		if snapshot[0].String("sku") != "A" {
			t.Errorf("Expected sku A, got %q", snapshot[0].String("sku"))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Expected a snapshot after the malformed frame was skipped")
	}
}

func TestWSSubscriber_HandshakeRejectionIsAuthFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	sub := newWSSubscriber(srv.URL, "bad-key", models.Products)
	_, _, err := sub.start(context.Background())
	if !IsAuthFailure(err) {
		t.Errorf("Expected auth failure on 403 handshake, got %v", err)
	}
}

func TestWSSubscriber_UnreachableServerIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	sub := newWSSubscriber(srv.URL, "", models.Products)
	_, _, err := sub.start(context.Background())
	if !IsTransient(err) {
		t.Errorf("Expected transient failure on dial error, got %v", err)
	}
}

func TestWSSubscriber_StopClosesSnapshotChannel(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	sub := newWSSubscriber(srv.URL, "", models.Products)
	snapshots, stop, err := sub.start(context.Background())
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	stop()
	stop() // idempotent

	select {
	case _, open := <-snapshots:
		if open {
			t.Error("Expected snapshot channel closed after stop")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Expected snapshot channel to close after stop")
	}
}
