// Stocksync - Offline-First Inventory Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stocksync

package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tomtom215/stocksync/internal/models"
)

func TestLoop_DrainsOnConnectivityRestore(t *testing.T) {
	f := newFixture(t)
	f.signal.Set(false)
	f.addLocal(t, models.Products, map[string]any{"sku": "X1"})

	loop := NewLoop(f.reconciler, time.Hour) // ticker must not fire in this test

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Serve(ctx) }()

	// Give Serve a moment to subscribe before flipping the signal.
	time.Sleep(50 * time.Millisecond)
	f.signal.Set(true)

	deadline := time.After(2 * time.Second)
	for f.queue.Len(models.Products) != 0 {
		select {
		case <-deadline:
			t.Fatal("Expected the queue drained after connectivity restore")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled from Serve, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Expected Serve to return after cancel")
	}
}

func TestLoop_PeriodicTickDrainsQueue(t *testing.T) {
	f := newFixture(t)
	f.addLocal(t, models.Products, map[string]any{"sku": "X1"})

	loop := NewLoop(f.reconciler, 20*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = loop.Serve(ctx) }()

	deadline := time.After(2 * time.Second)
	for f.queue.Len(models.Products) != 0 {
		select {
		case <-deadline:
			t.Fatal("Expected the periodic tick to drain the queue")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestNewLoop_DefaultInterval(t *testing.T) {
	f := newFixture(t)
	loop := NewLoop(f.reconciler, 0)
	if loop.interval != DefaultInterval {
		t.Errorf("Expected default interval %v, got %v", DefaultInterval, loop.interval)
	}
}
