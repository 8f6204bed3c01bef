// Stocksync - Offline-First Inventory Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stocksync

package bridge

import (
	"context"
	"testing"
	"time"

	"github.com/tomtom215/stocksync/internal/models"
	"github.com/tomtom215/stocksync/internal/remote"
	"github.com/tomtom215/stocksync/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := store.Open("", true)
	if err != nil {
		t.Fatalf("Open store failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return store.New(db)
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatal(msg)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestServe_SnapshotReplacesCollection(t *testing.T) {
	s := newTestStore(t)
	a := remote.NewMemoryAdapter()
	b := New(s, a, nil)

	// Pre-existing local state that the snapshot must fully replace.
	s.SaveCollection(models.Products, []models.Entity{
		{ID: "old1", Fields: map[string]any{"sku": "OLD"}},
		{ID: "old2", Fields: map[string]any{"sku": "GONE"}},
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { defer close(done); _ = b.Serve(ctx) }()

	// Wait for the subscriptions before emitting.
	waitFor(t, func() bool {
		a.Emit(models.Products, []models.Entity{{ID: "new1", Fields: map[string]any{"sku": "NEW"}}})
		got := s.GetCollection(models.Products)
		return len(got) == 1 && got[0].ID == "new1"
	}, "Expected the pushed snapshot to replace the collection wholesale")

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Expected Serve to return after cancel")
	}
}

func TestServe_SnapshotIsNormalized(t *testing.T) {
	s := newTestStore(t)
	a := remote.NewMemoryAdapter()
	b := New(s, a, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = b.Serve(ctx) }()

	waitFor(t, func() bool {
		a.Emit(models.Products, []models.Entity{{
			ID: "p1",
			Fields: map[string]any{
				"sku":       "X1",
				"createdAt": float64(1700000000000), // unix millis from an old client
			},
		}})
		got := s.GetCollection(models.Products)
		if len(got) != 1 {
			return false
		}
		created := got[0].String("createdAt")
		if _, err := time.Parse(time.RFC3339, created); err != nil {
			return false
		}
		// Numeric defaults filled for products.
		_, hasStock := got[0].Fields["currentStock"]
		return hasStock
	}, "Expected timestamps normalized and defaults filled")
}

func TestServe_EmptySnapshotEmptiesCollection(t *testing.T) {
	s := newTestStore(t)
	a := remote.NewMemoryAdapter()
	b := New(s, a, nil)

	s.SaveCollection(models.Loans, []models.Entity{{ID: "l1"}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = b.Serve(ctx) }()

	waitFor(t, func() bool {
		a.Emit(models.Loans, []models.Entity{})
		return len(s.GetCollection(models.Loans)) == 0
	}, "Expected an empty snapshot to empty the collection")
}

func TestServe_SubscriptionFailureRunsLocalOnly(t *testing.T) {
	s := newTestStore(t)
	a := remote.NewMemoryAdapter()
	a.FailWith(models.Products, remote.ErrUnavailable)
	b := New(s, a, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = b.Serve(ctx) }()

	// Products never subscribes, but other collections still receive.
	waitFor(t, func() bool {
		a.Emit(models.Loans, []models.Entity{{ID: "l1"}})
		return len(s.GetCollection(models.Loans)) == 1
	}, "Expected other collections to keep receiving when one subscription fails")
}

func TestServe_CollectionsAreIndependent(t *testing.T) {
	s := newTestStore(t)
	a := remote.NewMemoryAdapter()
	b := New(s, a, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = b.Serve(ctx) }()

	waitFor(t, func() bool {
		a.Emit(models.Products, []models.Entity{{ID: "p1"}})
		a.Emit(models.Users, []models.Entity{{ID: "u1"}, {ID: "u2"}})
		return len(s.GetCollection(models.Products)) == 1 &&
			len(s.GetCollection(models.Users)) == 2 &&
			len(s.GetCollection(models.Loans)) == 0
	}, "Expected snapshots routed to their own collections only")
}
