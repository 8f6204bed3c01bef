// Stocksync - Offline-First Inventory Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stocksync

package store

import (
	"testing"

	"github.com/tomtom215/stocksync/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := Open("", true)
	if err != nil {
		t.Fatalf("Open in-memory badger failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return New(db)
}

func TestStore_SaveAndGet(t *testing.T) {
	s := newTestStore(t)

	entities := []models.Entity{
		{ID: "abc123", Fields: map[string]any{"sku": "X1", "name": "Widget"}},
		{ID: "def456", Fields: map[string]any{"sku": "X2", "name": "Gadget"}},
	}
	s.SaveCollection(models.Products, entities)

	got := s.GetCollection(models.Products)
	if len(got) != 2 {
		t.Fatalf("Expected 2 entities, got %d", len(got))
	}
	if got[0].ID != "abc123" || got[0].String("sku") != "X1" {
		t.Errorf("Expected first entity abc123/X1, got %s/%s", got[0].ID, got[0].String("sku"))
	}
}

func TestStore_GetMissingCollectionIsEmpty(t *testing.T) {
	s := newTestStore(t)

	got := s.GetCollection(models.Loans)
	if got == nil {
		t.Fatal("Expected empty slice, got nil")
	}
	if len(got) != 0 {
		t.Errorf("Expected empty collection, got %d entities", len(got))
	}
}

func TestStore_SaveReplacesWholesale(t *testing.T) {
	s := newTestStore(t)

	s.SaveCollection(models.Products, []models.Entity{
		{ID: "a", Fields: map[string]any{"sku": "A"}},
		{ID: "b", Fields: map[string]any{"sku": "B"}},
	})
	s.SaveCollection(models.Products, []models.Entity{
		{ID: "c", Fields: map[string]any{"sku": "C"}},
	})

	got := s.GetCollection(models.Products)
	if len(got) != 1 {
		t.Fatalf("Expected snapshot replace to be total, got %d entities", len(got))
	}
	if got[0].ID != "c" {
		t.Errorf("Expected only entity c to survive, got %s", got[0].ID)
	}
}

func TestStore_SaveEmptySliceIsValidReplace(t *testing.T) {
	s := newTestStore(t)

	s.SaveCollection(models.Products, []models.Entity{{ID: "a"}})
	s.SaveCollection(models.Products, []models.Entity{})

	got := s.GetCollection(models.Products)
	if len(got) != 0 {
		t.Errorf("Expected empty snapshot after empty save, got %d entities", len(got))
	}
}

func TestStore_CollectionsAreIndependent(t *testing.T) {
	s := newTestStore(t)

	s.SaveCollection(models.Products, []models.Entity{{ID: "p1"}})
	s.SaveCollection(models.Movements, []models.Entity{{ID: "m1"}, {ID: "m2"}})

	if got := len(s.GetCollection(models.Products)); got != 1 {
		t.Errorf("Expected 1 product, got %d", got)
	}
	if got := len(s.GetCollection(models.Movements)); got != 2 {
		t.Errorf("Expected 2 movements, got %d", got)
	}
}

func TestStore_UnknownCollectionIsNoOp(t *testing.T) {
	s := newTestStore(t)

	s.SaveCollection("invoices", []models.Entity{{ID: "x"}})

	got := s.GetCollection("invoices")
	if len(got) != 0 {
		t.Errorf("Expected unknown collection save to no-op, got %d entities", len(got))
	}
}

func TestStore_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	db, err := Open(dir, false)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	s := New(db)
	s.SaveCollection(models.Products, []models.Entity{
		{ID: "abc123", Fields: map[string]any{"sku": "X1"}},
	})
	if err := db.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	db2, err := Open(dir, false)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer db2.Close()

	got := New(db2).GetCollection(models.Products)
	if len(got) != 1 || got[0].ID != "abc123" {
		t.Errorf("Expected snapshot to survive restart, got %+v", got)
	}
}

func TestStore_ClearAll(t *testing.T) {
	s := newTestStore(t)

	s.SaveCollection(models.Products, []models.Entity{{ID: "a"}})
	s.SaveCollection(models.Users, []models.Entity{{ID: "u"}})

	if err := s.ClearAll(); err != nil {
		t.Fatalf("ClearAll failed: %v", err)
	}

	for _, c := range models.Collections() {
		if got := len(s.GetCollection(c)); got != 0 {
			t.Errorf("Expected %s empty after ClearAll, got %d entities", c, got)
		}
	}
}
