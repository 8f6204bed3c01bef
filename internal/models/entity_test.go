// Stocksync - Offline-First Inventory Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stocksync

package models

import (
	"strings"
	"testing"

	"github.com/goccy/go-json"
)

func TestEntity_MarshalFlattensFields(t *testing.T) {
	e := Entity{
		ID:             "local-1700000000000-abcd1234",
		OfflineCreated: true,
		SyncStatus:     StatusPending,
		Fields: map[string]any{
			"sku":          "X1",
			"name":         "Widget",
			"currentStock": 5,
		},
	}

	data, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	raw := make(map[string]any)
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Unmarshal of marshaled entity failed: %v", err)
	}

	if raw["sku"] != "X1" {
		t.Errorf("Expected flattened sku field, got %v", raw["sku"])
	}
	if raw["id"] != e.ID {
		t.Errorf("Expected id %q, got %v", e.ID, raw["id"])
	}
	if raw["_offlineCreated"] != true {
		t.Errorf("Expected _offlineCreated=true, got %v", raw["_offlineCreated"])
	}
	if raw["_syncStatus"] != "pending" {
		t.Errorf("Expected _syncStatus=pending, got %v", raw["_syncStatus"])
	}
	if _, ok := raw["Fields"]; ok {
		t.Error("Expected no nested Fields key in wire representation")
	}
}

func TestEntity_MarshalOmitsZeroBookkeeping(t *testing.T) {
	e := Entity{ID: "abc123", Fields: map[string]any{"name": "Widget"}}

	data, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	s := string(data)
	if strings.Contains(s, "_offlineCreated") {
		t.Errorf("Expected _offlineCreated omitted when false, got %s", s)
	}
	if strings.Contains(s, "_syncStatus") {
		t.Errorf("Expected _syncStatus omitted when empty, got %s", s)
	}
	if strings.Contains(s, "_deleted") {
		t.Errorf("Expected _deleted omitted when false, got %s", s)
	}
}

func TestEntity_UnmarshalLiftsBookkeeping(t *testing.T) {
	data := []byte(`{"id":"abc123","_offlineCreated":true,"_syncStatus":"failed","sku":"X1","currentStock":5}`)

	var e Entity
	if err := json.Unmarshal(data, &e); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if e.ID != "abc123" {
		t.Errorf("Expected id abc123, got %q", e.ID)
	}
	if !e.OfflineCreated {
		t.Error("Expected OfflineCreated=true")
	}
	if e.SyncStatus != StatusFailed {
		t.Errorf("Expected failed status, got %q", e.SyncStatus)
	}
	if e.String("sku") != "X1" {
		t.Errorf("Expected sku X1, got %q", e.String("sku"))
	}
	if e.Number("currentStock") != 5 {
		t.Errorf("Expected currentStock 5, got %v", e.Number("currentStock"))
	}
	if _, ok := e.Fields["id"]; ok {
		t.Error("Expected reserved id key excluded from Fields")
	}
}

func TestEntity_RoundTrip(t *testing.T) {
	in := Entity{
		ID:         "abc123",
		SyncStatus: StatusSynced,
		Fields:     map[string]any{"sku": "X1", "name": "Widget"},
	}

	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var out Entity
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if out.ID != in.ID || out.SyncStatus != in.SyncStatus {
		t.Errorf("Bookkeeping fields did not survive round trip: %+v", out)
	}
	if out.String("name") != "Widget" {
		t.Errorf("Domain fields did not survive round trip: %+v", out.Fields)
	}
}

func TestNewLocalID_Shape(t *testing.T) {
	id := NewLocalID()
	if !strings.HasPrefix(id, "local-") {
		t.Errorf("Expected local- prefix, got %q", id)
	}
	if id == NewLocalID() {
		t.Error("Expected successive local ids to differ")
	}
}

func TestDetectOrigin(t *testing.T) {
	tests := []struct {
		id             string
		offlineCreated bool
		wantLocal      bool
	}{
		{"local-1700000000000-abcd1234", false, true},
		{"1706182800000", false, true}, // legacy numeric temp id
		{"abc123", false, false},
		{"abc123", true, true}, // explicit flag wins
		{"", false, true},
	}

	for _, tt := range tests {
		got := DetectOrigin(tt.id, tt.offlineCreated)
		if got.IsLocal() != tt.wantLocal {
			t.Errorf("DetectOrigin(%q, %v).IsLocal() = %v, want %v",
				tt.id, tt.offlineCreated, got.IsLocal(), tt.wantLocal)
		}
		if got.ID() != tt.id {
			t.Errorf("DetectOrigin(%q).ID() = %q, want the input id", tt.id, got.ID())
		}
	}
}

func TestEntity_Clone(t *testing.T) {
	e := Entity{ID: "abc123", Fields: map[string]any{"sku": "X1"}}
	c := e.Clone()
	c.Fields["sku"] = "X2"

	if e.String("sku") != "X1" {
		t.Errorf("Expected clone mutation not to affect original, got %q", e.String("sku"))
	}
}

func TestNaturalKey(t *testing.T) {
	p := &Entity{ID: "local-1", Fields: map[string]any{"sku": "X1"}}
	if got := NaturalKey(Products, p); got != "X1" {
		t.Errorf("Expected product natural key X1, got %q", got)
	}

	s := &Entity{ID: "local-2", Fields: map[string]any{"code": "SCH-9"}}
	if got := NaturalKey(Schedules, s); got != "SCH-9" {
		t.Errorf("Expected schedule natural key SCH-9, got %q", got)
	}

	// Movements have no natural key; fall back to the synthetic id.
	m := &Entity{ID: "local-3", Fields: map[string]any{"quantity": 4}}
	if got := NaturalKey(Movements, m); got != "local-3" {
		t.Errorf("Expected movement key to fall back to id, got %q", got)
	}

	// Missing key field also falls back to the id.
	bare := &Entity{ID: "local-4", Fields: map[string]any{}}
	if got := NaturalKey(Products, bare); got != "local-4" {
		t.Errorf("Expected fallback to id for product without sku, got %q", got)
	}
}

func TestCollections_FixedOrder(t *testing.T) {
	got := Collections()
	want := []Collection{Products, Movements, Loans, Schedules, Users, Reservations}

	if len(got) != len(want) {
		t.Fatalf("Expected %d collections, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Expected collection %d to be %s, got %s", i, want[i], got[i])
		}
	}

	// Mutating the returned slice must not affect the registry.
	got[0] = "tampered"
	if Collections()[0] != Products {
		t.Error("Expected Collections() to return a copy")
	}
}

func TestValidCollection(t *testing.T) {
	if !ValidCollection(Products) {
		t.Error("Expected products to be valid")
	}
	if ValidCollection("invoices") {
		t.Error("Expected invoices to be invalid")
	}
}
