// Stocksync - Offline-First Inventory Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stocksync

package models

// Collection names a logical partition of entities. Collections are
// synchronized independently and never share a queue or transaction.
type Collection string

// The six synchronized collections. The declaration order here is the
// reconciliation order and must not change: movements reference products,
// so products drain first.
const (
	Products     Collection = "products"
	Movements    Collection = "movements"
	Loans        Collection = "loans"
	Schedules    Collection = "schedules"
	Users        Collection = "users"
	Reservations Collection = "reservations"
)

// collections is the fixed reconciliation order.
var collections = []Collection{Products, Movements, Loans, Schedules, Users, Reservations}

// Collections returns every synchronized collection in reconciliation order.
// The returned slice is a copy; callers may reorder it freely.
func Collections() []Collection {
	out := make([]Collection, len(collections))
	copy(out, collections)
	return out
}

// ValidCollection reports whether name is one of the synchronized
// collections.
func ValidCollection(name Collection) bool {
	for _, c := range collections {
		if c == name {
			return true
		}
	}
	return false
}

// naturalKeyFields maps collections to the domain field that identifies a
// logical record independently of its synthetic id. Rapid offline edits can
// enqueue the same logical record under several temp ids; reconciliation
// dedups on this key before transmission. Collections without a stable
// domain key fall back to the synthetic id (no cross-id dedup).
var naturalKeyFields = map[Collection]string{
	Products:  "sku",
	Schedules: "code",
	Users:     "email",
}

// NaturalKey returns the dedup key for an entity within its collection.
func NaturalKey(c Collection, e *Entity) string {
	if field, ok := naturalKeyFields[c]; ok {
		if v := e.String(field); v != "" {
			return v
		}
	}
	return e.ID
}
