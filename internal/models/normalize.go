// Stocksync - Offline-First Inventory Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stocksync

package models

import (
	"time"
)

// dateFields are the domain fields that carry timestamps on the wire.
// Remote snapshots mix representations (unix milliseconds from older
// clients, RFC3339 from newer ones); local consumers always see RFC3339.
var dateFields = map[string]struct{}{
	"createdAt": {},
	"updatedAt": {},
	"date":      {},
	"dueDate":   {},
	"startDate": {},
	"endDate":   {},
}

// numericDefaults fills optional numeric fields that older remote documents
// omit, keyed by collection. Consumers index these without presence checks.
var numericDefaults = map[Collection]map[string]float64{
	Products:  {"currentStock": 0, "minStock": 0},
	Movements: {"quantity": 0},
}

// NormalizeEntity converts a remote-representation entity into the shape
// local consumers expect: non-nil fields map, timestamps as RFC3339
// strings, and per-collection numeric defaults filled in. The entity is
// modified in place.
func NormalizeEntity(c Collection, e *Entity) {
	if e.Fields == nil {
		e.Fields = make(map[string]any)
	}

	for field := range dateFields {
		v, ok := e.Fields[field]
		if !ok {
			continue
		}
		if norm, ok := normalizeTimestamp(v); ok {
			e.Fields[field] = norm
		}
	}

	for field, def := range numericDefaults[c] {
		if _, ok := e.Fields[field]; !ok {
			e.Fields[field] = def
		}
	}
}

// NormalizeSnapshot normalizes every entity of a remote snapshot in place
// and returns the same slice. A nil snapshot normalizes to an empty one.
func NormalizeSnapshot(c Collection, entities []Entity) []Entity {
	if entities == nil {
		return []Entity{}
	}
	for i := range entities {
		NormalizeEntity(c, &entities[i])
	}
	return entities
}

// normalizeTimestamp converts a wire timestamp value to an RFC3339 string.
// Accepted inputs: unix milliseconds (float64, the JSON number decoding),
// RFC3339 strings (passed through), and time.Time values set in code.
func normalizeTimestamp(v any) (string, bool) {
	switch t := v.(type) {
	case float64:
		return time.UnixMilli(int64(t)).UTC().Format(time.RFC3339), true
	case int64:
		return time.UnixMilli(t).UTC().Format(time.RFC3339), true
	case string:
		if _, err := time.Parse(time.RFC3339, t); err == nil {
			return t, true
		}
		return "", false
	case time.Time:
		return t.UTC().Format(time.RFC3339), true
	}
	return "", false
}
