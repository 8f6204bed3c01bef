// Stocksync - Offline-First Inventory Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stocksync

// Package models defines the entity shapes shared by the sync engine.
//
// An Entity is one domain record (product, movement, loan, schedule, user,
// reservation) plus the bookkeeping fields the engine needs to reconcile it
// with the remote store. Domain fields are carried as an open map because the
// engine synchronizes all six collections through one code path; the UI layer
// owns the per-collection schemas.
package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// SyncStatus tracks where an entity is in its journey to the remote store.
type SyncStatus string

const (
	// StatusPending means the entity is queued for transmission.
	StatusPending SyncStatus = "pending"

	// StatusSyncing means a reconciliation pass is currently transmitting it.
	StatusSyncing SyncStatus = "syncing"

	// StatusSynced means the remote store reflects this entity.
	StatusSynced SyncStatus = "synced"

	// StatusFailed means the last transmission attempt failed for a reason
	// that will not be retried.
	StatusFailed SyncStatus = "failed"
)

// Reserved wire keys. Domain payloads must not use these.
const (
	keyID             = "id"
	keyOfflineCreated = "_offlineCreated"
	keySyncStatus     = "_syncStatus"
	keyDeleted        = "_deleted"
)

// localIDPrefix marks ids allocated locally before the remote store has
// assigned a canonical id.
const localIDPrefix = "local-"

// Entity is one domain record plus sync bookkeeping.
//
// The zero SyncStatus (empty string) means the entity has never passed
// through the pending queue; it is treated like StatusPending by the
// backfill scan when the id is local.
type Entity struct {
	// ID is the record identifier. Locally created entities carry a
	// NewLocalID() value until reconciliation re-keys them to the canonical
	// remote id.
	ID string

	// OfflineCreated is true while the record has never been successfully
	// created remotely. It routes reconciliation to a remote create rather
	// than an update.
	OfflineCreated bool

	// SyncStatus drives whether the record is re-queued, skipped, or retried.
	SyncStatus SyncStatus

	// Deleted marks a tombstone: a pending remote delete held in the queue.
	// Tombstones never appear in store snapshots.
	Deleted bool

	// Fields holds the domain payload, keyed by wire name.
	Fields map[string]any
}

// NewLocalID allocates an id for an entity created before the remote store
// has seen it. The timestamp keeps ids roughly ordered and human-legible;
// the uuid fragment makes collisions under concurrent mutation a non-issue.
func NewLocalID() string {
	return fmt.Sprintf("%s%d-%s", localIDPrefix, time.Now().UnixMilli(), uuid.NewString()[:8])
}

// Origin returns the tagged origin of this entity, consulting the explicit
// OfflineCreated flag before falling back to id-shape heuristics.
func (e *Entity) Origin() Origin {
	return DetectOrigin(e.ID, e.OfflineCreated)
}

// Clone returns a deep-enough copy: the Fields map is copied one level deep,
// which covers every mutation the engine performs.
func (e *Entity) Clone() Entity {
	c := *e
	if e.Fields != nil {
		c.Fields = make(map[string]any, len(e.Fields))
		for k, v := range e.Fields {
			c.Fields[k] = v
		}
	}
	return c
}

// String returns a string domain field, or "" when absent or non-string.
func (e *Entity) String(field string) string {
	if s, ok := e.Fields[field].(string); ok {
		return s
	}
	return ""
}

// Number returns a numeric domain field as float64. JSON decoding produces
// float64 for all numbers, but int is accepted for values set in code.
func (e *Entity) Number(field string) float64 {
	switch v := e.Fields[field].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}

// MarshalJSON flattens the entity: domain fields at the top level, with the
// bookkeeping fields under their reserved wire names. Zero-valued
// bookkeeping fields are omitted so remote payloads stay clean.
func (e Entity) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(e.Fields)+4)
	for k, v := range e.Fields {
		if isReservedKey(k) {
			continue
		}
		out[k] = v
	}
	out[keyID] = e.ID
	if e.OfflineCreated {
		out[keyOfflineCreated] = true
	}
	if e.SyncStatus != "" {
		out[keySyncStatus] = string(e.SyncStatus)
	}
	if e.Deleted {
		out[keyDeleted] = true
	}
	return json.Marshal(out)
}

// UnmarshalJSON is the inverse of MarshalJSON: reserved keys are lifted into
// the bookkeeping fields, everything else lands in Fields.
func (e *Entity) UnmarshalJSON(data []byte) error {
	raw := make(map[string]any)
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if id, ok := raw[keyID].(string); ok {
		e.ID = id
	}
	if oc, ok := raw[keyOfflineCreated].(bool); ok {
		e.OfflineCreated = oc
	}
	if st, ok := raw[keySyncStatus].(string); ok {
		e.SyncStatus = SyncStatus(st)
	}
	if del, ok := raw[keyDeleted].(bool); ok {
		e.Deleted = del
	}

	e.Fields = make(map[string]any, len(raw))
	for k, v := range raw {
		if isReservedKey(k) {
			continue
		}
		e.Fields[k] = v
	}
	return nil
}

func isReservedKey(k string) bool {
	switch k {
	case keyID, keyOfflineCreated, keySyncStatus, keyDeleted:
		return true
	}
	return false
}

// looksLocal reports whether an id matches the legacy "not yet remote"
// patterns: the reserved local prefix, or an id that parses fully as a
// number (the shape of ids minted by the pre-rewrite client).
func looksLocal(id string) bool {
	if strings.HasPrefix(id, localIDPrefix) {
		return true
	}
	if id == "" {
		return true
	}
	if _, err := strconv.ParseInt(id, 10, 64); err == nil {
		return true
	}
	return false
}
