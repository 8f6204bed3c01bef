// Stocksync - Offline-First Inventory Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stocksync

// Package queue implements the Pending-Sync Queue: per-collection entries
// awaiting transmission to the remote store, persisted alongside the
// snapshot cache so queue state survives restarts.
package queue

import (
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/stocksync/internal/logging"
	"github.com/tomtom215/stocksync/internal/metrics"
	"github.com/tomtom215/stocksync/internal/models"
	"github.com/tomtom215/stocksync/internal/store"
)

// pendingKeyPrefix namespaces queue entries in the shared BadgerDB. One key
// per (collection, entity id) gives the at-most-one-entry-per-id invariant
// structurally: a later enqueue for the same id overwrites the earlier one.
const pendingKeyPrefix = "pending:"

// Queue is the Pending-Sync Queue over the shared durable database.
type Queue struct {
	db    *badger.DB
	store *store.Store
}

// New creates a Queue sharing the store's database. The store reference is
// needed by the backfill scan, which cross-checks queue contents against
// stored snapshots.
func New(s *store.Store) *Queue {
	return &Queue{db: s.DB(), store: s}
}

// Add inserts or replaces the queue entry for the entity's id within the
// collection, stamping it pending. Later enqueues for the same id overwrite
// earlier ones rather than duplicating.
func (q *Queue) Add(c models.Collection, e models.Entity) error {
	if !models.ValidCollection(c) {
		return fmt.Errorf("add to sync queue: unknown collection %q", c)
	}
	if e.ID == "" {
		return fmt.Errorf("add to sync queue: entity has no id")
	}

	e.SyncStatus = models.StatusPending
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal queue entry: %w", err)
	}

	err = q.db.Update(func(txn *badger.Txn) error {
		return txn.Set(pendingKey(c, e.ID), data)
	})
	if err != nil {
		return fmt.Errorf("persist queue entry: %w", err)
	}

	metrics.QueueDepth.WithLabelValues(string(c)).Set(float64(q.Len(c)))
	logging.Debug().Str("collection", string(c)).Str("id", e.ID).Msg("queued for sync")
	return nil
}

// Get returns the queue entries for one collection only, in key order.
// Entries never leak across collections.
func (q *Queue) Get(c models.Collection) []models.Entity {
	entries := []models.Entity{}

	err := q.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(pendingKeyPrefix + string(c) + ":")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var e models.Entity
				if err := json.Unmarshal(val, &e); err != nil {
					return err
				}
				entries = append(entries, e)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		logging.Error().Err(err).Str("collection", string(c)).Msg("queue read failed")
		return []models.Entity{}
	}
	return entries
}

// MarkSynced removes the entry for (collection, id). Removing an absent
// entry is a no-op, which keeps reconciliation retries idempotent.
func (q *Queue) MarkSynced(c models.Collection, id string) error {
	err := q.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(pendingKey(c, id))
	})
	if err != nil {
		return fmt.Errorf("remove queue entry: %w", err)
	}
	metrics.QueueDepth.WithLabelValues(string(c)).Set(float64(q.Len(c)))
	return nil
}

// Clear empties one collection's queue after a successful reconciliation
// batch.
func (q *Queue) Clear(c models.Collection) error {
	err := q.db.Update(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{PrefetchValues: false})
		defer it.Close()

		prefix := []byte(pendingKeyPrefix + string(c) + ":")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := txn.Delete(it.Item().KeyCopy(nil)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("clear queue for %s: %w", c, err)
	}
	metrics.QueueDepth.WithLabelValues(string(c)).Set(0)
	return nil
}

// Len returns the entry count for one collection without running the
// backfill scan.
func (q *Queue) Len(c models.Collection) int {
	count := 0
	_ = q.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{PrefetchValues: false})
		defer it.Close()

		prefix := []byte(pendingKeyPrefix + string(c) + ":")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	return count
}

// PendingCount recomputes the total number of pending entries across all
// collections. Before counting it runs the self-healing backfill scan:
// any stored entity that is locally created or carries a non-synced status
// but has no queue entry is re-queued.
//
// The scan exists because a mutation can land in the Local Durable Store
// without passing through the orchestrator's explicit enqueue, most
// commonly when a stale remote snapshot overwrites an optimistic local
// record. Without it, such entities would stay unsynced forever.
func (q *Queue) PendingCount() int {
	total := 0
	for _, c := range models.Collections() {
		q.backfill(c)
		n := q.Len(c)
		metrics.QueueDepth.WithLabelValues(string(c)).Set(float64(n))
		total += n
	}
	return total
}

// backfill re-queues stored entities of one collection that look unsynced
// but are missing from the queue.
func (q *Queue) backfill(c models.Collection) {
	queued := make(map[string]struct{})
	for _, e := range q.Get(c) {
		queued[e.ID] = struct{}{}
	}

	for _, e := range q.store.GetCollection(c) {
		if !needsSync(&e) {
			continue
		}
		if _, ok := queued[e.ID]; ok {
			continue
		}
		if err := q.Add(c, e); err != nil {
			logging.Error().Err(err).Str("collection", string(c)).Str("id", e.ID).
				Msg("backfill enqueue failed")
			continue
		}
		metrics.QueueBackfilled.WithLabelValues(string(c)).Inc()
		logging.Info().Str("collection", string(c)).Str("id", e.ID).
			Msg("backfilled unsynced entity into queue")
	}
}

// needsSync reports whether a stored entity should have a queue entry:
// its id is still local, or it carries an explicit non-synced status.
// Entities that arrived via remote snapshots have remote ids and no status
// and are skipped.
func needsSync(e *models.Entity) bool {
	if e.Origin().IsLocal() {
		return true
	}
	return e.SyncStatus != "" && e.SyncStatus != models.StatusSynced
}

func pendingKey(c models.Collection, id string) []byte {
	return []byte(pendingKeyPrefix + string(c) + ":" + id)
}
