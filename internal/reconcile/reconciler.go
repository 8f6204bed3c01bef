// Stocksync - Offline-First Inventory Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stocksync

// Package reconcile drains the Pending-Sync Queue against the remote
// store. One pass walks every collection in the fixed reconciliation
// order, transmits each pending entry, and rewrites local state to match
// the remote outcome. Collections are isolated: a failure (or panic) in
// one never stops the others.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/tomtom215/stocksync/internal/connectivity"
	"github.com/tomtom215/stocksync/internal/events"
	"github.com/tomtom215/stocksync/internal/logging"
	"github.com/tomtom215/stocksync/internal/metrics"
	"github.com/tomtom215/stocksync/internal/models"
	"github.com/tomtom215/stocksync/internal/notify"
	"github.com/tomtom215/stocksync/internal/queue"
	"github.com/tomtom215/stocksync/internal/remote"
	"github.com/tomtom215/stocksync/internal/store"
)

// Sentinel errors returned by Run.
var (
	// ErrSyncInProgress means another pass is already draining the queue.
	// The caller's work is not lost; the running pass will pick it up, or
	// the next one will.
	ErrSyncInProgress = errors.New("sync already in progress")

	// ErrOffline means the connectivity signal reports the remote store
	// unreachable; no transmission was attempted.
	ErrOffline = errors.New("offline: sync not attempted")
)

// Result aggregates the outcome of one reconciliation pass.
type Result struct {
	// PerCollection counts successfully transmitted entries by collection.
	PerCollection map[models.Collection]int

	// Errors holds one message per failed entry or collection-level fault.
	Errors []string

	// TotalSynced is the sum over PerCollection.
	TotalSynced int
}

// Success reports whether the pass made progress or at least did no harm:
// a pass fails only when it produced errors and synced nothing.
func (r *Result) Success() bool {
	return len(r.Errors) == 0 || r.TotalSynced > 0
}

// Reconciler drains the pending queue. Create a single instance per
// process; passes are single-flight.
type Reconciler struct {
	store   *store.Store
	queue   *queue.Queue
	adapter remote.Adapter
	signal  *connectivity.Signal
	sink    notify.Sink
	bus     *events.Bus

	inProgress atomic.Bool
}

// New wires a Reconciler. sink and bus may be nil for callers that do not
// surface status.
func New(s *store.Store, q *queue.Queue, a remote.Adapter, sig *connectivity.Signal, sink notify.Sink, bus *events.Bus) *Reconciler {
	if sink == nil {
		sink = notify.Noop{}
	}
	return &Reconciler{
		store:   s,
		queue:   q,
		adapter: a,
		signal:  sig,
		sink:    sink,
		bus:     bus,
	}
}

// InProgress reports whether a pass is currently running.
func (r *Reconciler) InProgress() bool {
	return r.inProgress.Load()
}

// Run executes one reconciliation pass. It is single-flight: a second
// caller gets ErrSyncInProgress immediately. When the connectivity signal
// reports offline, it returns ErrOffline without touching the queue.
func (r *Reconciler) Run(ctx context.Context) (*Result, error) {
	if !r.inProgress.CompareAndSwap(false, true) {
		metrics.ReconcileRejected.WithLabelValues("in_progress").Inc()
		return nil, ErrSyncInProgress
	}
	defer r.inProgress.Store(false)

	if r.signal != nil && !r.signal.Online() {
		metrics.ReconcileRejected.WithLabelValues("offline").Inc()
		return nil, ErrOffline
	}

	start := time.Now()
	result := &Result{PerCollection: make(map[models.Collection]int)}

	// Backfill before draining so entities stranded by snapshot overwrites
	// get a queue entry in this very pass.
	pending := r.queue.PendingCount()
	if pending == 0 {
		metrics.ReconcileDuration.Observe(time.Since(start).Seconds())
		return result, nil
	}

	logging.Info().Int("pending", pending).Msg("reconciliation pass started")
	r.sink.Info(fmt.Sprintf("Syncing %d pending items", pending))

	for _, c := range models.Collections() {
		r.runCollection(ctx, c, result)
	}

	metrics.ReconcileDuration.Observe(time.Since(start).Seconds())
	r.finish(result)
	return result, nil
}

// runCollection drains one collection's queue. A panic here is recorded
// as a collection-level fault and must not escape to the other
// collections.
func (r *Reconciler) runCollection(ctx context.Context, c models.Collection, result *Result) {
	defer func() {
		if rec := recover(); rec != nil {
			msg := fmt.Sprintf("%s: reconciliation panicked: %v", c, rec)
			result.Errors = append(result.Errors, msg)
			metrics.ReconcileErrors.WithLabelValues(string(c), "panic").Inc()
			logging.Error().Str("collection", string(c)).Interface("panic", rec).
				Msg("reconciliation panicked; collection skipped for this pass")
		}
	}()

	entries := r.queue.Get(c)
	if len(entries) == 0 {
		return
	}

	for _, e := range r.dedup(c, entries) {
		if ctx.Err() != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: pass canceled", c))
			return
		}
		r.transmit(ctx, c, e, result)
	}
}

// dedup collapses queue entries that describe the same logical record
// under different temp ids (rapid offline edits). The newest entry wins;
// the losers leave the queue without transmission so the remote store
// never sees duplicate creates. Only locally created, non-deleted entries
// participate: remote-origin ids are already canonical.
func (r *Reconciler) dedup(c models.Collection, entries []models.Entity) []models.Entity {
	lastByKey := make(map[string]string) // natural key -> winning entity id
	for _, e := range entries {
		if !e.Origin().IsLocal() || e.Deleted {
			continue
		}
		// Queue order is id order, and local ids embed their creation
		// timestamp, so the last occurrence is the newest edit.
		lastByKey[models.NaturalKey(c, &e)] = e.ID
	}

	kept := entries[:0]
	for _, e := range entries {
		if e.Origin().IsLocal() && !e.Deleted {
			if winner := lastByKey[models.NaturalKey(c, &e)]; winner != e.ID {
				if err := r.queue.MarkSynced(c, e.ID); err != nil {
					logging.Error().Err(err).Str("collection", string(c)).Str("id", e.ID).
						Msg("dedup removal failed")
				}
				r.removeFromStore(c, e.ID)
				logging.Info().Str("collection", string(c)).Str("id", e.ID).
					Str("winner", winner).Msg("duplicate offline create collapsed")
				continue
			}
		}
		kept = append(kept, e)
	}
	return kept
}

// transmit sends one queue entry to the remote store and settles local
// state according to the outcome.
func (r *Reconciler) transmit(ctx context.Context, c models.Collection, e models.Entity, result *Result) {
	var err error
	var operation string

	switch {
	case e.Deleted:
		operation = "delete"
		if e.Origin().IsLocal() {
			// Created and deleted without ever reaching the remote store;
			// nothing to transmit.
			r.settleDelete(c, e.ID)
			result.PerCollection[c]++
			result.TotalSynced++
			metrics.ItemsSynced.WithLabelValues(string(c), operation).Inc()
			return
		}
		err = r.adapter.Delete(ctx, c, e.ID)
		if err == nil {
			r.settleDelete(c, e.ID)
		}

	case e.Origin().IsLocal():
		operation = "create"
		var canonicalID string
		canonicalID, err = r.adapter.Create(ctx, c, e)
		if err == nil {
			r.settleCreate(c, e, canonicalID)
		}

	default:
		operation = "update"
		err = r.adapter.Update(ctx, c, e.ID, e)
		if err == nil {
			r.settleUpdate(c, e)
		}
	}

	if err == nil {
		result.PerCollection[c]++
		result.TotalSynced++
		metrics.ItemsSynced.WithLabelValues(string(c), operation).Inc()
		return
	}

	result.Errors = append(result.Errors, fmt.Sprintf("%s/%s: %s: %v", c, e.ID, operation, err))

	if remote.IsAuthFailure(err) {
		// Retrying cannot succeed until an operator fixes permissions, so
		// the entry leaves the queue deliberately. The stored copy is
		// marked synced too; a pending status left behind would make the
		// backfill scan re-queue the entity on the very next pass. The
		// error is still reported; the local record keeps its data.
		metrics.ReconcileErrors.WithLabelValues(string(c), "auth").Inc()
		logging.Warn().Str("collection", string(c)).Str("id", e.ID).Err(err).
			Msg("permission denied; entry removed from queue to stop futile retries")
		r.markStoredSynced(c, e.ID)
		if mErr := r.queue.MarkSynced(c, e.ID); mErr != nil {
			logging.Error().Err(mErr).Str("collection", string(c)).Str("id", e.ID).
				Msg("queue removal after auth failure failed")
		}
		return
	}

	// Transient: the entry stays queued for the next pass.
	metrics.ReconcileErrors.WithLabelValues(string(c), "transient").Inc()
	logging.Warn().Str("collection", string(c)).Str("id", e.ID).Err(err).
		Msg("transmission failed; entry stays queued")
}

// settleCreate rewrites local state after a successful remote create: the
// stored entity takes the canonical id and drops its offline bookkeeping,
// and the temp-id queue entry is removed.
func (r *Reconciler) settleCreate(c models.Collection, e models.Entity, canonicalID string) {
	snapshot := r.store.GetCollection(c)
	for i := range snapshot {
		if snapshot[i].ID == e.ID {
			snapshot[i].ID = canonicalID
			snapshot[i].OfflineCreated = false
			snapshot[i].SyncStatus = models.StatusSynced
			break
		}
	}
	r.store.SaveCollection(c, snapshot)

	if err := r.queue.MarkSynced(c, e.ID); err != nil {
		logging.Error().Err(err).Str("collection", string(c)).Str("id", e.ID).
			Msg("queue removal after create failed")
	}
	logging.Debug().Str("collection", string(c)).Str("tempId", e.ID).
		Str("canonicalId", canonicalID).Msg("offline create reconciled")
}

// settleUpdate marks the stored entity synced and removes its queue entry.
func (r *Reconciler) settleUpdate(c models.Collection, e models.Entity) {
	snapshot := r.store.GetCollection(c)
	for i := range snapshot {
		if snapshot[i].ID == e.ID {
			snapshot[i].SyncStatus = models.StatusSynced
			break
		}
	}
	r.store.SaveCollection(c, snapshot)

	if err := r.queue.MarkSynced(c, e.ID); err != nil {
		logging.Error().Err(err).Str("collection", string(c)).Str("id", e.ID).
			Msg("queue removal after update failed")
	}
}

// settleDelete removes the tombstone from the stored snapshot and the
// queue entry.
func (r *Reconciler) settleDelete(c models.Collection, id string) {
	r.removeFromStore(c, id)
	if err := r.queue.MarkSynced(c, id); err != nil {
		logging.Error().Err(err).Str("collection", string(c)).Str("id", id).
			Msg("queue removal after delete failed")
	}
}

// markStoredSynced flips the stored entity's status to synced without
// touching its data. Tombstones never sit in the snapshot, so a missing id
// means there is nothing to flip.
func (r *Reconciler) markStoredSynced(c models.Collection, id string) {
	snapshot := r.store.GetCollection(c)
	for i := range snapshot {
		if snapshot[i].ID == id {
			if snapshot[i].SyncStatus == models.StatusSynced {
				return
			}
			snapshot[i].SyncStatus = models.StatusSynced
			r.store.SaveCollection(c, snapshot)
			return
		}
	}
}

func (r *Reconciler) removeFromStore(c models.Collection, id string) {
	snapshot := r.store.GetCollection(c)
	kept := snapshot[:0]
	for _, e := range snapshot {
		if e.ID != id {
			kept = append(kept, e)
		}
	}
	if len(kept) != len(snapshot) {
		r.store.SaveCollection(c, kept)
	}
}

// finish reports the pass outcome through the sink and the event bus.
func (r *Reconciler) finish(result *Result) {
	failed := len(result.Errors)

	switch {
	case failed == 0 && result.TotalSynced > 0:
		r.sink.Success(fmt.Sprintf("Synced %d items", result.TotalSynced))
	case result.TotalSynced > 0:
		r.sink.Error(fmt.Sprintf("Synced %d items, %d failed", result.TotalSynced, failed))
	case failed > 0:
		r.sink.Error(fmt.Sprintf("Sync failed: %d errors", failed))
	}

	logging.Info().Int("synced", result.TotalSynced).Int("failed", failed).
		Msg("reconciliation pass finished")

	if r.bus != nil {
		err := r.bus.Publish(events.TopicSyncCompleted, events.SyncCompleted{
			Synced: result.TotalSynced,
			Failed: failed,
			Errors: result.Errors,
		})
		if err != nil {
			logging.Debug().Err(err).Msg("sync.completed publish failed")
		}
	}
}
