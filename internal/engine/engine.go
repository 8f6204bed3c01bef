// Stocksync - Offline-First Inventory Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stocksync

// Package engine is the application-facing mutation surface. Every
// mutation commits to the Local Durable Store first and returns the
// optimistic local result; the remote store is written best-effort inline
// when online, with the Pending-Sync Queue as the fallback. A remote
// failure never propagates to the caller; it reaches the user through
// the notification sink only.
package engine

import (
	"context"
	"fmt"

	"github.com/tomtom215/stocksync/internal/connectivity"
	"github.com/tomtom215/stocksync/internal/events"
	"github.com/tomtom215/stocksync/internal/logging"
	"github.com/tomtom215/stocksync/internal/models"
	"github.com/tomtom215/stocksync/internal/notify"
	"github.com/tomtom215/stocksync/internal/queue"
	"github.com/tomtom215/stocksync/internal/remote"
	"github.com/tomtom215/stocksync/internal/store"
)

// Orchestrator owns the mutation path. All state lives in the injected
// collaborators; construct one per process at the composition root.
type Orchestrator struct {
	store   *store.Store
	queue   *queue.Queue
	adapter remote.Adapter
	signal  *connectivity.Signal
	sink    notify.Sink
	bus     *events.Bus
}

// New wires an Orchestrator. sink and bus may be nil.
func New(s *store.Store, q *queue.Queue, a remote.Adapter, sig *connectivity.Signal, sink notify.Sink, bus *events.Bus) *Orchestrator {
	if sink == nil {
		sink = notify.Noop{}
	}
	return &Orchestrator{
		store:   s,
		queue:   q,
		adapter: a,
		signal:  sig,
		sink:    sink,
		bus:     bus,
	}
}

// AddEntity creates an entity. The returned entity reflects the settled
// state: a canonical id if the inline remote create succeeded, the local
// temp id otherwise. The error is non-nil only for invalid input.
func (o *Orchestrator) AddEntity(ctx context.Context, c models.Collection, fields map[string]any) (models.Entity, error) {
	if !models.ValidCollection(c) {
		return models.Entity{}, fmt.Errorf("add entity: unknown collection %q", c)
	}

	e := models.Entity{
		ID:             models.NewLocalID(),
		OfflineCreated: true,
		SyncStatus:     models.StatusPending,
		Fields:         cloneFields(fields),
	}
	models.NormalizeEntity(c, &e)

	// Cross-entity side effects are computed before either persistence
	// step so the local and remote writes observe one joint state.
	var sideEffect *stockEffect
	if c == models.Movements {
		sideEffect = o.computeStockEffect(&e)
	}

	o.store.SaveCollection(c, append(o.store.GetCollection(c), e))
	if sideEffect != nil {
		o.applyStockEffect(ctx, sideEffect)
	}

	settled := o.syncOrQueue(ctx, c, e)
	o.publishSaved(c, settled.ID, "create")
	return settled, nil
}

// UpdateEntity merges fields into an existing entity. The error is
// non-nil only when the collection is unknown or the entity does not
// exist locally.
func (o *Orchestrator) UpdateEntity(ctx context.Context, c models.Collection, id string, fields map[string]any) (models.Entity, error) {
	if !models.ValidCollection(c) {
		return models.Entity{}, fmt.Errorf("update entity: unknown collection %q", c)
	}

	snapshot := o.store.GetCollection(c)
	idx := -1
	for i := range snapshot {
		if snapshot[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return models.Entity{}, fmt.Errorf("update entity: %s/%s not found", c, id)
	}

	e := snapshot[idx].Clone()
	if e.Fields == nil {
		e.Fields = make(map[string]any, len(fields))
	}
	for k, v := range fields {
		e.Fields[k] = v
	}
	e.SyncStatus = models.StatusPending
	models.NormalizeEntity(c, &e)

	snapshot[idx] = e
	o.store.SaveCollection(c, snapshot)

	settled := o.syncOrQueue(ctx, c, e)
	o.publishSaved(c, settled.ID, "update")
	return settled, nil
}

// DeleteEntity removes an entity locally and propagates the delete. An
// entity the remote store never saw is dropped outright, including any
// pending queue entry; nothing is transmitted for it.
func (o *Orchestrator) DeleteEntity(ctx context.Context, c models.Collection, id string) error {
	if !models.ValidCollection(c) {
		return fmt.Errorf("delete entity: unknown collection %q", c)
	}

	snapshot := o.store.GetCollection(c)
	var deleted *models.Entity
	kept := make([]models.Entity, 0, len(snapshot))
	for i := range snapshot {
		if snapshot[i].ID == id {
			// Copy before filtering: kept shares nothing with snapshot, so
			// the matched entity survives the rewrite below.
			d := snapshot[i].Clone()
			deleted = &d
			continue
		}
		kept = append(kept, snapshot[i])
	}
	if deleted == nil {
		return fmt.Errorf("delete entity: %s/%s not found", c, id)
	}
	o.store.SaveCollection(c, kept)

	// Whatever was queued for this id is superseded by the delete.
	if err := o.queue.MarkSynced(c, id); err != nil {
		logging.Error().Err(err).Str("collection", string(c)).Str("id", id).
			Msg("queue entry removal on delete failed")
	}

	if deleted.Origin().IsLocal() {
		// Never created remotely; there is nothing to delete there.
		o.publishSaved(c, id, "delete")
		return nil
	}

	tombstone := models.Entity{ID: id, Deleted: true, SyncStatus: models.StatusPending}
	o.syncOrQueue(ctx, c, tombstone)
	o.publishSaved(c, id, "delete")
	return nil
}

// GetCollection exposes the local snapshot to the application, excluding
// tombstones that have not drained yet.
func (o *Orchestrator) GetCollection(c models.Collection) []models.Entity {
	snapshot := o.store.GetCollection(c)
	visible := snapshot[:0]
	for _, e := range snapshot {
		if !e.Deleted {
			visible = append(visible, e)
		}
	}
	return visible
}

// syncOrQueue performs the best-effort inline remote write for an entity
// already persisted locally, falling back to the queue exactly as the
// offline path does. It returns the settled entity.
func (o *Orchestrator) syncOrQueue(ctx context.Context, c models.Collection, e models.Entity) models.Entity {
	if o.signal != nil && !o.signal.Online() {
		o.enqueue(c, e)
		o.sink.Info("Saved offline, will sync later")
		return e
	}

	var err error
	switch {
	case e.Deleted:
		err = o.adapter.Delete(ctx, c, e.ID)
		if err == nil {
			o.sink.Success("Deleted from cloud")
			return e
		}

	case e.Origin().IsLocal():
		var canonicalID string
		canonicalID, err = o.adapter.Create(ctx, c, e)
		if err == nil {
			settled := o.rekey(c, e, canonicalID)
			// Drop any earlier offline enqueue under the temp id; leaving
			// it behind would replay the create at the next reconciliation.
			o.dequeue(c, e.ID)
			o.sink.Success("Saved to cloud")
			return settled
		}

	default:
		err = o.adapter.Update(ctx, c, e.ID, e)
		if err == nil {
			e.SyncStatus = models.StatusSynced
			o.updateStored(c, e)
			o.dequeue(c, e.ID)
			o.sink.Success("Saved to cloud")
			return e
		}
	}

	if remote.IsAuthFailure(err) {
		// Terminal for this item: retrying cannot succeed, so it is
		// marked synced instead of queued (bounded retry cost over
		// eventual consistency).
		logging.Warn().Str("collection", string(c)).Str("id", e.ID).Err(err).
			Msg("permission denied; mutation stays local only")
		e.SyncStatus = models.StatusSynced
		if !e.Deleted {
			o.updateStored(c, e)
		}
		o.dequeue(c, e.ID)
		o.sink.Error("Permission denied saving to cloud; change kept locally")
		return e
	}

	logging.Debug().Str("collection", string(c)).Str("id", e.ID).Err(err).
		Msg("inline remote write failed; queued for reconciliation")
	o.enqueue(c, e)
	o.sink.Info("Saved offline, will sync later")
	return e
}

// rekey replaces the temp id with the canonical remote id in the stored
// snapshot and returns the settled entity.
func (o *Orchestrator) rekey(c models.Collection, e models.Entity, canonicalID string) models.Entity {
	settled := e.Clone()
	settled.ID = canonicalID
	settled.OfflineCreated = false
	settled.SyncStatus = models.StatusSynced

	snapshot := o.store.GetCollection(c)
	for i := range snapshot {
		if snapshot[i].ID == e.ID {
			snapshot[i] = settled
			break
		}
	}
	o.store.SaveCollection(c, snapshot)
	return settled
}

func (o *Orchestrator) updateStored(c models.Collection, e models.Entity) {
	snapshot := o.store.GetCollection(c)
	for i := range snapshot {
		if snapshot[i].ID == e.ID {
			snapshot[i] = e
			break
		}
	}
	o.store.SaveCollection(c, snapshot)
}

func (o *Orchestrator) enqueue(c models.Collection, e models.Entity) {
	if err := o.queue.Add(c, e); err != nil {
		// The entity is still in the durable store; the backfill scan
		// will recover it on the next reconciliation pass.
		logging.Error().Err(err).Str("collection", string(c)).Str("id", e.ID).
			Msg("enqueue failed; relying on backfill scan")
	}
}

// dequeue drops the queue entry for an id whose mutation settled inline.
// Removing an absent entry is a no-op, so this is safe to call even when
// nothing was ever queued for the id.
func (o *Orchestrator) dequeue(c models.Collection, id string) {
	if err := o.queue.MarkSynced(c, id); err != nil {
		logging.Error().Err(err).Str("collection", string(c)).Str("id", id).
			Msg("queue entry removal after inline sync failed")
	}
}

func (o *Orchestrator) publishSaved(c models.Collection, id, operation string) {
	if o.bus == nil {
		return
	}
	err := o.bus.Publish(events.TopicEntitySaved, events.EntitySaved{
		Collection: string(c),
		EntityID:   id,
		Operation:  operation,
	})
	if err != nil {
		logging.Debug().Err(err).Str("collection", string(c)).Msg("entity.saved publish failed")
	}
}

func cloneFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}
