// Stocksync - Offline-First Inventory Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stocksync

// Package bridge subscribes to the remote store's push channels and
// mirrors every received snapshot into the Local Durable Store. A
// snapshot replaces the whole collection: entities absent from it are
// gone locally too.
//
// A pushed snapshot can overwrite an optimistic local record that was
// written moments earlier and has not reached the remote store yet. That
// race is accepted: the queue backfill scan re-queues any stranded local
// entity on the next reconciliation pass, and the following snapshot
// restores it locally.
package bridge

import (
	"context"
	"fmt"
	"sync"

	"github.com/tomtom215/stocksync/internal/events"
	"github.com/tomtom215/stocksync/internal/logging"
	"github.com/tomtom215/stocksync/internal/metrics"
	"github.com/tomtom215/stocksync/internal/models"
	"github.com/tomtom215/stocksync/internal/remote"
	"github.com/tomtom215/stocksync/internal/store"
)

// Bridge mirrors remote push snapshots into the local store.
type Bridge struct {
	store   *store.Store
	adapter remote.Adapter
	bus     *events.Bus
}

// New wires a Bridge. bus may be nil.
func New(s *store.Store, a remote.Adapter, bus *events.Bus) *Bridge {
	return &Bridge{store: s, adapter: a, bus: bus}
}

// Serve opens one subscription per collection and consumes snapshots
// until the context ends. A collection whose subscription cannot be
// opened runs in local-only mode: the failure is logged, everything else
// keeps working, and its local snapshot simply stops receiving live
// updates. Serve satisfies the supervision tree's service contract.
func (b *Bridge) Serve(ctx context.Context) error {
	var wg sync.WaitGroup
	var cancels []func()

	subscribed := 0
	for _, c := range models.Collections() {
		snapshots, cancel, err := b.adapter.Subscribe(ctx, c)
		if err != nil {
			metrics.SnapshotErrors.WithLabelValues(string(c)).Inc()
			logging.Warn().Err(err).Str("collection", string(c)).
				Msg("live update subscription failed; collection runs local-only")
			// Announce the empty result downstream without touching the
			// stored snapshot; the local data stays authoritative.
			b.publishApplied(c, 0)
			continue
		}
		cancels = append(cancels, cancel)
		subscribed++

		wg.Add(1)
		go func(c models.Collection, snapshots <-chan []models.Entity) {
			defer wg.Done()
			b.consume(c, snapshots)
		}(c, snapshots)
	}

	if subscribed == 0 {
		logging.Warn().Msg("no live update subscriptions active; running fully local-only")
	} else {
		logging.Info().Int("collections", subscribed).Msg("live update bridge started")
	}

	<-ctx.Done()

	for _, cancel := range cancels {
		cancel()
	}
	wg.Wait()
	logging.Info().Msg("live update bridge stopped")
	return ctx.Err()
}

// consume applies snapshots for one collection until its channel closes.
// A panic while applying one snapshot is contained; the subscription
// keeps consuming.
func (b *Bridge) consume(c models.Collection, snapshots <-chan []models.Entity) {
	for snapshot := range snapshots {
		b.apply(c, snapshot)
	}
	logging.Debug().Str("collection", string(c)).Msg("live update subscription ended")
}

func (b *Bridge) apply(c models.Collection, snapshot []models.Entity) {
	defer func() {
		if rec := recover(); rec != nil {
			metrics.SnapshotErrors.WithLabelValues(string(c)).Inc()
			logging.Error().Str("collection", string(c)).Interface("panic", rec).
				Msg("snapshot application panicked; snapshot dropped")
		}
	}()

	snapshot = models.NormalizeSnapshot(c, snapshot)
	b.store.SaveCollection(c, snapshot)
	metrics.SnapshotsApplied.WithLabelValues(string(c)).Inc()

	logging.Debug().Str("collection", string(c)).Int("entities", len(snapshot)).
		Msg("snapshot applied")

	b.publishApplied(c, len(snapshot))
}

func (b *Bridge) publishApplied(c models.Collection, entities int) {
	if b.bus == nil {
		return
	}
	err := b.bus.Publish(events.TopicSnapshotApplied, events.SnapshotApplied{
		Collection: string(c),
		Entities:   entities,
	})
	if err != nil {
		logging.Debug().Err(err).Str("collection", string(c)).
			Msg("snapshot.applied publish failed")
	}
}

func (b *Bridge) String() string { return fmt.Sprintf("bridge[%d collections]", len(models.Collections())) }
