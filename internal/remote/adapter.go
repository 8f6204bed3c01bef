// Stocksync - Offline-First Inventory Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stocksync

// Package remote defines the adapter boundary to the authoritative remote
// store and provides two implementations: an HTTP/WebSocket client with
// circuit breaker and rate limiting, and an in-process adapter for tests
// and local-only mode.
//
// The engine's retry-suppression logic depends on the error taxonomy here:
// authorization failures must be distinguishable from transient ones, so
// every implementation wraps its failures in ErrUnauthorized or
// ErrUnavailable.
package remote

import (
	"context"
	"errors"

	"github.com/tomtom215/stocksync/internal/models"
)

// Sentinel errors classifying remote failures.
var (
	// ErrUnauthorized marks a permission failure. The reconciler treats
	// these as terminal for the item: retrying cannot succeed until an
	// operator intervenes, so the item is not retried.
	ErrUnauthorized = errors.New("remote store rejected the call: unauthorized")

	// ErrUnavailable marks a transient failure (network unreachable,
	// timeout, server error). The item stays queued for the next pass.
	ErrUnavailable = errors.New("remote store unavailable")
)

// IsAuthFailure reports whether err is a permission failure.
func IsAuthFailure(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsTransient reports whether err is worth retrying on a later pass.
func IsTransient(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// Adapter is the per-collection surface of the remote authoritative store.
//
// Subscribe is the channel redesign of the source's callback API: it
// returns a channel of full snapshots and a cancel function that must be
// retained and invoked on teardown. The channel is closed when the
// subscription ends for any reason.
type Adapter interface {
	// Create stores a new entity and returns the canonical id the remote
	// store allocated for it.
	Create(ctx context.Context, c models.Collection, e models.Entity) (string, error)

	// Update overwrites the remote entity with the given id.
	Update(ctx context.Context, c models.Collection, id string, e models.Entity) error

	// Delete removes the remote entity with the given id. Deleting an
	// absent entity is not an error.
	Delete(ctx context.Context, c models.Collection, id string) error

	// GetAll returns the remote store's full snapshot for the collection.
	GetAll(ctx context.Context, c models.Collection) ([]models.Entity, error)

	// Subscribe opens a push subscription delivering the authoritative
	// snapshot every time it changes, including changes produced by this
	// process's own reconciliation.
	Subscribe(ctx context.Context, c models.Collection) (<-chan []models.Entity, func(), error)
}
