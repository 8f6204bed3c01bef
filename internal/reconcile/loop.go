// Stocksync - Offline-First Inventory Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stocksync

package reconcile

import (
	"context"
	"errors"
	"time"

	"github.com/tomtom215/stocksync/internal/logging"
)

// DefaultInterval is how often the loop drains the queue when nothing
// else triggers a pass.
const DefaultInterval = 30 * time.Second

// Loop runs reconciliation passes periodically and immediately after the
// connectivity signal flips back online, so queued offline work drains as
// soon as the remote store is reachable again.
type Loop struct {
	reconciler *Reconciler
	interval   time.Duration
}

// NewLoop creates a Loop around the reconciler. A non-positive interval
// falls back to DefaultInterval.
func NewLoop(r *Reconciler, interval time.Duration) *Loop {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Loop{reconciler: r, interval: interval}
}

// Serve runs until the context ends. It satisfies the supervision tree's
// service contract.
func (l *Loop) Serve(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	var transitions <-chan bool
	if l.reconciler.signal != nil {
		transitions = l.reconciler.signal.Subscribe()
	}

	logging.Info().Dur("interval", l.interval).Msg("reconciliation loop started")

	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("reconciliation loop stopped")
			return ctx.Err()

		case <-ticker.C:
			l.runOnce(ctx)

		case online := <-transitions:
			if online {
				logging.Info().Msg("connectivity restored; draining queue")
				l.runOnce(ctx)
			}
		}
	}
}

func (l *Loop) runOnce(ctx context.Context) {
	_, err := l.reconciler.Run(ctx)
	switch {
	case err == nil:
	case errors.Is(err, ErrSyncInProgress), errors.Is(err, ErrOffline):
		logging.Debug().Err(err).Msg("reconciliation pass skipped")
	default:
		logging.Error().Err(err).Msg("reconciliation pass failed")
	}
}

func (l *Loop) String() string { return "reconcile-loop" }
