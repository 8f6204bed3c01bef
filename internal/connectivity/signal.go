// Stocksync - Offline-First Inventory Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stocksync

// Package connectivity tracks whether the remote store is considered
// reachable. The signal is set by whatever layer observes the network
// (the reconciler after a pass, an external health probe) and read by
// everything that must not attempt remote calls while offline.
package connectivity

import (
	"sync"
	"sync/atomic"

	"github.com/tomtom215/stocksync/internal/logging"
)

// Signal is a process-wide online/offline flag with transition
// notifications. The zero value is offline; use New to start online.
//
// Thread safety: all methods are safe for concurrent use.
type Signal struct {
	online atomic.Bool

	mu   sync.Mutex
	subs []chan bool
}

// New creates a Signal with the given initial state.
func New(online bool) *Signal {
	s := &Signal{}
	s.online.Store(online)
	return s
}

// Online reports the current state.
func (s *Signal) Online() bool {
	return s.online.Load()
}

// Set records the new state. Subscribers are notified only on an actual
// transition; setting the same state twice is a no-op.
func (s *Signal) Set(online bool) {
	if s.online.Swap(online) == online {
		return
	}

	if online {
		logging.Info().Msg("connectivity restored")
	} else {
		logging.Warn().Msg("connectivity lost")
	}

	s.mu.Lock()
	subs := make([]chan bool, len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- online:
		default:
			// Subscriber has an undelivered transition pending; the
			// current state is readable via Online at any time.
		}
	}
}

// Subscribe registers for transition notifications. The returned channel
// receives the new state on every transition; a slow subscriber misses
// intermediate flips but can always read the latest state via Online.
func (s *Signal) Subscribe() <-chan bool {
	ch := make(chan bool, 1)
	s.mu.Lock()
	s.subs = append(s.subs, ch)
	s.mu.Unlock()
	return ch
}
