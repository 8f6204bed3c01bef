// Stocksync - Offline-First Inventory Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stocksync

package connectivity

import (
	"testing"
	"time"
)

func TestSignal_InitialState(t *testing.T) {
	if !New(true).Online() {
		t.Error("Expected signal created online to report online")
	}
	if New(false).Online() {
		t.Error("Expected signal created offline to report offline")
	}
}

func TestSignal_TransitionNotifiesSubscriber(t *testing.T) {
	s := New(true)
	ch := s.Subscribe()

	s.Set(false)

	select {
	case online := <-ch:
		if online {
			t.Error("Expected offline transition notification")
		}
	case <-time.After(time.Second):
		t.Fatal("Expected a transition notification")
	}

	if s.Online() {
		t.Error("Expected Online to report false after transition")
	}
}

func TestSignal_SameStateIsNoOp(t *testing.T) {
	s := New(true)
	ch := s.Subscribe()

	s.Set(true)

	select {
	case <-ch:
		t.Error("Expected no notification when state does not change")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSignal_SlowSubscriberDoesNotBlockSet(t *testing.T) {
	s := New(true)
	_ = s.Subscribe() // never drained

	done := make(chan struct{})
	go func() {
		s.Set(false)
		s.Set(true)
		s.Set(false)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Expected Set to complete with an undrained subscriber")
	}
}
