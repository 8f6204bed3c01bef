// Stocksync - Offline-First Inventory Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stocksync

package events

import (
	"context"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func TestBus_PublishReachesSubscriber(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msgs, err := bus.Subscribe(ctx, TopicEntitySaved)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	if err := bus.Publish(TopicEntitySaved, EntitySaved{
		Collection: "products",
		EntityID:   "p1",
		Operation:  "create",
	}); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	select {
	case msg := <-msgs:
		var ev EntitySaved
		if err := json.Unmarshal(msg.Payload, &ev); err != nil {
			t.Fatalf("Unmarshal payload failed: %v", err)
		}
		if ev.Collection != "products" || ev.EntityID != "p1" || ev.Operation != "create" {
			t.Errorf("Unexpected event payload: %+v", ev)
		}
		if msg.UUID == "" {
			t.Error("Expected message to carry a uuid")
		}
		msg.Ack()
	case <-time.After(time.Second):
		t.Fatal("Expected the published event to arrive")
	}
}

func TestBus_TopicsAreIsolated(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msgs, err := bus.Subscribe(ctx, TopicSnapshotApplied)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	if err := bus.Publish(TopicSyncCompleted, SyncCompleted{Synced: 3}); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	select {
	case msg := <-msgs:
		t.Errorf("Expected no cross-topic delivery, got %s", msg.Payload)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBus_PublishAfterCloseFails(t *testing.T) {
	bus := NewBus()
	if err := bus.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := bus.Close(); err != nil {
		t.Errorf("Expected second Close to be a no-op, got %v", err)
	}
	if err := bus.Publish(TopicEntitySaved, EntitySaved{}); err == nil {
		t.Error("Expected publish on a closed bus to fail")
	}
}
