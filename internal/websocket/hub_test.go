// Stocksync - Offline-First Inventory Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stocksync

package websocket

import (
	"context"
	"testing"
	"time"

	"github.com/tomtom215/stocksync/internal/events"
)

func startHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { defer close(done); _ = hub.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("Expected Serve to return after cancel")
		}
	})
	return hub, cancel
}

func waitForClients(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for hub.ClientCount() != want {
		select {
		case <-deadline:
			t.Fatalf("Expected %d clients, got %d", want, hub.ClientCount())
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestHub_RegisterAndUnregister(t *testing.T) {
	hub, _ := startHub(t)

	client := NewClient(hub, nil)
	hub.Register <- client
	waitForClients(t, hub, 1)

	hub.Unregister <- client
	waitForClients(t, hub, 0)

	// The hub closed the send channel on unregister.
	select {
	case _, open := <-client.send:
		if open {
			t.Error("Expected send channel closed after unregister")
		}
	case <-time.After(time.Second):
		t.Fatal("Expected send channel to close")
	}
}

func TestHub_BroadcastReachesAllClients(t *testing.T) {
	hub, _ := startHub(t)

	a := NewClient(hub, nil)
	b := NewClient(hub, nil)
	hub.Register <- a
	hub.Register <- b
	waitForClients(t, hub, 2)

	hub.Broadcast(MessageTypeSyncCompleted, map[string]any{"synced": 3})

	for _, client := range []*Client{a, b} {
		select {
		case msg := <-client.send:
			if msg.Type != MessageTypeSyncCompleted {
				t.Errorf("Expected sync_completed, got %q", msg.Type)
			}
		case <-time.After(time.Second):
			t.Fatal("Expected the broadcast to reach every client")
		}
	}
}

func TestHub_SlowClientIsDisconnected(t *testing.T) {
	hub, _ := startHub(t)

	client := NewClient(hub, nil)
	hub.Register <- client
	waitForClients(t, hub, 1)

	// Fill the client's buffer without draining, then push one more.
	for i := 0; i < cap(client.send)+1; i++ {
		hub.Broadcast(MessageTypePing, nil)
	}
	waitForClients(t, hub, 0)
}

func TestHub_ShutdownClosesClients(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { defer close(done); _ = hub.Serve(ctx) }()

	client := NewClient(hub, nil)
	hub.Register <- client
	waitForClients(t, hub, 1)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Expected Serve to return")
	}
	if hub.ClientCount() != 0 {
		t.Errorf("Expected all clients closed, got %d", hub.ClientCount())
	}
}

func TestForwarder_RelaysBusEvents(t *testing.T) {
	hub, _ := startHub(t)
	bus := events.NewBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = NewForwarder(bus, hub).Serve(ctx) }()

	client := NewClient(hub, nil)
	hub.Register <- client
	waitForClients(t, hub, 1)

	// The forwarder needs a moment to subscribe; retry until delivered.
	deadline := time.After(2 * time.Second)
	for {
		if err := bus.Publish(events.TopicEntitySaved, events.EntitySaved{
			Collection: "products", EntityID: "p1", Operation: "create",
		}); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}

		select {
		case msg := <-client.send:
			if msg.Type != MessageTypeEntitySaved {
				t.Fatalf("Expected entity_saved, got %q", msg.Type)
			}
			data, ok := msg.Data.(map[string]any)
			if !ok || data["collection"] != "products" {
				t.Fatalf("Unexpected frame data: %#v", msg.Data)
			}
			return
		case <-deadline:
			t.Fatal("Expected the bus event relayed to the client")
		case <-time.After(50 * time.Millisecond):
		}
	}
}
