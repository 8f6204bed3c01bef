// Stocksync - Offline-First Inventory Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stocksync

package websocket

import (
	"context"
	"sync"

	"github.com/goccy/go-json"

	"github.com/tomtom215/stocksync/internal/events"
	"github.com/tomtom215/stocksync/internal/logging"
	"github.com/tomtom215/stocksync/internal/notify"
)

// topicMessageTypes maps bus topics to the frame types clients see.
var topicMessageTypes = map[string]string{
	events.TopicEntitySaved:     MessageTypeEntitySaved,
	events.TopicSyncCompleted:   MessageTypeSyncCompleted,
	events.TopicSnapshotApplied: MessageTypeSnapshotApplied,
	notify.TopicNotification:    MessageTypeNotification,
}

// Forwarder consumes sync lifecycle events from the bus and broadcasts
// them through the hub.
type Forwarder struct {
	bus *events.Bus
	hub *Hub
}

// NewForwarder wires a Forwarder.
func NewForwarder(bus *events.Bus, hub *Hub) *Forwarder {
	return &Forwarder{bus: bus, hub: hub}
}

// Serve subscribes to every forwarded topic and relays until the context
// ends.
func (f *Forwarder) Serve(ctx context.Context) error {
	var wg sync.WaitGroup

	for topic, messageType := range topicMessageTypes {
		msgs, err := f.bus.Subscribe(ctx, topic)
		if err != nil {
			logging.Error().Err(err).Str("topic", topic).Msg("event subscription failed")
			continue
		}

		wg.Add(1)
		go func(topic, messageType string) {
			defer wg.Done()
			for msg := range msgs {
				var data map[string]any
				if err := json.Unmarshal(msg.Payload, &data); err != nil {
					logging.Warn().Err(err).Str("topic", topic).Msg("undecodable event payload dropped")
					msg.Ack()
					continue
				}
				f.hub.Broadcast(messageType, data)
				msg.Ack()
			}
		}(topic, messageType)
	}

	<-ctx.Done()
	wg.Wait()
	return ctx.Err()
}

func (f *Forwarder) String() string { return "websocket-forwarder" }
