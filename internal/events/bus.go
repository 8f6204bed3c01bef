// Stocksync - Offline-First Inventory Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stocksync

// Package events provides the in-process event bus. Components publish
// lifecycle events (entity saved, sync pass completed, snapshot applied)
// and consumers such as the WebSocket hub and notification sinks
// subscribe without coupling to the producers.
package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/stocksync/internal/logging"
)

// Topics carried by the bus.
const (
	// TopicEntitySaved fires after a local mutation persists, before any
	// remote transmission. Payload: EntitySaved.
	TopicEntitySaved = "entity.saved"

	// TopicSyncCompleted fires at the end of every reconciliation pass,
	// successful or not. Payload: SyncCompleted.
	TopicSyncCompleted = "sync.completed"

	// TopicSnapshotApplied fires after a pushed snapshot replaces a local
	// collection. Payload: SnapshotApplied.
	TopicSnapshotApplied = "snapshot.applied"
)

// EntitySaved reports a local mutation.
type EntitySaved struct {
	Collection string `json:"collection"`
	EntityID   string `json:"entityId"`
	Operation  string `json:"operation"` // create, update, delete
}

// SyncCompleted reports the outcome of a reconciliation pass.
type SyncCompleted struct {
	Synced int      `json:"synced"`
	Failed int      `json:"failed"`
	Errors []string `json:"errors,omitempty"`
}

// SnapshotApplied reports a live update landing in the local store.
type SnapshotApplied struct {
	Collection string `json:"collection"`
	Entities   int    `json:"entities"`
}

// Bus is a thin wrapper over Watermill's in-process pub/sub. Payloads are
// JSON; each message carries a fresh UUID.
//
// Thread safety: safe for concurrent use.
type Bus struct {
	pubsub *gochannel.GoChannel

	mu     sync.Mutex
	closed bool
}

// NewBus creates an in-process bus. Subscribers that fall behind buffer up
// to 64 messages per topic before publishes block.
func NewBus() *Bus {
	return &Bus{
		pubsub: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: 64,
		}, newWatermillLogger()),
	}
}

// Publish marshals the payload and publishes it on the topic.
func (b *Bus) Publish(topic string, payload any) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return fmt.Errorf("event bus is closed")
	}
	b.mu.Unlock()

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	msg := message.NewMessage(uuid.NewString(), data)
	if err := b.pubsub.Publish(topic, msg); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Subscribe returns a channel of messages for the topic. The channel
// closes when the context ends or the bus is closed. Consumers must Ack
// each message.
func (b *Bus) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return b.pubsub.Subscribe(ctx, topic)
}

// Close shuts the bus down; subsequent publishes fail.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.pubsub.Close()
}

// watermillLogger routes Watermill's internal logging through zerolog.
type watermillLogger struct {
	fields watermill.LogFields
}

func newWatermillLogger() watermill.LoggerAdapter {
	return &watermillLogger{}
}

func (l *watermillLogger) Error(msg string, err error, fields watermill.LogFields) {
	logging.Error().Err(err).Fields(map[string]any(l.fields.Add(fields))).Msg(msg)
}

func (l *watermillLogger) Info(msg string, fields watermill.LogFields) {
	logging.Debug().Fields(map[string]any(l.fields.Add(fields))).Msg(msg)
}

func (l *watermillLogger) Debug(msg string, fields watermill.LogFields) {
	logging.Debug().Fields(map[string]any(l.fields.Add(fields))).Msg(msg)
}

func (l *watermillLogger) Trace(msg string, fields watermill.LogFields) {
	logging.Debug().Fields(map[string]any(l.fields.Add(fields))).Msg(msg)
}

func (l *watermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &watermillLogger{fields: l.fields.Add(fields)}
}
