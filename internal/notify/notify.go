// Stocksync - Offline-First Inventory Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stocksync

// Package notify decouples user-facing status messages from the sync
// machinery. The engine and reconciler report through a Sink; deployments
// choose where those messages land (logs, the event bus, a UI).
package notify

import (
	"github.com/tomtom215/stocksync/internal/events"
	"github.com/tomtom215/stocksync/internal/logging"
)

// Sink receives user-facing status messages.
type Sink interface {
	Info(msg string)
	Success(msg string)
	Error(msg string)
}

// Noop discards every message.
type Noop struct{}

func (Noop) Info(string)    {}
func (Noop) Success(string) {}
func (Noop) Error(string)   {}

// LogSink routes messages to the structured log.
type LogSink struct{}

func (LogSink) Info(msg string)    { logging.Info().Str("kind", "info").Msg(msg) }
func (LogSink) Success(msg string) { logging.Info().Str("kind", "success").Msg(msg) }
func (LogSink) Error(msg string)   { logging.Warn().Str("kind", "error").Msg(msg) }

// Notification is the payload a BusSink publishes.
type Notification struct {
	Kind    string `json:"kind"` // info, success, error
	Message string `json:"message"`
}

// TopicNotification carries user-facing messages on the event bus.
const TopicNotification = "notification"

// BusSink publishes messages on the event bus so connected UIs receive
// them live. Publish failures are logged, never propagated: a status
// message must not break the operation it describes.
type BusSink struct {
	bus *events.Bus
}

// NewBusSink creates a sink publishing to the given bus.
func NewBusSink(bus *events.Bus) *BusSink {
	return &BusSink{bus: bus}
}

func (s *BusSink) Info(msg string)    { s.publish("info", msg) }
func (s *BusSink) Success(msg string) { s.publish("success", msg) }
func (s *BusSink) Error(msg string)   { s.publish("error", msg) }

func (s *BusSink) publish(kind, msg string) {
	if err := s.bus.Publish(TopicNotification, Notification{Kind: kind, Message: msg}); err != nil {
		logging.Debug().Err(err).Str("kind", kind).Msg("notification publish failed")
	}
}
