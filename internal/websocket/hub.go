// Stocksync - Offline-First Inventory Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stocksync

// Package websocket pushes sync lifecycle events to connected UIs: entity
// saves, reconciliation results, applied snapshots, and user-facing
// notifications. Clients are read-mostly; the only inbound message the
// hub understands is a ping.
package websocket

import (
	"context"
	"sort"
	"sync"

	"github.com/tomtom215/stocksync/internal/logging"
	"github.com/tomtom215/stocksync/internal/metrics"
)

// Message types pushed to clients.
const (
	MessageTypePing            = "ping"
	MessageTypePong            = "pong"
	MessageTypeEntitySaved     = "entity_saved"
	MessageTypeSyncCompleted   = "sync_completed"
	MessageTypeSnapshotApplied = "snapshot_applied"
	MessageTypeNotification    = "notification"
)

// Message is the envelope for every frame sent to a client.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Hub maintains the set of active clients and broadcasts messages to
// them. Register and Unregister are consumed by Serve.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Message
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Message, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
	}
}

// Serve runs the hub until the context ends, then closes every client.
// Lifecycle events take priority over broadcasts so client state is
// settled before messages fan out.
func (h *Hub) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case client := <-h.Register:
			h.add(client)
			continue
		case client := <-h.Unregister:
			h.remove(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		case client := <-h.Register:
			h.add(client)
		case client := <-h.Unregister:
			h.remove(client)
		case message := <-h.broadcast:
			h.fanOut(message)
		}
	}
}

// Broadcast queues a message for every connected client. When the
// broadcast buffer is full the message is dropped; live updates are
// best-effort by design.
func (h *Hub) Broadcast(messageType string, data any) {
	select {
	case h.broadcast <- Message{Type: messageType, Data: data}:
	default:
		metrics.WebSocketDropped.Inc()
		logging.Warn().Str("type", messageType).Msg("broadcast buffer full, message dropped")
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) add(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	n := len(h.clients)
	h.mu.Unlock()

	metrics.WebSocketClients.Set(float64(n))
	logging.Info().Int("clients", n).Msg("websocket client connected")
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	n := len(h.clients)
	h.mu.Unlock()

	metrics.WebSocketClients.Set(float64(n))
	logging.Info().Int("clients", n).Msg("websocket client disconnected")
}

// fanOut delivers one message to every client in id order. A client whose
// send buffer is full is disconnected rather than allowed to block the
// rest.
func (h *Hub) fanOut(message Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].id < clients[j].id })

	for _, client := range clients {
		select {
		case client.send <- message:
		default:
			metrics.WebSocketDropped.Inc()
			close(client.send)
			delete(h.clients, client)
		}
	}
}

func (h *Hub) shutdown(ctx context.Context) {
	h.mu.Lock()
	n := len(h.clients)
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
	h.mu.Unlock()

	metrics.WebSocketClients.Set(0)
	logging.Info().Int("clients_closed", n).Str("reason", ctx.Err().Error()).
		Msg("websocket hub stopped")
}

func (h *Hub) String() string { return "websocket-hub" }
