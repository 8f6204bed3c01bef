// Stocksync - Offline-First Inventory Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stocksync

package remote

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/stocksync/internal/logging"
	"github.com/tomtom215/stocksync/internal/models"
)

const (
	// wsHandshakeTimeout bounds the initial subscription handshake.
	wsHandshakeTimeout = 10 * time.Second

	// wsPingInterval keeps the push connection alive through idle periods.
	wsPingInterval = 30 * time.Second

	// wsSnapshotBuffer decouples the reader goroutine from a momentarily
	// slow consumer without unbounded growth.
	wsSnapshotBuffer = 8
)

// wsSubscriber consumes the remote store's push channel for one collection
// over WebSocket. Each frame is the full authoritative snapshot for the
// collection, delivered in the order the remote store emits them.
type wsSubscriber struct {
	baseURL    string
	apiKey     string
	collection models.Collection

	conn     *websocket.Conn
	stopOnce sync.Once
	stopChan chan struct{}
	wg       sync.WaitGroup
}

func newWSSubscriber(baseURL, apiKey string, c models.Collection) *wsSubscriber {
	return &wsSubscriber{
		baseURL:    baseURL,
		apiKey:     apiKey,
		collection: c,
		stopChan:   make(chan struct{}),
	}
}

// start dials the watch endpoint and returns the snapshot channel plus the
// unsubscribe function. The channel is closed when the subscription ends.
func (s *wsSubscriber) start(ctx context.Context) (<-chan []models.Entity, func(), error) {
	wsURL, err := s.buildWatchURL()
	if err != nil {
		return nil, nil, fmt.Errorf("build watch url: %w", err)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout:  wsHandshakeTimeout,
		EnableCompression: true,
	}

	conn, resp, err := dialer.DialContext(ctx, wsURL, nil)
	if resp != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		if resp != nil && (resp.StatusCode == 401 || resp.StatusCode == 403) {
			return nil, nil, fmt.Errorf("%w: watch handshake (HTTP %d)", ErrUnauthorized, resp.StatusCode)
		}
		return nil, nil, fmt.Errorf("%w: watch dial: %v", ErrUnavailable, err)
	}
	s.conn = conn

	logging.Info().Str("collection", string(s.collection)).Msg("watch subscription opened")

	snapshots := make(chan []models.Entity, wsSnapshotBuffer)

	s.wg.Add(2)
	go s.listen(ctx, snapshots)
	go s.pingLoop(ctx)

	return snapshots, s.stop, nil
}

// stop tears down the subscription. Safe to call more than once.
func (s *wsSubscriber) stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
		_ = s.conn.Close()
		s.wg.Wait()
	})
}

// listen reads snapshot frames until the connection closes or the context
// ends. A malformed frame is logged and skipped; it must not end the
// subscription.
func (s *wsSubscriber) listen(ctx context.Context, snapshots chan<- []models.Entity) {
	defer s.wg.Done()
	defer close(snapshots)

	for {
		select {
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		default:
		}

		_, frame, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.stopChan:
			case <-ctx.Done():
			default:
				logging.Warn().Err(err).Str("collection", string(s.collection)).
					Msg("watch subscription read failed; subscription closed")
			}
			return
		}

		var entities []models.Entity
		if err := json.Unmarshal(frame, &entities); err != nil {
			logging.Error().Err(err).Str("collection", string(s.collection)).
				Msg("malformed snapshot frame skipped")
			continue
		}

		select {
		case snapshots <- entities:
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// pingLoop keeps the connection alive with periodic pings.
func (s *wsSubscriber) pingLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			deadline := time.Now().Add(wsHandshakeTimeout)
			if err := s.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				logging.Debug().Err(err).Str("collection", string(s.collection)).
					Msg("watch ping failed")
				return
			}
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// buildWatchURL converts the REST base URL to the WebSocket watch endpoint
// for this collection, injecting the auth token as a query parameter.
func (s *wsSubscriber) buildWatchURL() (string, error) {
	parsed, err := url.Parse(s.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}

	switch parsed.Scheme {
	case "http":
		parsed.Scheme = "ws"
	case "https":
		parsed.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", parsed.Scheme)
	}

	parsed.Path = fmt.Sprintf("/api/v1/%s/watch", s.collection)
	if s.apiKey != "" {
		q := parsed.Query()
		q.Set("token", s.apiKey)
		parsed.RawQuery = q.Encode()
	}
	return parsed.String(), nil
}
