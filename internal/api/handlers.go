// Stocksync - Offline-First Inventory Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stocksync

package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	gorillaws "github.com/gorilla/websocket"

	"github.com/tomtom215/stocksync/internal/logging"
	"github.com/tomtom215/stocksync/internal/models"
	"github.com/tomtom215/stocksync/internal/reconcile"
	"github.com/tomtom215/stocksync/internal/websocket"
)

var upgrader = gorillaws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The engine serves a local-first UI; cross-origin policy belongs to
	// the deployment's reverse proxy.
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"online": rt.signal.Online(),
	})
}

// handleSyncStatus reports queue depth and reconciliation state.
func (rt *Router) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	perCollection := make(map[string]int)
	for _, c := range models.Collections() {
		perCollection[string(c)] = rt.queue.Len(c)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"online":        rt.signal.Online(),
		"inProgress":    rt.reconciler.InProgress(),
		"pending":       rt.queue.PendingCount(),
		"perCollection": perCollection,
	})
}

// handleSyncTrigger runs one reconciliation pass synchronously and
// returns its summary. 409 when a pass is already running, 503 while
// offline.
func (rt *Router) handleSyncTrigger(w http.ResponseWriter, r *http.Request) {
	result, err := rt.reconciler.Run(r.Context())
	switch {
	case errors.Is(err, reconcile.ErrSyncInProgress):
		writeError(w, http.StatusConflict, "sync already in progress")
		return
	case errors.Is(err, reconcile.ErrOffline):
		writeError(w, http.StatusServiceUnavailable, "offline")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":       result.Success(),
		"totalSynced":   result.TotalSynced,
		"perCollection": result.PerCollection,
		"errors":        result.Errors,
	})
}

func (rt *Router) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := websocket.NewClient(rt.hub, conn)
	rt.hub.Register <- client
	client.Start()
}

func (rt *Router) handleList(w http.ResponseWriter, r *http.Request) {
	c, ok := collectionParam(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, rt.engine.GetCollection(c))
}

func (rt *Router) handleCreate(w http.ResponseWriter, r *http.Request) {
	c, ok := collectionParam(w, r)
	if !ok {
		return
	}

	var fields map[string]any
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	e, err := rt.engine.AddEntity(r.Context(), c, fields)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (rt *Router) handleUpdate(w http.ResponseWriter, r *http.Request) {
	c, ok := collectionParam(w, r)
	if !ok {
		return
	}

	var fields map[string]any
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	e, err := rt.engine.UpdateEntity(r.Context(), c, chi.URLParam(r, "id"), fields)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (rt *Router) handleDelete(w http.ResponseWriter, r *http.Request) {
	c, ok := collectionParam(w, r)
	if !ok {
		return
	}

	if err := rt.engine.DeleteEntity(r.Context(), c, chi.URLParam(r, "id")); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func collectionParam(w http.ResponseWriter, r *http.Request) (models.Collection, bool) {
	c := models.Collection(chi.URLParam(r, "collection"))
	if !models.ValidCollection(c) {
		writeError(w, http.StatusNotFound, "unknown collection")
		return "", false
	}
	return c, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn().Err(err).Msg("response encode failed")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
