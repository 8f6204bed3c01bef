// Stocksync - Offline-First Inventory Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stocksync

package models

// Origin is a tagged representation of where an entity's id came from:
// either allocated locally while offline (temp id, remote create still
// owed) or assigned by the remote store (canonical id).
//
// All id-shape heuristics live in DetectOrigin; nothing else in the engine
// inspects id strings.
type Origin struct {
	local bool
	id    string
}

// LocalOrigin tags an entity as locally created with the given temp id.
func LocalOrigin(tempID string) Origin {
	return Origin{local: true, id: tempID}
}

// RemoteOrigin tags an entity as known to the remote store under the given
// canonical id.
func RemoteOrigin(canonicalID string) Origin {
	return Origin{local: false, id: canonicalID}
}

// IsLocal reports whether the entity still owes the remote store a create.
func (o Origin) IsLocal() bool { return o.local }

// ID returns the temp id (local) or canonical id (remote).
func (o Origin) ID() string { return o.id }

// DetectOrigin classifies an id. The explicit offlineCreated flag wins;
// when it is absent or stale the legacy patterns apply: a reserved local
// prefix, or an id that parses fully as a number.
func DetectOrigin(id string, offlineCreated bool) Origin {
	if offlineCreated || looksLocal(id) {
		return LocalOrigin(id)
	}
	return RemoteOrigin(id)
}
