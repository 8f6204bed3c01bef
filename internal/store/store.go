// Stocksync - Offline-First Inventory Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stocksync

package store

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/stocksync/internal/logging"
	"github.com/tomtom215/stocksync/internal/models"
)

// snapshotKeyPrefix namespaces collection snapshots in BadgerDB. The
// pending queue shares the same database under its own prefix.
const snapshotKeyPrefix = "snapshot:"

// Store is the Local Durable Store: one full snapshot per collection,
// surviving process restarts.
//
// The mutation path above the store has already committed in memory by the
// time a save runs, so a recoverable persistence failure (serialization,
// value too large, transaction rejected) must never propagate upward: such
// failures are logged and swallowed, and the in-memory state stays
// authoritative for the rest of the process lifetime. Data loss is then
// possible only across a restart that happens before the next successful
// save; that residual risk is accepted by design.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) the BadgerDB database backing the store and the
// pending queue. When inMemory is true the database lives entirely in RAM,
// which is used by tests and by ephemeral local-only deployments.
func Open(dir string, inMemory bool) (*badger.DB, error) {
	opts := badger.DefaultOptions(dir).
		WithInMemory(inMemory).
		WithLogger(badgerLogger{})
	if inMemory {
		opts = opts.WithDir("").WithValueDir("")
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return db, nil
}

// New creates a Store on an open BadgerDB handle.
func New(db *badger.DB) *Store {
	return &Store{db: db}
}

// SaveCollection replaces the entire named partition with the given
// entities. The replace is atomic from the caller's point of view: readers
// see either the previous snapshot or the new one, never a partial write.
//
// Recoverable failures are logged and swallowed; see the Store doc.
func (s *Store) SaveCollection(name models.Collection, entities []models.Entity) {
	if !models.ValidCollection(name) {
		logging.Error().Str("collection", string(name)).Msg("save refused: unknown collection")
		return
	}
	if entities == nil {
		entities = []models.Entity{}
	}

	data, err := json.Marshal(entities)
	if err != nil {
		logging.Error().Err(err).Str("collection", string(name)).
			Msg("snapshot serialization failed; keeping previous snapshot")
		return
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(snapshotKey(name), data)
	})
	if err != nil {
		logging.Error().Err(err).Str("collection", string(name)).
			Int("entities", len(entities)).
			Msg("snapshot persistence failed; in-memory state remains authoritative")
	}
}

// GetCollection returns the last-saved snapshot for the named partition, or
// an empty slice if none exists. A corrupt stored value is logged and
// treated as empty rather than propagated.
func (s *Store) GetCollection(name models.Collection) []models.Entity {
	entities := []models.Entity{}
	if !models.ValidCollection(name) {
		logging.Error().Str("collection", string(name)).Msg("get refused: unknown collection")
		return entities
	}

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(snapshotKey(name))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entities)
		})
	})

	switch {
	case err == nil:
	case errors.Is(err, badger.ErrKeyNotFound):
		// No snapshot yet; empty is the correct answer.
	default:
		logging.Error().Err(err).Str("collection", string(name)).
			Msg("snapshot read failed; treating collection as empty")
		entities = []models.Entity{}
	}
	return entities
}

// ClearAll erases every partition, including the pending queue that shares
// the database. This is the teardown path only; entities are otherwise
// destroyed solely by explicit delete mutations.
func (s *Store) ClearAll() error {
	if err := s.db.DropAll(); err != nil {
		return fmt.Errorf("clear all data: %w", err)
	}
	logging.Info().Msg("local durable store cleared")
	return nil
}

// DB exposes the underlying handle for collaborators that share the
// database (the pending queue).
func (s *Store) DB() *badger.DB { return s.db }

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func snapshotKey(name models.Collection) []byte {
	return []byte(snapshotKeyPrefix + string(name))
}

// badgerLogger routes badger's internal logging through zerolog.
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...interface{}) {
	logging.Error().Msgf("badger: "+format, args...)
}

func (badgerLogger) Warningf(format string, args ...interface{}) {
	logging.Warn().Msgf("badger: "+format, args...)
}

func (badgerLogger) Infof(format string, args ...interface{}) {
	logging.Debug().Msgf("badger: "+format, args...)
}

func (badgerLogger) Debugf(format string, args ...interface{}) {
	logging.Debug().Msgf("badger: "+format, args...)
}
