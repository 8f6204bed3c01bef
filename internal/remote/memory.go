// Stocksync - Offline-First Inventory Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stocksync

package remote

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/tomtom215/stocksync/internal/models"
)

// MemoryAdapter is an in-process Adapter implementation. It backs engine
// and reconciler tests (with injectable failures and manual snapshot
// emission) and serves local-only deployments where no remote store is
// configured.
//
// Thread safety: all methods are safe for concurrent use.
type MemoryAdapter struct {
	mu          sync.RWMutex
	data        map[models.Collection]map[string]models.Entity
	subscribers map[models.Collection][]chan []models.Entity

	// failures maps a collection to an error returned by every write
	// against it. Used to simulate auth and transient failures.
	failures map[models.Collection]error

	// counters for test assertions
	createCalls map[models.Collection]int
	updateCalls map[models.Collection]int
	deleteCalls map[models.Collection]int
}

// NewMemoryAdapter creates an empty in-memory remote store.
func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{
		data:        make(map[models.Collection]map[string]models.Entity),
		subscribers: make(map[models.Collection][]chan []models.Entity),
		failures:    make(map[models.Collection]error),
		createCalls: make(map[models.Collection]int),
		updateCalls: make(map[models.Collection]int),
		deleteCalls: make(map[models.Collection]int),
	}
}

// FailWith makes every write against the collection return err. Pass nil
// to clear the injected failure.
func (m *MemoryAdapter) FailWith(c models.Collection, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, c)
		return
	}
	m.failures[c] = err
}

// Create implements Adapter, allocating a canonical uuid-based id.
func (m *MemoryAdapter) Create(ctx context.Context, c models.Collection, e models.Entity) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.createCalls[c]++
	if err := m.failures[c]; err != nil {
		return "", err
	}

	id := uuid.NewString()
	stored := e.Clone()
	stored.ID = id
	stored.OfflineCreated = false
	stored.SyncStatus = ""

	if m.data[c] == nil {
		m.data[c] = make(map[string]models.Entity)
	}
	m.data[c][id] = stored
	return id, nil
}

// Update implements Adapter.
func (m *MemoryAdapter) Update(ctx context.Context, c models.Collection, id string, e models.Entity) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.updateCalls[c]++
	if err := m.failures[c]; err != nil {
		return err
	}
	if m.data[c] == nil {
		m.data[c] = make(map[string]models.Entity)
	}

	stored := e.Clone()
	stored.ID = id
	stored.OfflineCreated = false
	stored.SyncStatus = ""
	m.data[c][id] = stored
	return nil
}

// Delete implements Adapter. Deleting an absent entity succeeds.
func (m *MemoryAdapter) Delete(ctx context.Context, c models.Collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.deleteCalls[c]++
	if err := m.failures[c]; err != nil {
		return err
	}
	delete(m.data[c], id)
	return nil
}

// GetAll implements Adapter.
func (m *MemoryAdapter) GetAll(ctx context.Context, c models.Collection) ([]models.Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.failures[c]; err != nil {
		return nil, err
	}
	return m.snapshotLocked(c), nil
}

// Subscribe implements Adapter. Snapshots are delivered via Emit or
// EmitCurrent; the subscription ends when the cancel function runs or the
// context is done.
func (m *MemoryAdapter) Subscribe(ctx context.Context, c models.Collection) (<-chan []models.Entity, func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failures[c]; err != nil {
		return nil, nil, err
	}

	ch := make(chan []models.Entity, 8)
	m.subscribers[c] = append(m.subscribers[c], ch)

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			subs := m.subscribers[c]
			for i, sub := range subs {
				if sub == ch {
					m.subscribers[c] = append(subs[:i], subs[i+1:]...)
					break
				}
			}
			close(ch)
		})
	}

	go func() {
		<-ctx.Done()
		cancel()
	}()

	return ch, cancel, nil
}

// Emit pushes an arbitrary snapshot to every subscriber of the collection,
// simulating a push from the remote store.
func (m *MemoryAdapter) Emit(c models.Collection, snapshot []models.Entity) {
	m.mu.RLock()
	subs := make([]chan []models.Entity, len(m.subscribers[c]))
	copy(subs, m.subscribers[c])
	m.mu.RUnlock()

	for _, ch := range subs {
		select {
		case ch <- snapshot:
		default:
			// Subscriber is not draining; drop rather than block.
		}
	}
}

// EmitCurrent pushes the adapter's current authoritative snapshot, the way
// a real remote store does after a write lands.
func (m *MemoryAdapter) EmitCurrent(c models.Collection) {
	m.mu.RLock()
	snapshot := m.snapshotLocked(c)
	m.mu.RUnlock()
	m.Emit(c, snapshot)
}

// CreateCalls returns how many creates were attempted for the collection.
func (m *MemoryAdapter) CreateCalls(c models.Collection) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.createCalls[c]
}

// UpdateCalls returns how many updates were attempted for the collection.
func (m *MemoryAdapter) UpdateCalls(c models.Collection) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.updateCalls[c]
}

// DeleteCalls returns how many deletes were attempted for the collection.
func (m *MemoryAdapter) DeleteCalls(c models.Collection) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.deleteCalls[c]
}

// Entity returns the stored entity by id for test assertions.
func (m *MemoryAdapter) Entity(c models.Collection, id string) (models.Entity, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.data[c][id]
	return e, ok
}

// Len returns how many entities the collection holds.
func (m *MemoryAdapter) Len(c models.Collection) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data[c])
}

// snapshotLocked builds a deterministic snapshot (sorted by id) of the
// collection. Callers must hold at least the read lock.
func (m *MemoryAdapter) snapshotLocked(c models.Collection) []models.Entity {
	out := make([]models.Entity, 0, len(m.data[c]))
	for _, e := range m.data[c] {
		out = append(out, e.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Seed inserts an entity with a fixed id, bypassing call counters. Tests
// use it to arrange remote state.
func (m *MemoryAdapter) Seed(c models.Collection, e models.Entity) error {
	if e.ID == "" {
		return fmt.Errorf("seed entity needs an id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data[c] == nil {
		m.data[c] = make(map[string]models.Entity)
	}
	m.data[c][e.ID] = e.Clone()
	return nil
}
