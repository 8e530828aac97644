// Package memory stores per-role private memory snapshots. Snapshots are
// latest-wins per run/role: the engine writes a fresh synthesis after each
// speaker turn under layered context mode, and only the owning role ever
// receives the stored value back.
package memory

import (
	"sync"

	"github.com/conclave-dev/conclave/core"
)

// InMemoryStore is a process-local MemoryStore guarded by an RWMutex.
// Values are deep-copied on both write and read so callers can never mutate
// stored snapshots.
type InMemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string]map[string]core.PrivateMemory // runID -> role -> latest snapshot
}

// NewInMemoryStore creates an empty in-memory memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{snapshots: make(map[string]map[string]core.PrivateMemory)}
}

// Put replaces the role's snapshot for the run.
func (s *InMemoryStore) Put(runID, role string, m core.PrivateMemory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byRole, ok := s.snapshots[runID]
	if !ok {
		byRole = make(map[string]core.PrivateMemory)
		s.snapshots[runID] = byRole
	}
	byRole[role] = *m.Clone()
	return nil
}

// Get returns the role's latest snapshot; the bool reports existence.
func (s *InMemoryStore) Get(runID, role string) (core.PrivateMemory, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byRole, ok := s.snapshots[runID]
	if !ok {
		return core.PrivateMemory{}, false, nil
	}
	m, ok := byRole[role]
	if !ok {
		return core.PrivateMemory{}, false, nil
	}
	return *m.Clone(), true, nil
}

// List returns the latest snapshot per role for the run.
func (s *InMemoryStore) List(runID string) (map[string]core.PrivateMemory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]core.PrivateMemory)
	for role, m := range s.snapshots[runID] {
		out[role] = *m.Clone()
	}
	return out, nil
}
