// Package runstore persists the single mutable status row per run.
package runstore

import (
	"fmt"
	"sync"

	"github.com/conclave-dev/conclave/core"
)

// InMemoryStore is a volatile RunStore backed by a map.
type InMemoryStore struct {
	mu   sync.RWMutex
	runs map[string]core.Run
}

// NewInMemoryStore creates an empty in-memory run store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{runs: make(map[string]core.Run)}
}

// Create inserts the run row; the id must be unused.
func (s *InMemoryStore) Create(run core.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runs[run.ID]; exists {
		return fmt.Errorf("run %s already exists", run.ID)
	}
	s.runs[run.ID] = run
	return nil
}

// Update replaces the run row.
func (s *InMemoryStore) Update(run core.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runs[run.ID]; !exists {
		return fmt.Errorf("run %s not found", run.ID)
	}
	s.runs[run.ID] = run
	return nil
}

// Get returns the run row by id.
func (s *InMemoryStore) Get(runID string) (core.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[runID]
	if !ok {
		return core.Run{}, fmt.Errorf("run %s not found", runID)
	}
	return run, nil
}
