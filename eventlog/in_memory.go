// Package eventlog provides the append-only event sink the engine writes
// through. Events arrive already sequenced by their run; the log preserves
// arrival order per run and supports full read-back for replay and audit.
// The engine never queries the log to make decisions.
package eventlog

import (
	"fmt"
	"sync"

	"github.com/conclave-dev/conclave/core"
)

// InMemoryStore is a volatile EventSink keeping per-run event slices in a
// map guarded by an RWMutex. Suited to tests and single-process servers.
type InMemoryStore struct {
	mu     sync.RWMutex
	events map[string][]core.Event
}

// NewInMemoryStore creates an empty in-memory event log.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[string][]core.Event)}
}

// Append records the event. Sequence positions within a run must be
// strictly increasing; a regression indicates a corrupted emitter and is
// rejected rather than silently reordered.
func (s *InMemoryStore) Append(ev core.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	log := s.events[ev.RunID]
	if n := len(log); n > 0 && ev.Seq <= log[n-1].Seq {
		return fmt.Errorf("event sequence regression for run %s: %d after %d", ev.RunID, ev.Seq, log[n-1].Seq)
	}
	s.events[ev.RunID] = append(log, ev)
	return nil
}

// List returns a defensive copy of the run's events in sequence order.
func (s *InMemoryStore) List(runID string) ([]core.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	log := s.events[runID]
	out := make([]core.Event, len(log))
	copy(out, log)
	return out, nil
}
