package artifact

import (
	"encoding/json"
	"sync"

	"github.com/conclave-dev/conclave/core"
)

// InMemoryStore is a volatile ArtifactStore keeping artifacts in a nested
// map guarded by an RWMutex. Suited to tests, examples and single-process
// deployments; swap in a durable implementation for anything that must
// survive a restart.
//
// Layout: runID -> type/version -> artifact
type InMemoryStore struct {
	mu        sync.RWMutex
	artifacts map[string]map[schemaKey]core.Artifact
}

// NewInMemoryStore returns an empty in-memory artifact store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{artifacts: make(map[string]map[schemaKey]core.Artifact)}
}

// Save stores the artifact, enforcing accept-at-most-once per
// run/type/version: re-saving identical content is a no-op, conflicting
// content returns ErrConflict.
func (s *InMemoryStore) Save(a core.Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byKey, ok := s.artifacts[a.RunID]
	if !ok {
		byKey = make(map[schemaKey]core.Artifact)
		s.artifacts[a.RunID] = byKey
	}
	key := schemaKey{t: a.Type, version: a.Version}
	if existing, exists := byKey[key]; exists {
		if sameContent(existing.Content, a.Content) {
			return nil
		}
		return ErrConflict
	}
	byKey[key] = a
	return nil
}

// Get returns the stored artifact or ErrNotFound.
func (s *InMemoryStore) Get(runID string, t core.ArtifactType, version string) (core.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byKey, ok := s.artifacts[runID]
	if !ok {
		return core.Artifact{}, ErrNotFound
	}
	a, ok := byKey[schemaKey{t: t, version: version}]
	if !ok {
		return core.Artifact{}, ErrNotFound
	}
	return a, nil
}

// List returns all artifacts stored for the run ordered by creation time.
func (s *InMemoryStore) List(runID string) ([]core.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byKey, ok := s.artifacts[runID]
	if !ok {
		return []core.Artifact{}, nil
	}
	out := make([]core.Artifact, 0, len(byKey))
	for _, a := range byKey {
		out = append(out, a)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].CreatedAt.Before(out[j-1].CreatedAt); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out, nil
}

// sameContent compares content maps by canonical JSON encoding.
func sameContent(a, b map[string]any) bool {
	ra, errA := json.Marshal(a)
	rb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return string(ra) == string(rb)
}
