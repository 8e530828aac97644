package core

// EventSink is the append-only log the engine writes every event through.
// List supports read-back by run for replay and audit; the engine itself
// never consults the log to make decisions (decisions come from in-memory
// run state), keeping the log a pure audit trail.
type EventSink interface {
	Append(event Event) error
	List(runID string) ([]Event, error)
}

// ArtifactStore persists typed, versioned artifacts per run. Save is
// idempotent: storing identical content for an existing run/type/version is
// a no-op, while conflicting content is rejected.
type ArtifactStore interface {
	Save(artifact Artifact) error
	Get(runID string, t ArtifactType, version string) (Artifact, error)
	List(runID string) ([]Artifact, error)
}

// MemoryStore persists per-role private memory snapshots, latest wins.
type MemoryStore interface {
	Put(runID, role string, memory PrivateMemory) error
	Get(runID, role string) (PrivateMemory, bool, error)
	List(runID string) (map[string]PrivateMemory, error)
}
