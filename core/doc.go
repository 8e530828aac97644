// Package core defines the data model and contracts shared by every Conclave
// component: meetings, runs, messages, the ordered event log, execution
// contexts handed to agent adapters, private role memory, artifacts, the
// store interfaces the engine writes through, and the error taxonomy.
//
// Everything in this package is either an immutable value (Meeting, Message,
// Event, Artifact), a contract (Runner, EventSink, ArtifactStore,
// MemoryStore, RunStore), or a small concurrency-safe helper (Sequencer,
// Budget). Orchestration behavior lives in the engine package.
package core
