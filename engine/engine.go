package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/conclave-dev/conclave/artifact"
	"github.com/conclave-dev/conclave/core"
	"github.com/conclave-dev/conclave/eventlog"
	"github.com/conclave-dev/conclave/logging"
	"github.com/conclave-dev/conclave/memory"
	"github.com/conclave-dev/conclave/pause"
	"github.com/conclave-dev/conclave/runstore"
)

// Config defines tuning parameters for the Engine's operational behavior.
//
// The configuration focuses on the mechanics of driving speaker turns:
//   - SpeakerTimeout: How long a single adapter invocation may take
//   - EventBufferSize: Channel buffering for the outbound event stream
//   - RepairAttempts: Automated repairs after a schema validation failure
//
// Additional concerns such as metrics collection or distributed tracing
// should be layered via hooks rather than expanding this struct.
type Config struct {
	// SpeakerTimeout bounds one adapter invocation. Expiry counts as a
	// recoverable failure for that speaker only.
	SpeakerTimeout time.Duration

	// EventBufferSize sets the channel buffer size for the event stream
	// returned by Start. Larger buffers reduce blocking but increase
	// memory usage.
	EventBufferSize int

	// RepairAttempts is how many automated repair turns a speaker gets
	// after producing output that fails validation. Zero means the
	// default of one; a negative value disables repairs entirely.
	RepairAttempts int
}

// DefaultConfig provides production-ready default configuration values.
var DefaultConfig = Config{
	SpeakerTimeout:  2 * time.Minute,
	EventBufferSize: 100,
	RepairAttempts:  1,
}

// Options configures an Engine instance using the functional options
// pattern. All services have in-memory defaults so the engine is usable
// immediately in development and tests; production deployments typically
// swap in durable implementations.
type Options struct {
	// Config contains operational parameters for the engine behavior.
	// Defaults to DefaultConfig if not specified.
	Config Config

	// EventSink receives every event the engine emits, in sequence order.
	// Defaults to an in-memory append-only log.
	EventSink core.EventSink

	// ArtifactStore persists validated artifacts.
	// Defaults to the in-memory idempotent store.
	ArtifactStore core.ArtifactStore

	// MemoryStore persists per-role private memory snapshots.
	// Defaults to an in-memory latest-wins store.
	MemoryStore core.MemoryStore

	// RunStore persists the per-run status row.
	// Defaults to an in-memory store.
	RunStore core.RunStore

	// Gate validates artifacts against their registered schemas.
	// Defaults to a gate with the built-in schema set.
	Gate *artifact.Gate

	// Hooks observe lifecycle points (speaker turns, rounds, pauses).
	Hooks []Hook

	// Logger provides structured logging for debugging and monitoring.
	// Defaults to NoOp logger if nil.
	Logger logging.Logger
}

// WithConfig overrides the operational configuration.
func WithConfig(cfg Config) func(o *Options) {
	return func(o *Options) { o.Config = cfg }
}

// WithEventSink overrides the event log implementation.
func WithEventSink(s core.EventSink) func(o *Options) {
	return func(o *Options) { o.EventSink = s }
}

// WithArtifactStore overrides the artifact store implementation.
func WithArtifactStore(s core.ArtifactStore) func(o *Options) {
	return func(o *Options) { o.ArtifactStore = s }
}

// WithMemoryStore overrides the memory store implementation.
func WithMemoryStore(s core.MemoryStore) func(o *Options) {
	return func(o *Options) { o.MemoryStore = s }
}

// WithRunStore overrides the run store implementation.
func WithRunStore(s core.RunStore) func(o *Options) {
	return func(o *Options) { o.RunStore = s }
}

// WithGate overrides the artifact gate (e.g. to register extra schemas).
func WithGate(g *artifact.Gate) func(o *Options) {
	return func(o *Options) { o.Gate = g }
}

// WithHooks registers lifecycle hooks.
func WithHooks(hooks ...Hook) func(o *Options) {
	return func(o *Options) { o.Hooks = append(o.Hooks, hooks...) }
}

// WithLogger overrides the logger.
func WithLogger(l logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = l }
}

// Engine orchestrates meeting runs: it owns the state machine that drives a
// run from intake through briefing, discussion rounds, convergence checks
// and finalization, emitting an append-only event stream along the way.
//
// Concurrency model:
//   - Each run executes on its own goroutine; that goroutine is the only
//     writer of the run's state
//   - A per-run Sequencer serializes event emission, so even parallel
//     speaker bursts produce a strictly increasing, gapless Seq
//   - Public methods are safe for concurrent use
//
// Pause/resume:
//   - The pause controller owns token validity; the engine owns the actual
//     suspension (the run goroutine parks until a valid resume arrives)
//   - Resume and Abandon are the only external inputs a parked run accepts
type Engine struct {
	runner core.Runner

	events    core.EventSink
	artifacts core.ArtifactStore
	memories  core.MemoryStore
	runs      core.RunStore
	gate      *artifact.Gate
	pauses    *pause.Controller
	hooks     hookSet
	logger    logging.Logger

	config Config

	active map[string]*runState
	mu     sync.RWMutex
}

// New creates an Engine driving the given agent adapter, with sensible
// defaults and optional configuration.
//
// The engine does not take ownership of provided services and will not
// manage their lifecycle; callers remain responsible for initializing them
// before use.
//
// Example:
//
//	eng := engine.New(runner.NewModelRunner(m),
//	    engine.WithLogger(logger),
//	    engine.WithConfig(engine.Config{SpeakerTimeout: time.Minute}),
//	)
func New(r core.Runner, optFns ...func(o *Options)) *Engine {
	opts := Options{
		Config:        DefaultConfig,
		EventSink:     eventlog.NewInMemoryStore(),
		ArtifactStore: artifact.NewInMemoryStore(),
		MemoryStore:   memory.NewInMemoryStore(),
		RunStore:      runstore.NewInMemoryStore(),
		Gate:          artifact.NewGate(),
		Logger:        logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Config.SpeakerTimeout <= 0 {
		opts.Config.SpeakerTimeout = DefaultConfig.SpeakerTimeout
	}
	if opts.Config.EventBufferSize <= 0 {
		opts.Config.EventBufferSize = DefaultConfig.EventBufferSize
	}
	if opts.Config.RepairAttempts == 0 {
		opts.Config.RepairAttempts = DefaultConfig.RepairAttempts
	} else if opts.Config.RepairAttempts < 0 {
		opts.Config.RepairAttempts = 0
	}

	return &Engine{
		runner:    r,
		events:    opts.EventSink,
		artifacts: opts.ArtifactStore,
		memories:  opts.MemoryStore,
		runs:      opts.RunStore,
		gate:      opts.Gate,
		pauses:    pause.NewController(),
		hooks:     hookSet(opts.Hooks),
		logger:    opts.Logger,
		config:    opts.Config,
		active:    make(map[string]*runState),
	}
}

// Start validates the meeting, creates a run and begins executing it
// asynchronously.
//
// Returns the run ID, a channel streaming every event the run emits (closed
// on completion), a channel carrying at most one terminal error, and an
// immediate error when the run cannot be started at all (invalid
// configuration is *core.ConfigError and nothing is persisted).
//
// Overrides, when non-nil, adjust the meeting for this run only; the stored
// meeting configuration is never mutated.
func (e *Engine) Start(
	ctx context.Context,
	meeting core.Meeting,
	overrides *core.Overrides,
) (string, <-chan core.Event, <-chan error, error) {
	meeting = overrides.Apply(meeting)
	if err := meeting.Validate(); err != nil {
		return "", nil, nil, err
	}

	run := core.NewRun(meeting.ID)
	run.Round = 1
	if err := e.runs.Create(run); err != nil {
		return "", nil, nil, fmt.Errorf("failed to create run: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	st := newRunState(e, meeting, run, cancel)

	e.mu.Lock()
	e.active[run.ID] = st
	e.mu.Unlock()

	go func() {
		defer func() {
			close(st.events)
			close(st.errors)
			e.mu.Lock()
			delete(e.active, run.ID)
			e.mu.Unlock()
		}()
		st.execute(runCtx)
	}()

	return run.ID, st.events, st.errors, nil
}

// Resume validates a resume attempt for a paused run and, on success, wakes
// the run goroutine with the provided answers. The token is single-use:
// after a successful resume it is consumed and a later attempt with the
// same token fails with *core.TokenError.
//
// Required questions must have non-empty answers or the attempt fails with
// *core.ValidationError and the run stays paused with its token intact.
func (e *Engine) Resume(runID, token string, answers map[string]any) error {
	e.mu.RLock()
	st, ok := e.active[runID]
	e.mu.RUnlock()
	if !ok {
		return &core.TokenError{RunID: runID, Reason: "run not active"}
	}

	questions, err := e.pauses.Resume(runID, token, answers)
	if err != nil {
		return err
	}

	select {
	case st.resumeCh <- resumeRequest{answers: answers, questions: questions}:
		return nil
	default:
		return &core.TokenError{RunID: runID, Reason: "run is not awaiting resume"}
	}
}

// Abandon terminates a paused or running run. Any outstanding resume token
// is invalidated and the run transitions to FAILED.
func (e *Engine) Abandon(runID string) error {
	e.mu.RLock()
	st, ok := e.active[runID]
	e.mu.RUnlock()
	if !ok {
		return fmt.Errorf("run %s not found", runID)
	}

	e.pauses.Invalidate(runID)
	st.abandon()
	return nil
}

// Run returns the current status row for a run.
func (e *Engine) Run(runID string) (core.Run, error) {
	return e.runs.Get(runID)
}

// PauseInfo returns the outstanding pause snapshot for a run, if any. The
// snapshot carries the resume token and the pending question set.
func (e *Engine) PauseInfo(runID string) (pause.Snapshot, bool) {
	return e.pauses.Outstanding(runID)
}

// Events returns the full event log recorded for a run so far.
func (e *Engine) Events(runID string) ([]core.Event, error) {
	return e.events.List(runID)
}

// Artifacts returns the artifacts persisted for a run so far.
func (e *Engine) Artifacts(runID string) ([]core.Artifact, error) {
	return e.artifacts.List(runID)
}

// Memories returns the latest private memory snapshot per role.
func (e *Engine) Memories(runID string) (map[string]core.PrivateMemory, error) {
	return e.memories.List(runID)
}
