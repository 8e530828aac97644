// Package conclave provides a high-level façade over the core Engine and
// service abstractions (event log, artifacts, memory & logging) enabling
// rapid construction of multi-role deliberation systems. Most applications
// interact with this package by:
//  1. Creating a Conclave via New() with an agent adapter (optionally
//     overriding default in-memory services)
//  2. Starting meeting runs asynchronously (Start) or synchronously
//     (StartSync)
//  3. Resuming or abandoning paused runs as users answer questions
//
// The façade delegates orchestration to engine.Engine while keeping setup
// and usage ergonomics concise. All defaults are safe for local development
// and testing; production deployments typically supply durable store
// implementations and a structured logger.
package conclave

import (
	"context"

	"github.com/conclave-dev/conclave/artifact"
	"github.com/conclave-dev/conclave/core"
	"github.com/conclave-dev/conclave/engine"
	"github.com/conclave-dev/conclave/eventlog"
	"github.com/conclave-dev/conclave/logging"
	"github.com/conclave-dev/conclave/memory"
	"github.com/conclave-dev/conclave/runstore"
)

// Options configures the Conclave instance.
type Options struct {
	// Engine configuration (speaker timeouts, buffers, repair attempts)
	EngineConfig engine.Config

	// Stores (defaults to in-memory implementations if not provided)
	EventSink     core.EventSink
	ArtifactStore core.ArtifactStore
	MemoryStore   core.MemoryStore
	RunStore      core.RunStore

	// Gate validates artifacts; override to register custom schemas.
	Gate *artifact.Gate

	// Hooks observe run lifecycle points.
	Hooks []engine.Hook

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// Conclave is the high-level façade aggregating the underlying engine and
// services.
type Conclave struct {
	opts   Options
	engine *engine.Engine
}

// New creates a new Conclave instance driving the given agent adapter. Any
// unset service is initialized with an in-memory implementation.
func New(r core.Runner, optFns ...func(o *Options)) *Conclave {
	opts := Options{
		EngineConfig:  engine.DefaultConfig,
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

	eng := engine.New(r,
		engine.WithConfig(opts.EngineConfig),
		engine.WithEventSink(opts.EventSink),
		engine.WithArtifactStore(opts.ArtifactStore),
		engine.WithMemoryStore(opts.MemoryStore),
		engine.WithRunStore(opts.RunStore),
		engine.WithGate(opts.Gate),
		engine.WithHooks(opts.Hooks...),
		engine.WithLogger(opts.Logger),
	)

	return &Conclave{opts: opts, engine: eng}
}

// Engine exposes the underlying engine for callers needing direct access.
func (c *Conclave) Engine() *engine.Engine { return c.engine }

// Start begins an asynchronous meeting run returning the run ID plus event
// and error channels.
func (c *Conclave) Start(
	ctx context.Context,
	meeting core.Meeting,
	overrides *core.Overrides,
) (string, <-chan core.Event, <-chan error, error) {
	return c.engine.Start(ctx, meeting, overrides)
}

// StartSync is a synchronous helper that drains the async channels,
// accumulates events and returns the run ID. A paused run stays parked
// until Resume or Abandon is called from another goroutine, so StartSync is
// only suitable for meetings that cannot pause or for callers resuming from
// a hook.
func (c *Conclave) StartSync(
	ctx context.Context,
	meeting core.Meeting,
	overrides *core.Overrides,
) (string, []core.Event, error) {
	runID, eventsCh, errorsCh, err := c.engine.Start(ctx, meeting, overrides)
	if err != nil {
		return "", nil, err
	}

	// Collect all events until completion
	var events []core.Event
	for {
		select {
		case <-ctx.Done():
			// Context cancelled - return events collected so far
			return runID, events, ctx.Err()

		case event, ok := <-eventsCh:
			if !ok {
				// Events channel closed - check for terminal error
				select {
				case err := <-errorsCh:
					return runID, events, err
				default:
					return runID, events, nil // Successful completion
				}
			}
			// Collect event
			events = append(events, event)

		case err := <-errorsCh:
			// Terminal error occurred
			if err != nil {
				return runID, events, err
			}
		}
	}
}

// Resume wakes a paused run with answers to its pending questions.
func (c *Conclave) Resume(runID, token string, answers map[string]any) error {
	return c.engine.Resume(runID, token, answers)
}

// Abandon terminates a paused run as FAILED and invalidates its token.
func (c *Conclave) Abandon(runID string) error {
	return c.engine.Abandon(runID)
}

// Run returns the current status row for a run.
func (c *Conclave) Run(runID string) (core.Run, error) {
	return c.engine.Run(runID)
}

// Artifacts returns the validated artifacts stored for a run.
func (c *Conclave) Artifacts(runID string) ([]core.Artifact, error) {
	return c.engine.Artifacts(runID)
}
