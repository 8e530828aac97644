package engine

import (
	"time"

	"github.com/conclave-dev/conclave/converge"
	"github.com/conclave-dev/conclave/core"
	"github.com/conclave-dev/conclave/pause"
)

// Hook observes run lifecycle points without modifying execution. Hooks
// provide a clean way to layer monitoring, metrics collection or custom
// bookkeeping on top of the engine without touching its pipeline.
//
// Implementations should be:
//   - Fast: hooks run synchronously on the run goroutine
//   - Safe: handle their own errors and avoid panics
//   - Stateless between runs, or synchronized if shared
//
// BaseHook provides no-op defaults so implementations only override the
// points they care about.
type Hook interface {
	// RunStarted fires once when a run begins executing.
	RunStarted(run core.Run)

	// SpeakerSelected fires when a speaker is scheduled for a turn.
	SpeakerSelected(run core.Run, round int, speaker string)

	// SpeakerDone fires when a speaker turn finishes; err is non-nil for
	// skipped speakers (adapter failure or unrepairable output).
	SpeakerDone(run core.Run, round int, speaker string, dur time.Duration, err error)

	// RoundEnded fires after convergence evaluation for a round.
	RoundEnded(run core.Run, round int, decision converge.Decision)

	// Paused fires when the run suspends awaiting external input.
	Paused(run core.Run, reason pause.Reason, snap pause.Snapshot)

	// Resumed fires after a valid resume was applied.
	Resumed(run core.Run, answers map[string]any)

	// RunEnded fires once when the run reaches a terminal status; err is
	// non-nil for FAILED runs.
	RunEnded(run core.Run, reason string, err error)
}

// BaseHook implements Hook with no-ops for embedding.
type BaseHook struct{}

// RunStarted implements Hook.
func (BaseHook) RunStarted(core.Run) {}

// SpeakerSelected implements Hook.
func (BaseHook) SpeakerSelected(core.Run, int, string) {}

// SpeakerDone implements Hook.
func (BaseHook) SpeakerDone(core.Run, int, string, time.Duration, error) {}

// RoundEnded implements Hook.
func (BaseHook) RoundEnded(core.Run, int, converge.Decision) {}

// Paused implements Hook.
func (BaseHook) Paused(core.Run, pause.Reason, pause.Snapshot) {}

// Resumed implements Hook.
func (BaseHook) Resumed(core.Run, map[string]any) {}

// RunEnded implements Hook.
func (BaseHook) RunEnded(core.Run, string, error) {}

// hookSet fans one lifecycle point out to every registered hook.
type hookSet []Hook

func (hs hookSet) onRunStart(run core.Run) {
	for _, h := range hs {
		h.RunStarted(run)
	}
}

func (hs hookSet) onSpeakerSelected(run core.Run, round int, speaker string) {
	for _, h := range hs {
		h.SpeakerSelected(run, round, speaker)
	}
}

func (hs hookSet) onSpeakerDone(run core.Run, round int, speaker string, dur time.Duration, err error) {
	for _, h := range hs {
		h.SpeakerDone(run, round, speaker, dur, err)
	}
}

func (hs hookSet) onRoundEnd(run core.Run, round int, decision converge.Decision) {
	for _, h := range hs {
		h.RoundEnded(run, round, decision)
	}
}

func (hs hookSet) onPause(run core.Run, reason pause.Reason, snap pause.Snapshot) {
	for _, h := range hs {
		h.Paused(run, reason, snap)
	}
}

func (hs hookSet) onResume(run core.Run, answers map[string]any) {
	for _, h := range hs {
		h.Resumed(run, answers)
	}
}

func (hs hookSet) onRunEnd(run core.Run, reason string, err error) {
	for _, h := range hs {
		h.RunEnded(run, reason, err)
	}
}
