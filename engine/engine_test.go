package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conclave-dev/conclave/converge"
	"github.com/conclave-dev/conclave/core"
	"github.com/conclave-dev/conclave/pause"
	"github.com/conclave-dev/conclave/runner"
)

func roleJSON(decision string) string {
	return fmt.Sprintf(`{
  "assumptions": ["a"],
  "proposal": "proposal",
  "tradeoffs": ["t"],
  "risks": [],
  "questions": [],
  "decision_recommendation": %q
}`, decision)
}

func blockingJSON(decision, key, ask string) string {
	return fmt.Sprintf(`{
  "assumptions": ["a"],
  "proposal": "proposal",
  "tradeoffs": ["t"],
  "risks": [],
  "questions": [],
  "decision_recommendation": %q,
  "blocking_questions": [{"key": %q, "ask": %q, "required": true}]
}`, decision, key, ask)
}

const summaryJSON = `{
  "summary": "the round in brief",
  "open_questions": [],
  "decisions": ["adopt the proposal"],
  "risks": [],
  "next_steps": ["write it up"]
}`

const bundleJSON = `{
  "ADR": {
    "context": "why we met",
    "decision": "adopt the proposal",
    "alternatives_considered": ["do nothing"],
    "consequences": ["work to do"],
    "risks_summary": ["low"],
    "open_questions": [],
    "next_steps": ["ship"]
  },
  "TASKS": {"tasks": [{
    "task_id": "T1", "title": "ship it", "owner_role": "architect",
    "priority": "high", "estimate": "2d", "dependencies": []
  }]},
  "RISKS": {"risks": [{
    "risk": "scope creep", "impact": "delay", "probability": "medium",
    "mitigation": "timebox", "verification": "review", "owner_role": "pragmatist"
  }]}
}`

func testMeeting() core.Meeting {
	return core.Meeting{
		ID:        "meeting-1",
		Topic:     "cache eviction strategy",
		MaxRounds: 3,
		Roles: []core.RoleDescriptor{
			{Name: "architect", Instructions: "Own the design."},
			{Name: "pragmatist", Instructions: "Challenge complexity."},
			{Name: "recorder", Recorder: true},
		},
		ContextMode: core.ContextShared,
		Termination: core.Termination{MinRounds: 1},
	}
}

// drain collects events until the stream closes or the timeout fires.
func drain(t *testing.T, events <-chan core.Event) []core.Event {
	t.Helper()
	var collected []core.Event
	timeout := time.After(10 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return collected
			}
			collected = append(collected, ev)
		case <-timeout:
			t.Fatalf("run did not finish; %d events so far", len(collected))
		}
	}
}

func eventsOfType(events []core.Event, t core.EventType) []core.Event {
	var out []core.Event
	for _, ev := range events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func happyScript() *runner.ScriptRunner {
	return runner.NewScriptRunner().
		Script("architect", roleJSON("adopt the proposal")).
		Script("pragmatist", roleJSON("adopt the proposal")).
		Script("recorder", summaryJSON, bundleJSON)
}

func TestRunConvergesAndProducesArtifacts(t *testing.T) {
	eng := New(happyScript())

	runID, events, errs, err := eng.Start(context.Background(), testMeeting(), nil)
	require.NoError(t, err)

	collected := drain(t, events)
	require.NoError(t, <-errs)

	run, err := eng.Run(runID)
	require.NoError(t, err)
	assert.Equal(t, core.RunStatusDone, run.Status)
	assert.Equal(t, 1, run.Round)

	finished := eventsOfType(collected, core.EventFinished)
	require.Len(t, finished, 1)
	assert.Equal(t, string(core.RunStatusDone), finished[0].Payload["status"])
	assert.Equal(t, string(converge.StopThresholds), finished[0].Payload["reason"])

	arts, err := eng.Artifacts(runID)
	require.NoError(t, err)
	types := make(map[core.ArtifactType]bool)
	for _, a := range arts {
		types[a.Type] = true
	}
	for _, required := range core.RequiredArtifacts {
		assert.True(t, types[required], "missing artifact %s", required)
	}
	assert.True(t, types[core.ArtifactFlowchart])
	assert.True(t, types[core.ArtifactMinutes])
}

func TestEventSequenceIsGaplessFromOne(t *testing.T) {
	eng := New(happyScript())

	runID, events, errs, err := eng.Start(context.Background(), testMeeting(), nil)
	require.NoError(t, err)
	collected := drain(t, events)
	require.NoError(t, <-errs)

	for i, ev := range collected {
		assert.Equal(t, uint64(i+1), ev.Seq, "event %d out of sequence", i)
		assert.Equal(t, runID, ev.RunID)
	}

	// The persisted log must match what was streamed.
	logged, err := eng.Events(runID)
	require.NoError(t, err)
	require.Len(t, logged, len(collected))
}

func TestInvalidConfigurationRejectedBeforeStart(t *testing.T) {
	eng := New(happyScript())

	m := testMeeting()
	m.Roles = m.Roles[:2] // no recorder

	_, _, _, err := eng.Start(context.Background(), m, nil)
	var cfgErr *core.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "roles", cfgErr.Field)
}

func TestRoundCapStopsExactlyAtLimit(t *testing.T) {
	script := runner.NewScriptRunner().
		Script("architect", roleJSON("plan a1"), roleJSON("plan a2"), roleJSON("plan a3")).
		Script("pragmatist", roleJSON("plan b1"), roleJSON("plan b2"), roleJSON("plan b3")).
		Script("recorder", summaryJSON, summaryJSON, summaryJSON, bundleJSON)

	eng := New(script)
	runID, events, errs, err := eng.Start(context.Background(), testMeeting(), nil)
	require.NoError(t, err)

	collected := drain(t, events)
	require.NoError(t, <-errs)

	rounds := eventsOfType(collected, core.EventRoundStarted)
	assert.Len(t, rounds, 3)

	finished := eventsOfType(collected, core.EventFinished)
	require.Len(t, finished, 1)
	assert.Equal(t, string(converge.StopRoundCap), finished[0].Payload["reason"])

	run, err := eng.Run(runID)
	require.NoError(t, err)
	assert.Equal(t, core.RunStatusDone, run.Status)
	assert.Equal(t, 3, run.Round)
}

func TestBlockingQuestionPausesAndResumeReentersRound(t *testing.T) {
	script := runner.NewScriptRunner().
		Script("architect", blockingJSON("adopt the proposal", "qps_peak", "What is peak QPS?")).
		Script("pragmatist", roleJSON("adopt the proposal")).
		Script("recorder", summaryJSON, bundleJSON)

	eng := New(script)
	runID, events, errs, err := eng.Start(context.Background(), testMeeting(), nil)
	require.NoError(t, err)

	// Read until the pause event surfaces.
	var paused bool
	var collected []core.Event
	timeout := time.After(10 * time.Second)
	for !paused {
		select {
		case ev := <-events:
			collected = append(collected, ev)
			paused = ev.Type == core.EventPause
		case <-timeout:
			t.Fatal("run never paused")
		}
	}

	run, err := eng.Run(runID)
	require.NoError(t, err)
	assert.Equal(t, core.RunStatusPaused, run.Status)
	assert.Equal(t, 1, run.Round)

	snap, ok := eng.PauseInfo(runID)
	require.True(t, ok)
	assert.Equal(t, pause.ReasonMissingInfo, snap.Reason)
	require.Len(t, snap.Questions, 1)
	assert.Equal(t, "qps_peak", snap.Questions[0].Key)
	assert.Equal(t, "architect", snap.Questions[0].Role)

	// A stale token is rejected.
	var tokenErr *core.TokenError
	err = eng.Resume(runID, "resume-bogus", map[string]any{"qps_peak": 1000})
	require.ErrorAs(t, err, &tokenErr)

	// A missing required answer is rejected and the token stays valid.
	var valErr *core.ValidationError
	err = eng.Resume(runID, snap.Token, map[string]any{})
	require.ErrorAs(t, err, &valErr)

	require.NoError(t, eng.Resume(runID, snap.Token, map[string]any{"qps_peak": 1000}))

	collected = append(collected, drain(t, events)...)
	require.NoError(t, <-errs)

	resumes := eventsOfType(collected, core.EventResume)
	require.Len(t, resumes, 1)
	assert.Equal(t, 1, resumes[0].Payload["round"])

	run, err = eng.Run(runID)
	require.NoError(t, err)
	assert.Equal(t, core.RunStatusDone, run.Status)

	// The consumed token cannot be replayed.
	_, ok = eng.PauseInfo(runID)
	assert.False(t, ok)
}

func TestBudgetBreachPausesThenRaisedBudgetCompletes(t *testing.T) {
	m := testMeeting()
	m.MaxModelCalls = 2 // enough for the two discussion roles only

	eng := New(happyScript())
	runID, events, errs, err := eng.Start(context.Background(), m, nil)
	require.NoError(t, err)

	var snap pause.Snapshot
	timeout := time.After(10 * time.Second)
	var collected []core.Event
	for snap.Token == "" {
		select {
		case ev := <-events:
			collected = append(collected, ev)
			if ev.Type == core.EventPause {
				assert.Equal(t, string(pause.ReasonBudget), ev.Payload["reason"])
				var ok bool
				snap, ok = eng.PauseInfo(runID)
				require.True(t, ok)
			}
		case <-timeout:
			t.Fatal("run never paused on budget")
		}
	}

	require.NoError(t, eng.Resume(runID, snap.Token, map[string]any{"additional_calls": 10}))

	drain(t, events)
	require.NoError(t, <-errs)

	run, err := eng.Run(runID)
	require.NoError(t, err)
	assert.Equal(t, core.RunStatusDone, run.Status)
}

func TestUnrepairableBundleFailsWithFatalArtifact(t *testing.T) {
	badBundle := `{"ADR": {"context": "x"}, "TASKS": {"tasks": []}, "RISKS": {"risks": []}}`
	script := runner.NewScriptRunner().
		Script("architect", roleJSON("adopt the proposal")).
		Script("pragmatist", roleJSON("adopt the proposal")).
		Script("recorder", summaryJSON, badBundle, badBundle)

	eng := New(script)
	runID, events, errs, err := eng.Start(context.Background(), testMeeting(), nil)
	require.NoError(t, err)

	collected := drain(t, events)
	terr := <-errs
	require.Error(t, terr)
	var valErr *core.ValidationError
	assert.ErrorAs(t, terr, &valErr)

	gateErrors := eventsOfType(collected, core.EventError)
	require.NotEmpty(t, gateErrors)
	last := gateErrors[len(gateErrors)-1]
	assert.Equal(t, core.FatalArtifact, last.Payload["code"])

	run, err := eng.Run(runID)
	require.NoError(t, err)
	assert.Equal(t, core.RunStatusFailed, run.Status)
}

func TestAllSpeakersFailingFailsTheRun(t *testing.T) {
	script := runner.NewScriptRunner().
		FailFirst("architect", 2).
		FailFirst("pragmatist", 2)

	eng := New(script)
	runID, events, errs, err := eng.Start(context.Background(), testMeeting(), nil)
	require.NoError(t, err)

	drain(t, events)
	terr := <-errs
	require.Error(t, terr)
	assert.Contains(t, terr.Error(), "all speakers failed")

	run, err := eng.Run(runID)
	require.NoError(t, err)
	assert.Equal(t, core.RunStatusFailed, run.Status)
}

func TestOneSpeakerFailureIsRetriedThenSkipped(t *testing.T) {
	script := runner.NewScriptRunner().
		Script("architect", roleJSON("adopt the proposal")).
		FailFirst("pragmatist", 2). // both attempts fail, speaker is skipped
		Script("pragmatist", roleJSON("ignored")).
		Script("recorder", summaryJSON, bundleJSON)

	eng := New(script)
	runID, events, errs, err := eng.Start(context.Background(), testMeeting(), nil)
	require.NoError(t, err)

	collected := drain(t, events)
	require.NoError(t, <-errs)

	run, err := eng.Run(runID)
	require.NoError(t, err)
	assert.Equal(t, core.RunStatusDone, run.Status)

	// The skipped speaker's failures are on the record.
	adapterErrors := eventsOfType(collected, core.EventError)
	assert.Len(t, adapterErrors, 2)
	for _, ev := range adapterErrors {
		assert.Equal(t, "pragmatist", ev.Actor)
	}
}

func TestParallelModeWritesConsensusArtifact(t *testing.T) {
	m := testMeeting()
	m.Parallel = core.Parallelism{Enabled: true, Limit: 2}

	eng := New(happyScript())
	runID, events, errs, err := eng.Start(context.Background(), m, nil)
	require.NoError(t, err)

	collected := drain(t, events)
	require.NoError(t, <-errs)

	arts, err := eng.Artifacts(runID)
	require.NoError(t, err)
	var consensus *core.Artifact
	for i := range arts {
		if arts[i].Type == core.ArtifactConsensus {
			consensus = &arts[i]
		}
	}
	require.NotNil(t, consensus)
	assert.Equal(t, "adopt the proposal", consensus.Content["winner"])

	metrics := eventsOfType(collected, core.EventMetric)
	require.NotEmpty(t, metrics)
	assert.Contains(t, metrics[0].Payload, "consensus_score")
}

func TestAbandonWhilePausedFailsRun(t *testing.T) {
	m := testMeeting()
	m.PauseOnRound = 1
	m.MaxRounds = 2

	eng := New(happyScript())
	runID, events, errs, err := eng.Start(context.Background(), m, nil)
	require.NoError(t, err)

	timeout := time.After(10 * time.Second)
	for paused := false; !paused; {
		select {
		case ev := <-events:
			paused = ev.Type == core.EventPause
		case <-timeout:
			t.Fatal("run never paused")
		}
	}

	require.NoError(t, eng.Abandon(runID))
	drain(t, events)
	terr := <-errs
	require.Error(t, terr)
	assert.Contains(t, terr.Error(), "abandoned")

	run, err := eng.Run(runID)
	require.NoError(t, err)
	assert.Equal(t, core.RunStatusFailed, run.Status)

	// The invalidated token can no longer resume anything.
	_, ok := eng.PauseInfo(runID)
	assert.False(t, ok)
}

func TestHooksObserveLifecycle(t *testing.T) {
	h := &countingHook{}
	eng := New(happyScript(), WithHooks(h))

	_, events, errs, err := eng.Start(context.Background(), testMeeting(), nil)
	require.NoError(t, err)
	drain(t, events)
	require.NoError(t, <-errs)

	assert.Equal(t, 1, h.started)
	assert.Equal(t, 1, h.ended)
	assert.GreaterOrEqual(t, h.speakers, 2)
	assert.Equal(t, 1, h.rounds)
}

type countingHook struct {
	BaseHook
	started, ended, speakers, rounds int
}

func (h *countingHook) RunStarted(core.Run) { h.started++ }
func (h *countingHook) SpeakerDone(_ core.Run, _ int, _ string, _ time.Duration, _ error) {
	h.speakers++
}
func (h *countingHook) RoundEnded(_ core.Run, _ int, _ converge.Decision) { h.rounds++ }
func (h *countingHook) RunEnded(_ core.Run, _ string, _ error)            { h.ended++ }

// unreachableRunner fails one speaker at the call boundary, before any
// stream exists, and delegates everyone else.
type unreachableRunner struct {
	inner   core.Runner
	speaker string
}

func (r *unreachableRunner) Run(ctx context.Context, ec core.ExecutionContext) (<-chan core.Event, error) {
	if ec.Speaker == r.speaker {
		return nil, errors.New("dial tcp: connection refused")
	}
	return r.inner.Run(ctx, ec)
}

func TestCallBoundaryFailureIsOnTheRecord(t *testing.T) {
	script := runner.NewScriptRunner().
		Script("architect", roleJSON("adopt the proposal")).
		Script("recorder", summaryJSON, bundleJSON)
	eng := New(&unreachableRunner{inner: script, speaker: "pragmatist"})

	runID, events, errs, err := eng.Start(context.Background(), testMeeting(), nil)
	require.NoError(t, err)

	collected := drain(t, events)
	require.NoError(t, <-errs)

	run, err := eng.Run(runID)
	require.NoError(t, err)
	assert.Equal(t, core.RunStatusDone, run.Status)

	// A speaker failing before its stream opens still leaves an error
	// event behind.
	errorEvents := eventsOfType(collected, core.EventError)
	require.Len(t, errorEvents, 1)
	assert.Equal(t, "pragmatist", errorEvents[0].Actor)
	assert.Equal(t, "speaker_invocation", errorEvents[0].Payload["stage"])
	assert.Contains(t, errorEvents[0].Payload["message"], "connection refused")
}

func TestPartialConfigKeepsRepairTurn(t *testing.T) {
	script := runner.NewScriptRunner().
		Script("architect", "not json at all", roleJSON("adopt the proposal")).
		Script("pragmatist", roleJSON("adopt the proposal")).
		Script("recorder", summaryJSON, bundleJSON)
	eng := New(script, WithConfig(Config{SpeakerTimeout: time.Minute}))

	runID, events, errs, err := eng.Start(context.Background(), testMeeting(), nil)
	require.NoError(t, err)

	collected := drain(t, events)
	require.NoError(t, <-errs)

	run, err := eng.Run(runID)
	require.NoError(t, err)
	assert.Equal(t, core.RunStatusDone, run.Status)

	// The repair turn consumed the second scripted response, so the
	// invalid first output never surfaced as a validation failure.
	assert.Empty(t, eventsOfType(collected, core.EventError))
}

func TestNegativeRepairAttemptsDisablesRepair(t *testing.T) {
	script := runner.NewScriptRunner().
		Script("architect", "not json at all", roleJSON("ignored")).
		Script("pragmatist", roleJSON("adopt the proposal")).
		Script("recorder", summaryJSON, bundleJSON)
	eng := New(script, WithConfig(Config{RepairAttempts: -1}))

	runID, events, errs, err := eng.Start(context.Background(), testMeeting(), nil)
	require.NoError(t, err)

	collected := drain(t, events)
	require.NoError(t, <-errs)

	run, err := eng.Run(runID)
	require.NoError(t, err)
	assert.Equal(t, core.RunStatusDone, run.Status)

	errorEvents := eventsOfType(collected, core.EventError)
	require.NotEmpty(t, errorEvents)
	assert.Equal(t, "architect", errorEvents[0].Actor)
	assert.Equal(t, "output_validation", errorEvents[0].Payload["stage"])
}

func TestRunOpensWithTaskBriefing(t *testing.T) {
	eng := New(happyScript())

	_, events, errs, err := eng.Start(context.Background(), testMeeting(), nil)
	require.NoError(t, err)

	collected := drain(t, events)
	require.NoError(t, <-errs)

	require.NotEmpty(t, collected)
	first := collected[0]
	assert.Equal(t, core.EventAgentMessage, first.Type)
	assert.Equal(t, "user", first.Actor)
	msg, ok := first.AgentMessage()
	require.True(t, ok)
	assert.Equal(t, core.RoleUser, msg.Role)
	assert.Contains(t, msg.Content, "cache eviction strategy")
}

// recordingLogger counts the structured records the engine hands to loggers
// that offer the richer surface.
type recordingLogger struct {
	mu     sync.Mutex
	turns  int
	rounds int
}

func (l *recordingLogger) Debug(string, ...any) {}
func (l *recordingLogger) Info(string, ...any)  {}
func (l *recordingLogger) Warn(string, ...any)  {}
func (l *recordingLogger) Error(string, ...any) {}

func (l *recordingLogger) LogSpeakerTurn(string, time.Duration, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.turns++
}

func (l *recordingLogger) LogRoundOutcome(int, int, time.Duration, bool, string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rounds++
}

func TestStructuredLoggerReceivesTurnAndRoundRecords(t *testing.T) {
	rec := &recordingLogger{}
	eng := New(happyScript(), WithLogger(rec))

	_, events, errs, err := eng.Start(context.Background(), testMeeting(), nil)
	require.NoError(t, err)
	drain(t, events)
	require.NoError(t, <-errs)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, 2, rec.turns)
	assert.Equal(t, 1, rec.rounds)
}
