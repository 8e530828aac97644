package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/conclave-dev/conclave/artifact"
	"github.com/conclave-dev/conclave/briefing"
	"github.com/conclave-dev/conclave/converge"
	"github.com/conclave-dev/conclave/core"
	"github.com/conclave-dev/conclave/logging"
	"github.com/conclave-dev/conclave/output"
	"github.com/conclave-dev/conclave/pause"
	"github.com/conclave-dev/conclave/schedule"
)

// errBudget signals that a speaker turn could not start because the run's
// model call ceiling was breached. It triggers a pause, never a failure.
var errBudget = errors.New("model call budget exceeded")

// streamedError wraps an adapter failure whose error event already came
// through the adapter stream. The engine must not append a second one.
type streamedError struct {
	err error
}

func (e *streamedError) Error() string { return e.err.Error() }
func (e *streamedError) Unwrap() error { return e.err }

// turnLogger is the structured per-turn surface a logger may offer beyond
// the basic Logger contract. The engine checks for it at run time and
// falls back to plain messages when it is absent.
type turnLogger interface {
	LogSpeakerTurn(speaker string, dur time.Duration, success bool, err error)
	LogRoundOutcome(round, speakers int, dur time.Duration, stop bool, reason string)
}

// resumeRequest carries validated resume input into a parked run goroutine.
type resumeRequest struct {
	answers   map[string]any
	questions []pause.Question
}

// turnResult is the outcome of one speaker turn within a round.
type turnResult struct {
	speaker string
	msg     core.Message
	out     output.RoleOutput
	err     error
}

// runState is the complete mutable state of one executing run. The run's
// goroutine is its only writer; emission is serialized through emitMu so
// parallel bursts still produce a gapless sequence.
type runState struct {
	engine  *Engine
	meeting core.Meeting
	run     core.Run
	cancel  context.CancelFunc

	seq    *core.Sequencer
	emitMu sync.Mutex

	events    chan core.Event
	errors    chan error
	resumeCh  chan resumeRequest
	abandonCh chan struct{}
	abandon1  sync.Once

	builder *briefing.Builder
	policy  schedule.Policy
	eval    *converge.Evaluator
	budget  *core.Budget

	history   []core.Message
	summaries []output.RoundSummary
	latest    map[string]output.RoleOutput
	previous  map[string]string
	memories  map[string]*core.PrivateMemory
	userInput core.Message
}

func newRunState(e *Engine, meeting core.Meeting, run core.Run, cancel context.CancelFunc) *runState {
	return &runState{
		engine:    e,
		meeting:   meeting,
		run:       run,
		cancel:    cancel,
		seq:       &core.Sequencer{},
		events:    make(chan core.Event, e.config.EventBufferSize),
		errors:    make(chan error, 1),
		resumeCh:  make(chan resumeRequest, 1),
		abandonCh: make(chan struct{}),
		builder:   briefing.NewBuilder(meeting),
		policy:    schedule.ForMeeting(meeting),
		eval:      converge.NewEvaluator(meeting.MaxRounds, meeting.Termination),
		budget:    core.NewBudget(meeting.MaxModelCalls),
		latest:    make(map[string]output.RoleOutput),
		memories:  make(map[string]*core.PrivateMemory),
	}
}

func (st *runState) abandon() {
	st.abandon1.Do(func() { close(st.abandonCh) })
}

// emit stamps the event with the next sequence position, persists it and
// forwards it to the client stream. Safe for concurrent use during
// parallel bursts; stamping and appending happen atomically so the log
// never observes out-of-order positions.
func (st *runState) emit(ctx context.Context, ev core.Event) {
	st.emitMu.Lock()
	ev.Seq = st.seq.Next()
	if err := st.engine.events.Append(ev); err != nil {
		st.engine.logger.Error("event append failed run_id=%s seq=%d: %v", st.run.ID, ev.Seq, err)
	}
	st.emitMu.Unlock()

	select {
	case <-ctx.Done():
	case st.events <- ev:
	}
}

// execute drives the run from intake to a terminal state.
func (st *runState) execute(ctx context.Context) {
	defer st.cancel()

	logger := st.engine.logger
	if cl, ok := logger.(*logging.ConclaveLogger); ok {
		logger = cl.WithRun(st.run.ID, 0)
	}
	logger.Info("run started run_id=%s meeting_id=%s rounds_max=%d mode=%s",
		st.run.ID, st.meeting.ID, st.meeting.MaxRounds, st.meeting.ContextMode)
	st.engine.hooks.onRunStart(st.run)

	// The task briefing opens the record. Speakers receive it through
	// their execution context, so it stays out of st.history.
	st.emit(ctx, core.NewAgentMessageEvent(st.run.ID, "user", core.NewUserMessage(st.meeting.UserTask())))

	for round := st.run.Round; ; {
		started := time.Now()
		st.emit(ctx, core.NewEvent(core.EventRoundStarted, st.run.ID, "system", map[string]any{"round": round}))

		results, ok := st.playRound(ctx, round)
		if !ok {
			return
		}

		if qs := blockingQuestions(results); len(qs) > 0 {
			if !st.pauseAndWait(ctx, pause.ReasonMissingInfo, qs) {
				return
			}
		}
		if st.meeting.PauseOnRound == round {
			if !st.pauseAndWait(ctx, pause.ReasonApproval, approvalQuestions(round)) {
				return
			}
		}

		stats := st.roundStats(ctx, round, results)
		st.emit(ctx, core.NewMetricEvent(st.run.ID, stats.MetricPayload()))

		decision := st.eval.Evaluate(stats)
		if tl, ok := logger.(turnLogger); ok {
			tl.LogRoundOutcome(round, len(results), time.Since(started), decision.Stop, string(decision.Reason))
		} else {
			logger.Info("round evaluated run_id=%s round=%d stop=%t reason=%s duration=%s",
				st.run.ID, round, decision.Stop, decision.Reason, time.Since(started))
		}
		st.engine.hooks.onRoundEnd(st.run, round, decision)

		if decision.Stop {
			st.finalize(ctx, round, decision.Reason)
			return
		}

		round++
		st.run.Round = round
		if err := st.engine.runs.Update(st.run); err != nil {
			st.fail(ctx, "run_store", err)
			return
		}
	}
}

// playRound runs every scheduled speaker for the round and applies the
// surviving results to run state. Returns false when the run has reached a
// terminal state.
func (st *runState) playRound(ctx context.Context, round int) (map[string]turnResult, bool) {
	plan := st.policy.Plan(st.meeting.Roles, round)

	var discussion []core.RoleDescriptor
	for _, desc := range plan {
		if !desc.Recorder {
			discussion = append(discussion, desc)
		}
	}

	var results []turnResult
	if st.meeting.Parallel.Enabled {
		results = st.burst(ctx, round, discussion)
	} else {
		for _, desc := range discussion {
			results = append(results, st.speakerTurn(ctx, round, desc))
		}
	}

	// Budget breaches pause the run; resumed speakers get one more try in
	// the same round.
	var kept []turnResult
	var deferred []core.RoleDescriptor
	for _, res := range results {
		if errors.Is(res.err, errBudget) {
			desc, _ := st.meeting.Role(res.speaker)
			deferred = append(deferred, desc)
			continue
		}
		kept = append(kept, res)
	}
	if len(deferred) > 0 {
		if !st.pauseAndWait(ctx, pause.ReasonBudget, budgetQuestions(st.budget.Count())) {
			return nil, false
		}
		for _, desc := range deferred {
			res := st.speakerTurn(ctx, round, desc)
			if errors.Is(res.err, errBudget) {
				res.err = &core.AdapterError{Speaker: desc.Name, Round: round, Err: errBudget}
			}
			kept = append(kept, res)
		}
	}

	succeeded := make(map[string]turnResult)
	for _, res := range kept {
		if res.err != nil {
			continue
		}
		succeeded[res.speaker] = res
	}
	if len(succeeded) == 0 {
		st.fail(ctx, "round", fmt.Errorf("all speakers failed in round %d", round))
		return nil, false
	}

	// Apply in roster order so transcript ordering is deterministic even
	// after a parallel burst.
	for _, desc := range discussion {
		res, ok := succeeded[desc.Name]
		if !ok {
			continue
		}
		st.history = append(st.history, res.msg)
		st.latest[desc.Name] = res.out
		if st.meeting.ContextMode == core.ContextLayered {
			mem := st.memories[desc.Name]
			if mem == nil {
				mem = &core.PrivateMemory{}
				st.memories[desc.Name] = mem
			}
			briefing.MergeMemory(mem, res.out, st.meeting.MemoryMaxItems)
			if err := st.engine.memories.Put(st.run.ID, desc.Name, *mem); err != nil {
				st.engine.logger.Warn("memory snapshot failed run_id=%s role=%s: %v", st.run.ID, desc.Name, err)
			}
		}
	}

	// The recorder closes the round with a summary. In parallel mode it is
	// never part of the burst; it runs here, after the outputs land.
	if recorder, ok := st.meeting.Recorder(); ok {
		if err := st.recordSummary(ctx, round, recorder); err != nil {
			if errors.Is(err, errBudget) {
				if !st.pauseAndWait(ctx, pause.ReasonBudget, budgetQuestions(st.budget.Count())) {
					return nil, false
				}
				err = st.recordSummary(ctx, round, recorder)
			}
			if err != nil {
				// A missing summary degrades layered context but does not
				// end the meeting.
				st.engine.logger.Warn("round summary failed run_id=%s round=%d: %v", st.run.ID, round, err)
			}
		}
	}

	return succeeded, true
}

// burst executes the scheduled speakers concurrently, bounded by the
// policy's concurrency limit.
func (st *runState) burst(ctx context.Context, round int, speakers []core.RoleDescriptor) []turnResult {
	limit := len(speakers)
	if c, ok := st.policy.(schedule.Concurrency); ok && c.Limit() > 0 && c.Limit() < limit {
		limit = c.Limit()
	}
	if limit < 1 {
		limit = 1
	}

	sem := make(chan struct{}, limit)
	results := make([]turnResult, len(speakers))
	var wg sync.WaitGroup
	for i, desc := range speakers {
		wg.Add(1)
		go func(i int, desc core.RoleDescriptor) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = st.speakerTurn(ctx, round, desc)
		}(i, desc)
	}
	wg.Wait()
	return results
}

// logTurn records the turn outcome through the richer logger surface when
// one is configured.
func (st *runState) logTurn(speaker string, dur time.Duration, err error) {
	if tl, ok := st.engine.logger.(turnLogger); ok {
		tl.LogSpeakerTurn(speaker, dur, err == nil, err)
	}
}

// speakerTurn runs one discussion speaker: context assembly, invocation
// with retry, output validation with a single repair attempt.
func (st *runState) speakerTurn(ctx context.Context, round int, desc core.RoleDescriptor) turnResult {
	res := turnResult{speaker: desc.Name}

	ec := st.executionContext(round, desc)
	st.emit(ctx, core.NewEvent(core.EventSpeakerSelected, st.run.ID, "system", map[string]any{
		"speaker": desc.Name,
		"round":   round,
	}))
	st.engine.hooks.onSpeakerSelected(st.run, round, desc.Name)

	start := time.Now()
	msg, err := st.invoke(ctx, ec)
	if err != nil {
		var streamed *streamedError
		if !errors.Is(err, errBudget) && !errors.As(err, &streamed) {
			st.emit(ctx, core.NewErrorEvent(st.run.ID, desc.Name, "speaker_invocation", err))
		}
		res.err = err
		st.logTurn(desc.Name, time.Since(start), err)
		st.engine.hooks.onSpeakerDone(st.run, round, desc.Name, time.Since(start), err)
		return res
	}

	out, perr := output.ParseRoleOutput(msg.Content)
	if perr != nil {
		msg, out, perr = st.repairRoleOutput(ctx, ec, msg, perr)
	}
	if perr != nil {
		st.emit(ctx, core.NewErrorEvent(st.run.ID, desc.Name, "output_validation", perr))
		res.err = perr
		st.logTurn(desc.Name, time.Since(start), perr)
		st.engine.hooks.onSpeakerDone(st.run, round, desc.Name, time.Since(start), perr)
		return res
	}

	res.msg = msg
	res.out = out
	st.logTurn(desc.Name, time.Since(start), nil)
	st.engine.hooks.onSpeakerDone(st.run, round, desc.Name, time.Since(start), nil)
	return res
}

// repairRoleOutput gives the speaker one corrective turn after a schema
// validation failure.
func (st *runState) repairRoleOutput(
	ctx context.Context,
	ec core.ExecutionContext,
	bad core.Message,
	cause error,
) (core.Message, output.RoleOutput, error) {
	var out output.RoleOutput
	for attempt := 0; attempt < st.engine.config.RepairAttempts; attempt++ {
		msg, err := st.invoke(ctx, repairContext(ec, bad.Content, cause))
		if err != nil {
			return bad, out, cause
		}
		out, err = output.ParseRoleOutput(msg.Content)
		if err == nil {
			return msg, out, nil
		}
		bad, cause = msg, err
	}
	return bad, out, cause
}

// executionContext assembles the speaker's input package per context mode.
func (st *runState) executionContext(round int, desc core.RoleDescriptor) core.ExecutionContext {
	if st.meeting.ContextMode == core.ContextLayered {
		return st.builder.Layered(st.run.ID, round, desc, st.userInput, st.summaries, st.latest, st.memories[desc.Name])
	}
	return st.builder.Shared(st.run.ID, round, desc, st.history)
}

// invoke drives one adapter call with a per-call timeout and a single
// transparent retry on adapter failure. Every attempt spends budget.
func (st *runState) invoke(ctx context.Context, ec core.ExecutionContext) (core.Message, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if err := st.budget.Spend(); err != nil {
			return core.Message{}, errBudget
		}
		msg, err := st.invokeOnce(ctx, ec)
		if err == nil {
			return msg, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		st.engine.logger.Warn("speaker invocation failed run_id=%s speaker=%s attempt=%d: %v",
			st.run.ID, ec.Speaker, attempt+1, err)
	}
	return core.Message{}, lastErr
}

// invokeOnce consumes one adapter event stream: tokens are forwarded, the
// terminal event decides the outcome.
func (st *runState) invokeOnce(ctx context.Context, ec core.ExecutionContext) (core.Message, error) {
	callCtx, cancel := context.WithTimeout(ctx, st.engine.config.SpeakerTimeout)
	defer cancel()

	stream, err := st.engine.runner.Run(callCtx, ec)
	if err != nil {
		return core.Message{}, &core.AdapterError{Speaker: ec.Speaker, Round: ec.Round, Err: err}
	}

	var final core.Message
	var failure error
	got := false
	for ev := range stream {
		switch ev.Type {
		case core.EventToken:
			st.emit(ctx, ev)
		case core.EventAgentMessage:
			st.emit(ctx, ev)
			if msg, ok := ev.AgentMessage(); ok {
				final = msg
				got = true
			}
		case core.EventError:
			st.emit(ctx, ev)
			reason, _ := ev.Payload["message"].(string)
			failure = &streamedError{err: &core.AdapterError{Speaker: ec.Speaker, Round: ec.Round, Err: errors.New(reason)}}
		}
	}

	if failure != nil {
		return core.Message{}, failure
	}
	if err := callCtx.Err(); err != nil && !got {
		return core.Message{}, &core.AdapterError{Speaker: ec.Speaker, Round: ec.Round, Err: err}
	}
	if !got {
		return core.Message{}, &core.AdapterError{
			Speaker: ec.Speaker, Round: ec.Round,
			Err: errors.New("adapter stream ended without a final message"),
		}
	}
	return final, nil
}

// recordSummary asks the recorder to synthesize the completed round.
func (st *runState) recordSummary(ctx context.Context, round int, recorder core.RoleDescriptor) error {
	desc := recorder
	desc.OutputContract = output.SummaryContract

	ec := st.builder.Recorder(st.run.ID, round, desc, st.history)
	st.emit(ctx, core.NewEvent(core.EventSpeakerSelected, st.run.ID, "system", map[string]any{
		"speaker": desc.Name,
		"round":   round,
	}))

	msg, err := st.invoke(ctx, ec)
	if err != nil {
		return err
	}

	summary, perr := output.ParseRoundSummary(msg.Content, round)
	if perr != nil {
		repaired, rerr := st.invoke(ctx, repairContext(ec, msg.Content, perr))
		if rerr != nil {
			return perr
		}
		summary, perr = output.ParseRoundSummary(repaired.Content, round)
		if perr != nil {
			st.emit(ctx, core.NewErrorEvent(st.run.ID, desc.Name, "output_validation", perr))
			return perr
		}
		msg = repaired
	}

	st.history = append(st.history, msg)
	st.summaries = append(st.summaries, summary)
	st.emit(ctx, core.NewEvent(core.EventSummaryWritten, st.run.ID, desc.Name, map[string]any{
		"round":          summary.Round,
		"summary":        summary.Summary,
		"open_questions": summary.OpenQuestions,
		"decisions":      summary.Decisions,
		"risks":          summary.Risks,
		"next_steps":     summary.NextSteps,
	}))
	return nil
}

// roundStats measures the round for the convergence evaluator, writing the
// CONSENSUS artifact in parallel mode.
func (st *runState) roundStats(ctx context.Context, round int, results map[string]turnResult) converge.Stats {
	openQuestions, disagreements := converge.Tally(st.latest)

	decisions := make(map[string]string, len(st.latest))
	for role, out := range st.latest {
		decisions[role] = strings.ToLower(out.Conclusion())
	}

	stats := converge.Stats{
		Round:             round,
		ArtifactsComplete: st.artifactsComplete(),
		OpenQuestions:     openQuestions,
		Disagreements:     disagreements,
		Decisions:         decisions,
		Previous:          st.previous,
	}

	if st.meeting.Parallel.Enabled && len(results) > 0 {
		roundOutputs := make(map[string]output.RoleOutput, len(results))
		for role, res := range results {
			roundOutputs[role] = res.out
		}
		votes, winner, score := converge.Consensus(roundOutputs)
		stats.Votes = votes
		stats.ConsensusScore = score
		stats.HasConsensus = true
		st.writeConsensus(ctx, round, votes, winner, score)
	}

	st.previous = decisions
	return stats
}

func (st *runState) writeConsensus(ctx context.Context, round int, votes map[string]int, winner string, score float64) {
	content := map[string]any{
		"round":     round,
		"votes":     votes,
		"winner":    winner,
		"rationale": fmt.Sprintf("majority vote, score %.2f", score),
	}
	art := core.NewArtifact(st.run.ID, core.ArtifactConsensus, "v1", content)
	if err := st.engine.gate.Check(art); err != nil {
		st.engine.logger.Error("consensus artifact rejected run_id=%s round=%d: %v", st.run.ID, round, err)
		return
	}
	if err := st.engine.artifacts.Save(art); err != nil {
		st.engine.logger.Warn("consensus artifact save run_id=%s round=%d: %v", st.run.ID, round, err)
		return
	}
	st.emit(ctx, core.NewEvent(core.EventArtifactWritten, st.run.ID, "system", map[string]any{
		"type":    string(core.ArtifactConsensus),
		"version": "v1",
		"round":   round,
	}))
}

// artifactsComplete reports whether every required artifact already exists.
func (st *runState) artifactsComplete() bool {
	existing, err := st.engine.artifacts.List(st.run.ID)
	if err != nil {
		return false
	}
	present := make(map[core.ArtifactType]bool, len(existing))
	for _, a := range existing {
		present[a.Type] = true
	}
	for _, required := range core.RequiredArtifacts {
		if !present[required] {
			return false
		}
	}
	return true
}

// pauseAndWait suspends the run until a valid resume, abandonment or
// context cancellation. Returns false when the run reached a terminal
// state while waiting.
func (st *runState) pauseAndWait(ctx context.Context, reason pause.Reason, questions []pause.Question) bool {
	snap := st.engine.pauses.Pause(st.run.ID, reason, questions)

	st.run.Status = core.RunStatusPaused
	if err := st.engine.runs.Update(st.run); err != nil {
		st.fail(ctx, "run_store", err)
		return false
	}

	qs := make([]map[string]any, 0, len(questions))
	for _, q := range questions {
		qs = append(qs, map[string]any{
			"key":       q.Key,
			"prompt":    q.Prompt,
			"rationale": q.Rationale,
			"required":  q.Required,
			"role":      q.Role,
		})
	}
	st.emit(ctx, core.NewEvent(core.EventPause, st.run.ID, "system", map[string]any{
		"reason":       string(reason),
		"resume_token": snap.Token,
		"questions":    qs,
	}))
	st.engine.hooks.onPause(st.run, reason, snap)
	st.engine.logger.Info("run paused run_id=%s reason=%s questions=%d", st.run.ID, reason, len(questions))

	select {
	case req := <-st.resumeCh:
		st.applyResume(ctx, reason, req)
		return true
	case <-st.abandonCh:
		st.terminate(ctx, core.RunStatusFailed, "abandoned", errors.New("run abandoned by user"))
		return false
	case <-ctx.Done():
		st.terminate(ctx, core.RunStatusFailed, "cancelled", ctx.Err())
		return false
	}
}

// applyResume folds answers into run state and re-enters the round loop.
func (st *runState) applyResume(ctx context.Context, reason pause.Reason, req resumeRequest) {
	keys := make([]string, 0, len(req.answers))
	for k := range req.answers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	if text := renderAnswers(keys, req.answers); text != "" {
		msg := core.NewUserMessage(text)
		st.history = append(st.history, msg)
		st.userInput = msg
	}

	// Role-scoped questions also land in that role's private memory.
	for _, q := range req.questions {
		if q.Role == "" {
			continue
		}
		v, ok := req.answers[q.Key]
		if !ok {
			continue
		}
		mem := st.memories[q.Role]
		if mem == nil {
			mem = &core.PrivateMemory{}
			st.memories[q.Role] = mem
		}
		mem.Notes = append(mem.Notes, fmt.Sprintf("%s: %v", q.Key, v))
		mem.Trim(st.meeting.MemoryMaxItems)
	}

	if reason == pause.ReasonBudget {
		if extra := intAnswer(req.answers, "additional_calls"); extra > 0 {
			st.budget.Raise(extra)
		}
	}

	st.run.Status = core.RunStatusRunning
	if err := st.engine.runs.Update(st.run); err != nil {
		st.engine.logger.Error("run store update after resume run_id=%s: %v", st.run.ID, err)
	}

	st.emit(ctx, core.NewEvent(core.EventResume, st.run.ID, "user", map[string]any{
		"answered": keys,
		"round":    st.run.Round,
	}))
	st.engine.hooks.onResume(st.run, req.answers)
	st.engine.logger.Info("run resumed run_id=%s round=%d answers=%d", st.run.ID, st.run.Round, len(req.answers))
}

// finalize drives the recorder's artifact bundle through the gate, writes
// the engine-generated artifacts and closes the run.
func (st *runState) finalize(ctx context.Context, round int, reason converge.StopReason) {
	recorder, ok := st.meeting.Recorder()
	if !ok {
		st.fail(ctx, "finalize", errors.New("meeting has no recorder role"))
		return
	}

	version := st.meeting.ArtifactVersion
	if version == "" {
		version = "v1"
	}

	ec := st.builder.Recorder(st.run.ID, round, recorder, st.history)
	st.emit(ctx, core.NewEvent(core.EventSpeakerSelected, st.run.ID, "system", map[string]any{
		"speaker": recorder.Name,
		"round":   round,
	}))

	msg, err := st.invoke(ctx, ec)
	if errors.Is(err, errBudget) {
		if !st.pauseAndWait(ctx, pause.ReasonBudget, budgetQuestions(st.budget.Count())) {
			return
		}
		msg, err = st.invoke(ctx, ec)
	}
	if err != nil {
		st.fail(ctx, "finalize", err)
		return
	}

	arts, perr := st.buildBundle(msg.Content, version)
	if perr != nil {
		// A single automated repair attempt, then the run fails hard.
		repaired, rerr := st.invoke(ctx, repairContext(ec, msg.Content, perr))
		if rerr == nil {
			arts, perr = st.buildBundle(repaired.Content, version)
		}
		if perr != nil {
			ev := core.NewErrorEvent(st.run.ID, recorder.Name, "artifact_gate", perr)
			ev.Payload["code"] = core.FatalArtifact
			st.emit(ctx, ev)
			st.terminate(ctx, core.RunStatusFailed, "fatal_artifact", perr)
			return
		}
	}

	for _, art := range arts {
		if err := st.engine.artifacts.Save(art); err != nil {
			st.fail(ctx, "artifact_store", err)
			return
		}
		st.emit(ctx, core.NewEvent(core.EventArtifactWritten, st.run.ID, recorder.Name, map[string]any{
			"type":    string(art.Type),
			"version": art.Version,
		}))
	}

	st.writeGenerated(ctx, round)
	st.terminate(ctx, core.RunStatusDone, string(reason), nil)
}

// buildBundle parses the recorder text and gates each required artifact.
func (st *runState) buildBundle(text, version string) ([]core.Artifact, error) {
	bundle, err := output.ParseRecorderBundle(text)
	if err != nil {
		return nil, err
	}
	arts := []core.Artifact{
		core.NewArtifact(st.run.ID, core.ArtifactADR, version, bundle.ADR),
		core.NewArtifact(st.run.ID, core.ArtifactTasks, version, bundle.Tasks),
		core.NewArtifact(st.run.ID, core.ArtifactRisks, version, bundle.Risks),
	}
	var problems []string
	for _, art := range arts {
		if err := st.engine.gate.Check(art); err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", art.Type, err))
		}
	}
	if len(problems) > 0 {
		return nil, core.NewValidationError("artifact bundle", problems...)
	}
	return arts, nil
}

// writeGenerated emits the deterministic engine-authored artifacts: the
// meeting flowchart, the minutes, and the last round summary when one
// exists.
func (st *runState) writeGenerated(ctx context.Context, rounds int) {
	roles := make([]string, 0, len(st.meeting.Roles))
	for _, r := range st.meeting.Roles {
		roles = append(roles, r.Name)
	}

	generated := []core.Artifact{
		core.NewArtifact(st.run.ID, core.ArtifactFlowchart, "v1", artifact.GenerateFlowchart(roles, rounds)),
		core.NewArtifact(st.run.ID, core.ArtifactMinutes, "v1", artifact.GenerateMinutes(st.meeting.Topic, st.history, 280)),
	}
	if n := len(st.summaries); n > 0 {
		last := st.summaries[n-1]
		generated = append(generated, core.NewArtifact(st.run.ID, core.ArtifactSummary, "v2", map[string]any{
			"round":          last.Round,
			"summary":        last.Summary,
			"open_questions": last.OpenQuestions,
			"decisions":      last.Decisions,
			"risks":          last.Risks,
			"next_steps":     last.NextSteps,
		}))
	}

	for _, art := range generated {
		if err := st.engine.gate.Check(art); err != nil {
			st.engine.logger.Error("generated artifact rejected run_id=%s type=%s: %v", st.run.ID, art.Type, err)
			continue
		}
		if err := st.engine.artifacts.Save(art); err != nil {
			st.engine.logger.Warn("generated artifact save run_id=%s type=%s: %v", st.run.ID, art.Type, err)
			continue
		}
		st.emit(ctx, core.NewEvent(core.EventArtifactWritten, st.run.ID, "system", map[string]any{
			"type":    string(art.Type),
			"version": art.Version,
		}))
	}
}

// fail records an unrecoverable pipeline error and terminates the run.
func (st *runState) fail(ctx context.Context, stage string, err error) {
	st.emit(ctx, core.NewErrorEvent(st.run.ID, "system", stage, err))
	st.terminate(ctx, core.RunStatusFailed, stage, err)
}

// terminate moves the run to a terminal status, emits the finished event
// and, for failures, reports the terminal error.
func (st *runState) terminate(ctx context.Context, status core.RunStatus, reason string, err error) {
	st.run.Status = status
	st.run.EndedAt = time.Now().UTC()
	if err != nil {
		st.run.Error = err.Error()
	}
	if uerr := st.engine.runs.Update(st.run); uerr != nil {
		st.engine.logger.Error("run store update run_id=%s: %v", st.run.ID, uerr)
	}

	st.emit(ctx, core.NewEvent(core.EventFinished, st.run.ID, "system", map[string]any{
		"status": string(status),
		"reason": reason,
		"rounds": st.run.Round,
	}))
	st.engine.hooks.onRunEnd(st.run, reason, err)
	st.engine.logger.Info("run finished run_id=%s status=%s reason=%s rounds=%d",
		st.run.ID, status, reason, st.run.Round)

	if err != nil && status == core.RunStatusFailed {
		select {
		case st.errors <- err:
		default:
		}
	}
}

// blockingQuestions collects pause questions from the round's outputs, in
// roster order.
func blockingQuestions(results map[string]turnResult) []pause.Question {
	speakers := make([]string, 0, len(results))
	for s := range results {
		speakers = append(speakers, s)
	}
	sort.Strings(speakers)

	var qs []pause.Question
	for _, speaker := range speakers {
		for _, bq := range results[speaker].out.BlockingQuestions {
			qs = append(qs, pause.Question{
				Key:       bq.Key,
				Prompt:    bq.Ask,
				Rationale: bq.Why,
				Required:  bq.Required,
				Role:      speaker,
			})
		}
	}
	return qs
}

func approvalQuestions(round int) []pause.Question {
	return []pause.Question{{
		Key:    "comments",
		Prompt: fmt.Sprintf("Round %d is complete. Add guidance for the remaining rounds, or resume to continue.", round),
	}}
}

func budgetQuestions(spent int) []pause.Question {
	return []pause.Question{{
		Key:      "additional_calls",
		Prompt:   fmt.Sprintf("The run spent its model call budget (%d calls). How many additional calls may it use?", spent),
		Required: true,
	}}
}

// repairContext clones an execution context and appends the repair framing
// so the speaker sees its rejected output and the validation problems.
func repairContext(ec core.ExecutionContext, badText string, cause error) core.ExecutionContext {
	repaired := ec
	repaired.PublicMessages = make([]core.Message, 0, len(ec.PublicMessages)+2)
	repaired.PublicMessages = append(repaired.PublicMessages, ec.PublicMessages...)
	repaired.PublicMessages = append(repaired.PublicMessages,
		core.NewMessage(core.RoleAssistant, ec.Speaker, badText),
		core.NewSystemMessage("repair", output.RepairPrompt+"\n"+cause.Error()),
	)
	return repaired
}

func renderAnswers(keys []string, answers map[string]any) string {
	if len(keys) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Resume input:")
	for _, k := range keys {
		b.WriteString(fmt.Sprintf("\n%s: %v", k, answers[k]))
	}
	return b.String()
}

func intAnswer(answers map[string]any, key string) int {
	switch v := answers[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		n := 0
		fmt.Sscanf(v, "%d", &n)
		return n
	default:
		return 0
	}
}
