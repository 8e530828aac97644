// Package engine implements the meeting orchestration state machine for
// Conclave.
//
// A run moves through a fixed lifecycle: intake (validate configuration,
// create the run), briefing (assemble each speaker's context), discussion
// (scheduled speaker turns, one round at a time), convergence (decide after
// every round whether to continue, stop, or pause), and finalization (drive
// the recorder's artifact bundle through the gate). Terminal states are
// DONE and FAILED; PAUSED suspends the run until a valid single-use resume
// token arrives, after which discussion re-enters at the same round.
//
// # Event sourcing
//
// Everything a run does is recorded as an append-only sequence of events
// with a strictly increasing, gapless Seq starting at 1. The event log is
// the sole channel between the engine and storage/observers: round starts,
// speaker selections, streamed tokens, finalized messages, summaries,
// artifacts, pauses, resumes, per-round metrics, errors, and the terminal
// finished event all flow through it. A parallel speaker burst serializes
// its emission through the run's sequencer, so ordering holds even under
// concurrency.
//
// # Error discipline
//
//   - Invalid configuration fails Start before anything is persisted
//   - A speaker's adapter failure gets one retry; a second failure skips
//     that speaker for the round, and a round with no surviving speakers
//     fails the run
//   - Output that fails schema validation gets one automated repair turn
//   - A recorder bundle that still fails the gate after its repair attempt
//     fails the run with a fatal artifact error
//   - A budget breach is a pause trigger, never a failure
//
// # Usage
//
//	eng := engine.New(runner.NewModelRunner(m), engine.WithLogger(logger))
//
//	runID, events, errs, err := eng.Start(ctx, meeting, nil)
//	if err != nil {
//	    return err
//	}
//	for ev := range events {
//	    // observe the run in real time
//	}
//	if err := <-errs; err != nil {
//	    return err
//	}
//	_ = runID
//
// When a pause event arrives, read the resume token from PauseInfo and call
// Resume with the user's answers, or Abandon to end the run.
package engine
