// Package converge decides, once per completed round, whether a run has
// deliberated enough. Stop conditions are checked in order of preference —
// hard round cap, validated artifact set, thresholds, stagnation — and the
// first truth wins. Every evaluation produces an auditable metric payload
// regardless of outcome.
package converge

import (
	"sort"
	"strings"

	"github.com/conclave-dev/conclave/core"
	"github.com/conclave-dev/conclave/output"
)

// StopReason names the condition that ended the discussion.
type StopReason string

const (
	// StopRoundCap fires when the hard round ceiling is reached; it
	// overrides every other signal.
	StopRoundCap StopReason = "round_cap"
	// StopArtifactsComplete fires when every required artifact already
	// exists and passed the gate.
	StopArtifactsComplete StopReason = "artifacts_complete"
	// StopThresholds fires when open questions and disagreements are both
	// within their configured limits.
	StopThresholds StopReason = "thresholds_met"
	// StopStagnation fires when decision recommendations did not change
	// across the last two rounds.
	StopStagnation StopReason = "stagnation"
)

// Stats are the inputs to one evaluation.
type Stats struct {
	Round             int
	ArtifactsComplete bool
	OpenQuestions     int
	Disagreements     int
	// Decisions maps role -> latest decision recommendation; Previous holds
	// the same map from the round before, for stagnation detection.
	Decisions map[string]string
	Previous  map[string]string
	// ConsensusScore and Votes are populated in parallel mode for the
	// metric payload only.
	ConsensusScore float64
	Votes          map[string]int
	HasConsensus   bool
}

// Decision is an evaluation result.
type Decision struct {
	Stop   bool
	Reason StopReason
}

// Evaluator applies the configured thresholds to per-round stats.
type Evaluator struct {
	maxRounds int
	cfg       core.Termination
}

// NewEvaluator creates an evaluator for the given hard cap and thresholds.
func NewEvaluator(maxRounds int, cfg core.Termination) *Evaluator {
	return &Evaluator{maxRounds: maxRounds, cfg: cfg}
}

// Evaluate returns the stop decision for a completed round. The round cap
// is absolute; a run never silently continues past it. Threshold and
// stagnation stops are suppressed until MinRounds have completed.
func (e *Evaluator) Evaluate(s Stats) Decision {
	if s.Round >= e.maxRounds {
		return Decision{Stop: true, Reason: StopRoundCap}
	}
	if s.ArtifactsComplete {
		return Decision{Stop: true, Reason: StopArtifactsComplete}
	}
	if s.Round < e.cfg.MinRounds {
		return Decision{}
	}
	if s.OpenQuestions <= e.cfg.OpenQuestionsMax && s.Disagreements <= e.cfg.DisagreementsMax {
		return Decision{Stop: true, Reason: StopThresholds}
	}
	if stagnant(s.Decisions, s.Previous) {
		return Decision{Stop: true, Reason: StopStagnation}
	}
	return Decision{}
}

// MetricPayload renders the measured counts for the round's metric event.
func (s Stats) MetricPayload() map[string]any {
	p := map[string]any{
		"round":                s.Round,
		"open_questions_count": s.OpenQuestions,
		"disagreements_count":  s.Disagreements,
	}
	if s.HasConsensus {
		p["consensus_score"] = s.ConsensusScore
		p["vote_counts"] = s.Votes
	}
	return p
}

// stagnant reports whether two non-empty decision maps are identical.
func stagnant(current, previous map[string]string) bool {
	if len(current) == 0 || len(current) != len(previous) {
		return false
	}
	for role, decision := range current {
		if previous[role] != decision {
			return false
		}
	}
	return true
}

// Tally derives convergence counts from the latest role outputs: total open
// questions, and disagreements as the number of distinct decision
// recommendations beyond the first.
func Tally(latest map[string]output.RoleOutput) (openQuestions, disagreements int) {
	if len(latest) == 0 {
		return 0, 0
	}
	decisions := make(map[string]bool)
	for _, out := range latest {
		openQuestions += len(out.Questions)
		if d := strings.ToLower(out.Conclusion()); d != "" {
			decisions[d] = true
		}
	}
	if n := len(decisions); n > 1 {
		disagreements = n - 1
	}
	return openQuestions, disagreements
}

// Consensus computes the majority vote over the round's outputs. Ties break
// lexicographically so parallel rounds stay deterministic.
func Consensus(outputs map[string]output.RoleOutput) (votes map[string]int, winner string, score float64) {
	votes = make(map[string]int)
	for _, out := range outputs {
		d := out.Conclusion()
		if d == "" {
			continue
		}
		votes[d]++
	}
	if len(votes) == 0 {
		return votes, "", 0
	}
	type pair struct {
		decision string
		count    int
	}
	ranked := make([]pair, 0, len(votes))
	total := 0
	for d, c := range votes {
		ranked = append(ranked, pair{decision: d, count: c})
		total += c
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].decision < ranked[j].decision
	})
	winner = ranked[0].decision
	score = float64(votes[winner]) / float64(total)
	return votes, winner, score
}
