// Package briefing is the context builder: it assembles, for a given
// (run, round, speaker), the exact input package the agent adapter receives.
// Shared mode forwards the full (optionally capped) message history; layered
// mode builds a bounded synthesis whose size is independent of round count —
// only the latest user input, the most recent summaries and the latest
// per-role conclusion snapshots are ever retained, never the full backlog.
package briefing

import (
	"fmt"
	"strings"

	"github.com/conclave-dev/conclave/core"
	"github.com/conclave-dev/conclave/output"
)

// Builder assembles execution contexts for one meeting configuration.
type Builder struct {
	meeting core.Meeting
	policy  ExcerptPolicy
}

// NewBuilder creates a builder for the meeting. The default excerpt policy
// surfaces each role's most recent conclusion and top risk, keyword-filtered
// on the meeting's constraint terms when any are configured.
func NewBuilder(m core.Meeting, optFns ...func(b *Builder)) *Builder {
	b := &Builder{
		meeting: m,
		policy:  RecentConclusions{Terms: constraintTerms(m.Constraints)},
	}
	for _, fn := range optFns {
		fn(b)
	}
	return b
}

// WithExcerptPolicy overrides the excerpt selection policy.
func WithExcerptPolicy(p ExcerptPolicy) func(b *Builder) {
	return func(b *Builder) { b.policy = p }
}

// Shared builds a shared-mode context: the complete ordered public history,
// capped to the configured window when one is set.
func (b *Builder) Shared(runID string, round int, speaker core.RoleDescriptor, history []core.Message) core.ExecutionContext {
	return b.sharedWithCap(runID, round, speaker, history, b.meeting.HistoryMaxMessages)
}

// Recorder builds the shared-mode context handed to the recorder during
// finalize, which carries its own (typically tighter) history cap.
func (b *Builder) Recorder(runID string, round int, speaker core.RoleDescriptor, history []core.Message) core.ExecutionContext {
	cap := b.meeting.RecorderHistoryMax
	if cap == 0 {
		cap = b.meeting.HistoryMaxMessages
	}
	return b.sharedWithCap(runID, round, speaker, history, cap)
}

func (b *Builder) sharedWithCap(runID string, round int, speaker core.RoleDescriptor, history []core.Message, windowCap int) core.ExecutionContext {
	public := history
	if windowCap > 0 && len(public) > windowCap {
		public = public[len(public)-windowCap:]
	}
	snapshot := make([]core.Message, len(public))
	copy(snapshot, public)
	return core.ExecutionContext{
		MeetingID:          b.meeting.ID,
		RunID:              runID,
		Round:              round,
		Speaker:            speaker.Name,
		ContextMode:        core.ContextShared,
		PublicMessages:     snapshot,
		SystemInstructions: b.Instructions(speaker),
		UserTask:           b.meeting.UserTask(),
		Limits:             core.Limits{MaxHistoryMessages: windowCap},
	}
}

// Layered builds a layered-mode context: latest user input, the retained
// round summaries (each length-capped), every role's latest declared
// conclusion as a by-value snapshot, cross-role excerpts chosen by the
// policy, and the speaker's own private memory synthesis. No other role's
// memory ever appears.
func (b *Builder) Layered(
	runID string,
	round int,
	speaker core.RoleDescriptor,
	latestUser core.Message,
	summaries []output.RoundSummary,
	latest map[string]output.RoleOutput,
	mem *core.PrivateMemory,
) core.ExecutionContext {
	public := make([]core.Message, 0, 3+len(latest))
	if latestUser.Content != "" {
		public = append(public, latestUser)
	}

	keep := b.meeting.SummaryKeepLast
	if keep <= 0 {
		keep = 1
	}
	if len(summaries) > keep {
		summaries = summaries[len(summaries)-keep:]
	}
	for _, s := range summaries {
		text := s.Summary
		if b.meeting.SummaryMaxChars > 0 && len(text) > b.meeting.SummaryMaxChars {
			text = text[:b.meeting.SummaryMaxChars]
		}
		public = append(public, core.NewSystemMessage("summary",
			fmt.Sprintf("round %d summary: %s", s.Round, text)))
	}

	profiles := b.profiles(latest)
	if conclusions := renderConclusions(profiles); conclusions != "" {
		public = append(public, core.NewSystemMessage("conclusions", conclusions))
	}
	k := b.meeting.ExcerptK
	if k <= 0 {
		k = len(profiles)
	}
	for _, ex := range b.policy.Select(profiles, speaker.Name, k) {
		public = append(public, core.NewSystemMessage("excerpt",
			fmt.Sprintf("%s: %s", ex.Role, ex.Text)))
	}

	return core.ExecutionContext{
		MeetingID:          b.meeting.ID,
		RunID:              runID,
		Round:              round,
		Speaker:            speaker.Name,
		ContextMode:        core.ContextLayered,
		PublicMessages:     public,
		PrivateMemory:      mem.Clone(),
		SystemInstructions: b.Instructions(speaker),
		UserTask:           b.meeting.UserTask(),
		Limits:             core.Limits{},
	}
}

// Instructions composes the speaker's system prompt: meeting system prompt,
// role instructions, then the role's output contract (defaulted per kind).
func (b *Builder) Instructions(speaker core.RoleDescriptor) string {
	contract := speaker.OutputContract
	if contract == "" {
		if speaker.Recorder {
			contract = output.RecorderContract
		} else {
			contract = output.RoleContract
		}
	}
	parts := make([]string, 0, 3)
	for _, p := range []string{b.meeting.SystemPrompt, speaker.Instructions, contract} {
		if strings.TrimSpace(p) != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "\n\n")
}

// profiles converts the latest outputs into role profiles in roster
// declaration order, storing conclusion strings by value so no live
// reference to another role's context survives.
func (b *Builder) profiles(latest map[string]output.RoleOutput) []RoleProfile {
	profiles := make([]RoleProfile, 0, len(latest))
	for _, r := range b.meeting.Roles {
		out, ok := latest[r.Name]
		if !ok {
			continue
		}
		profiles = append(profiles, RoleProfile{
			Role:       r.Name,
			Conclusion: out.Conclusion(),
			TopRisks:   out.TopRisks(3),
		})
	}
	return profiles
}

func renderConclusions(profiles []RoleProfile) string {
	var b strings.Builder
	for _, p := range profiles {
		if p.Conclusion == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(p.Role)
		b.WriteString(" concluded: ")
		b.WriteString(p.Conclusion)
	}
	return b.String()
}

// MergeMemory folds a validated role output into the role's private memory
// and trims every list to maxItems, keeping snapshots bounded.
func MergeMemory(mem *core.PrivateMemory, out output.RoleOutput, maxItems int) {
	mem.Assumptions = append(mem.Assumptions, out.Assumptions...)
	mem.PendingChecks = append(mem.PendingChecks, out.Questions...)
	for _, r := range out.Risks {
		mem.RiskPool = append(mem.RiskPool, r.Risk)
	}
	if out.Proposal != "" {
		mem.Drafts = append(mem.Drafts, out.Proposal)
	}
	if d := out.Conclusion(); d != "" {
		mem.Notes = append(mem.Notes, d)
	}
	for _, t := range out.Tradeoffs {
		if t != "" {
			mem.Notes = append(mem.Notes, t)
		}
	}
	mem.Trim(maxItems)
}

// constraintTerms tokenizes constraint strings into lowercase filter terms.
func constraintTerms(constraints []string) []string {
	var terms []string
	for _, c := range constraints {
		for _, w := range strings.Fields(strings.ToLower(c)) {
			w = strings.Trim(w, ".,:;()")
			if len(w) >= 4 {
				terms = append(terms, w)
			}
		}
	}
	return terms
}
