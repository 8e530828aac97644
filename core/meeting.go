package core

import (
	"fmt"
	"strings"
)

// ContextMode selects how the Context Builder assembles the public view each
// speaker receives.
type ContextMode string

const (
	// ContextShared gives every speaker the complete ordered message
	// history, optionally capped to the most recent N messages.
	ContextShared ContextMode = "shared"
	// ContextLayered gives every speaker a bounded synthesis: latest user
	// input, latest round summaries and each role's declared conclusion,
	// plus the speaker's own private memory.
	ContextLayered ContextMode = "layered"
)

// RoleDescriptor declares one participant in the roster: its name, the
// instructions prepended to its system prompt, and the output contract text
// describing the JSON shape it must produce. Exactly one role per meeting
// carries Recorder=true; that role writes summaries and final artifacts and
// is always scheduled last.
type RoleDescriptor struct {
	Name           string `json:"name"`
	Instructions   string `json:"instructions"`
	OutputContract string `json:"output_contract,omitempty"`
	Recorder       bool   `json:"recorder,omitempty"`
}

// Termination holds the convergence thresholds consulted after every round.
// MaxRounds lives on the Meeting itself since it is a hard ceiling, not a
// threshold.
type Termination struct {
	// MinRounds suppresses early convergence before this many rounds have
	// completed. Zero means no minimum.
	MinRounds int `json:"min_rounds"`
	// OpenQuestionsMax is the largest outstanding open-question count that
	// still counts as converged.
	OpenQuestionsMax int `json:"open_questions_max"`
	// DisagreementsMax is the largest outstanding disagreement count that
	// still counts as converged.
	DisagreementsMax int `json:"disagreements_max"`
}

// Parallelism configures bounded-parallel rounds. When Enabled, the roles in
// Roles (all non-recorder roster members if empty) speak concurrently each
// round, at most Limit at a time.
type Parallelism struct {
	Enabled bool     `json:"enabled"`
	Roles   []string `json:"roles,omitempty"`
	Limit   int      `json:"limit,omitempty"`
}

// Meeting is the immutable configuration of a deliberation. It is created
// once, never mutated afterwards, and may be run any number of times.
type Meeting struct {
	ID           string           `json:"id"`
	Topic        string           `json:"topic"`
	Background   string           `json:"background,omitempty"`
	Constraints  []string         `json:"constraints,omitempty"`
	SystemPrompt string           `json:"system_prompt,omitempty"`
	Roles        []RoleDescriptor `json:"roles"`

	MaxRounds   int         `json:"max_rounds"`
	ContextMode ContextMode `json:"context_mode"`
	Termination Termination `json:"termination"`
	Parallel    Parallelism `json:"parallel"`

	// ArtifactVersion is the schema version final artifacts are validated
	// against and stored under.
	ArtifactVersion string `json:"artifact_version"`

	// HistoryMaxMessages caps the shared-mode public history (0 = no cap).
	HistoryMaxMessages int `json:"history_max_messages,omitempty"`
	// RecorderHistoryMax caps the history handed to the recorder during
	// finalize (0 = no cap).
	RecorderHistoryMax int `json:"recorder_history_max,omitempty"`
	// SummaryKeepLast bounds how many round summaries layered mode retains.
	SummaryKeepLast int `json:"summary_keep_last,omitempty"`
	// SummaryMaxChars length-caps each retained summary.
	SummaryMaxChars int `json:"summary_max_chars,omitempty"`
	// MemoryMaxItems trims each private memory list to its latest N entries.
	MemoryMaxItems int `json:"memory_max_items,omitempty"`
	// ExcerptK is how many cross-role excerpts the default policy surfaces.
	ExcerptK int `json:"excerpt_k,omitempty"`

	// PauseOnRound, when > 0, pauses the run for explicit user approval
	// after that round completes.
	PauseOnRound int `json:"pause_on_round,omitempty"`
	// MaxModelCalls is a per-run budget ceiling; a breach pauses the run
	// rather than failing it. Zero means unlimited.
	MaxModelCalls int `json:"max_model_calls,omitempty"`
}

// Overrides are per-run adjustments merged over a Meeting at start time.
// Nil fields leave the meeting value untouched.
type Overrides struct {
	MaxRounds     *int
	ContextMode   *ContextMode
	PauseOnRound  *int
	MaxModelCalls *int
	Parallel      *Parallelism
}

// Apply returns a copy of the meeting with the overrides merged in.
func (o *Overrides) Apply(m Meeting) Meeting {
	if o == nil {
		return m
	}
	if o.MaxRounds != nil {
		m.MaxRounds = *o.MaxRounds
	}
	if o.ContextMode != nil {
		m.ContextMode = *o.ContextMode
	}
	if o.PauseOnRound != nil {
		m.PauseOnRound = *o.PauseOnRound
	}
	if o.MaxModelCalls != nil {
		m.MaxModelCalls = *o.MaxModelCalls
	}
	if o.Parallel != nil {
		m.Parallel = *o.Parallel
	}
	return m
}

// Recorder returns the roster's recorder role. The second return value is
// false when the roster has none (an invalid configuration).
func (m Meeting) Recorder() (RoleDescriptor, bool) {
	for _, r := range m.Roles {
		if r.Recorder {
			return r, true
		}
	}
	return RoleDescriptor{}, false
}

// Role looks up a roster member by name.
func (m Meeting) Role(name string) (RoleDescriptor, bool) {
	for _, r := range m.Roles {
		if r.Name == name {
			return r, true
		}
	}
	return RoleDescriptor{}, false
}

// UserTask renders the topic, background and constraints into the task
// statement every speaker receives.
func (m Meeting) UserTask() string {
	var b strings.Builder
	b.WriteString("Topic: ")
	b.WriteString(m.Topic)
	if m.Background != "" {
		b.WriteString("\n\nBackground: ")
		b.WriteString(m.Background)
	}
	if len(m.Constraints) > 0 {
		b.WriteString("\n\nConstraints:")
		for _, c := range m.Constraints {
			b.WriteString("\n- ")
			b.WriteString(c)
		}
	}
	return b.String()
}

// Validate checks the merged configuration. It returns a *ConfigError
// describing the first problem found, or nil. A run whose configuration
// fails validation never starts.
func (m Meeting) Validate() error {
	if strings.TrimSpace(m.Topic) == "" {
		return &ConfigError{Field: "topic", Reason: "topic is required"}
	}
	if m.MaxRounds < 1 {
		return &ConfigError{Field: "max_rounds", Reason: "round cap must be >= 1"}
	}
	if len(m.Roles) == 0 {
		return &ConfigError{Field: "roles", Reason: "roster must not be empty"}
	}
	seen := make(map[string]bool, len(m.Roles))
	recorders := 0
	for _, r := range m.Roles {
		if strings.TrimSpace(r.Name) == "" {
			return &ConfigError{Field: "roles", Reason: "role name must not be empty"}
		}
		if seen[r.Name] {
			return &ConfigError{Field: "roles", Reason: fmt.Sprintf("duplicate role %q", r.Name)}
		}
		seen[r.Name] = true
		if r.Recorder {
			recorders++
		}
	}
	if recorders != 1 {
		return &ConfigError{Field: "roles", Reason: fmt.Sprintf("roster needs exactly one recorder, got %d", recorders)}
	}
	switch m.ContextMode {
	case ContextShared, ContextLayered:
	default:
		return &ConfigError{Field: "context_mode", Reason: fmt.Sprintf("unknown context mode %q", m.ContextMode)}
	}
	for _, name := range m.Parallel.Roles {
		if !seen[name] {
			return &ConfigError{Field: "parallel.roles", Reason: fmt.Sprintf("parallel role %q is not in the roster", name)}
		}
	}
	if m.Parallel.Enabled && m.Parallel.Limit < 0 {
		return &ConfigError{Field: "parallel.limit", Reason: "concurrency limit must be >= 0"}
	}
	return nil
}
