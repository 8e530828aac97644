// Package testutil contains helper builders used across tests to reduce
// boilerplate when constructing meetings and contract-conforming role
// responses. These helpers are intentionally minimal and avoid adding
// third-party dependencies. They are not intended for production usage.
package testutil

import (
	"encoding/json"

	"github.com/conclave-dev/conclave/core"
)

// MeetingBuilder provides a fluent helper for constructing meetings in
// tests. Example:
//
//	m := NewMeetingBuilder("pick a queue").
//	    Role("architect", "design first").
//	    Recorder("recorder").
//	    MaxRounds(2).
//	    Build()
//
// Chain only the parts you need; sensible defaults are applied.
type MeetingBuilder struct {
	m core.Meeting
}

// NewMeetingBuilder creates a builder for a shared-mode meeting on the
// given topic with a round cap of 3.
func NewMeetingBuilder(topic string) *MeetingBuilder {
	return &MeetingBuilder{m: core.Meeting{
		ID:              "meeting-test",
		Topic:           topic,
		MaxRounds:       3,
		ContextMode:     core.ContextShared,
		ArtifactVersion: "v1",
	}}
}

// ID overrides the meeting id (chainable).
func (b *MeetingBuilder) ID(id string) *MeetingBuilder { b.m.ID = id; return b }

// Role appends a non-recorder role (chainable).
func (b *MeetingBuilder) Role(name, instructions string) *MeetingBuilder {
	b.m.Roles = append(b.m.Roles, core.RoleDescriptor{Name: name, Instructions: instructions})
	return b
}

// Recorder appends the recorder role (chainable).
func (b *MeetingBuilder) Recorder(name string) *MeetingBuilder {
	b.m.Roles = append(b.m.Roles, core.RoleDescriptor{Name: name, Recorder: true})
	return b
}

// MaxRounds sets the hard round cap (chainable).
func (b *MeetingBuilder) MaxRounds(n int) *MeetingBuilder { b.m.MaxRounds = n; return b }

// Layered switches the meeting to layered context mode (chainable).
func (b *MeetingBuilder) Layered() *MeetingBuilder {
	b.m.ContextMode = core.ContextLayered
	return b
}

// Termination sets the convergence thresholds (chainable).
func (b *MeetingBuilder) Termination(t core.Termination) *MeetingBuilder {
	b.m.Termination = t
	return b
}

// Parallel enables bounded-parallel rounds (chainable).
func (b *MeetingBuilder) Parallel(limit int, roles ...string) *MeetingBuilder {
	b.m.Parallel = core.Parallelism{Enabled: true, Roles: roles, Limit: limit}
	return b
}

// PauseOnRound requests an approval pause after the given round (chainable).
func (b *MeetingBuilder) PauseOnRound(round int) *MeetingBuilder {
	b.m.PauseOnRound = round
	return b
}

// Budget sets the model call ceiling (chainable).
func (b *MeetingBuilder) Budget(maxCalls int) *MeetingBuilder {
	b.m.MaxModelCalls = maxCalls
	return b
}

// Build returns the constructed meeting.
func (b *MeetingBuilder) Build() core.Meeting { return b.m }

// RoleJSON renders a minimal contract-conforming role output with the given
// decision recommendation.
func RoleJSON(decision string) string {
	return mustJSON(map[string]any{
		"assumptions":             []string{},
		"proposal":                decision,
		"tradeoffs":               []string{},
		"risks":                   []any{},
		"questions":               []string{},
		"decision_recommendation": decision,
	})
}

// SummaryJSON renders a contract-conforming round summary; the round number
// is left for the parser to default.
func SummaryJSON(text string) string {
	return mustJSON(map[string]any{
		"summary":        text,
		"open_questions": []string{},
		"decisions":      []string{},
		"risks":          []string{},
		"next_steps":     []string{},
	})
}

// BundleJSON renders a recorder bundle whose three sections pass the v1
// artifact gate.
func BundleJSON(decision string) string {
	return mustJSON(map[string]any{
		"ADR": map[string]any{
			"context":                 "test meeting",
			"decision":                decision,
			"alternatives_considered": []string{},
			"consequences":            []string{},
			"risks_summary":           []string{},
			"open_questions":          []string{},
			"next_steps":              []string{},
		},
		"TASKS": map[string]any{
			"tasks": []any{map[string]any{
				"task_id": "T1", "title": "follow up", "owner_role": "architect",
				"priority": "high", "estimate": "1d", "dependencies": []string{},
			}},
		},
		"RISKS": map[string]any{
			"risks": []any{map[string]any{
				"risk": "none identified", "impact": "low", "probability": "low",
				"mitigation": "none", "verification": "none", "owner_role": "architect",
			}},
		},
	})
}

func mustJSON(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(raw)
}
