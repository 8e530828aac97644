package core

import "context"

// Limits bounds a single adapter invocation.
type Limits struct {
	// MaxHistoryMessages caps how many public messages the adapter may
	// forward to its backend (0 = all).
	MaxHistoryMessages int `json:"max_history_messages,omitempty"`
	// MaxTokens caps the completion length requested from the backend.
	MaxTokens int `json:"max_tokens,omitempty"`
}

// ExecutionContext is the exact input package an agent adapter receives for
// one speaker turn. It is assembled by the Context Builder and carries
// everything the adapter may see; adapters never reach back into run state.
type ExecutionContext struct {
	MeetingID          string         `json:"meeting_id"`
	RunID              string         `json:"run_id"`
	Round              int            `json:"round"`
	Speaker            string         `json:"speaker"`
	ContextMode        ContextMode    `json:"context_mode"`
	PublicMessages     []Message      `json:"public_messages"`
	PrivateMemory      *PrivateMemory `json:"private_memory,omitempty"`
	SystemInstructions string         `json:"system_instructions"`
	UserTask           string         `json:"user_task"`
	Limits             Limits         `json:"limits"`
}

// Runner is the agent adapter contract, the only framework-coupling boundary
// in the engine. Given an ExecutionContext, an implementation produces a
// finite stream of events restricted to token, agent_message and error; the
// stream ends with exactly one agent_message (or one error) and the channel
// is then closed. The engine never inspects adapter-internal event shapes
// beyond this contract.
//
// Implementations must respect ctx cancellation: the engine bounds each
// invocation with a per-call timeout and treats expiry as a recoverable
// failure for that speaker only.
type Runner interface {
	Run(ctx context.Context, ec ExecutionContext) (<-chan Event, error)
}
