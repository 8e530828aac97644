package core

import (
	"sync"
	"time"
)

// EventType identifies the semantic category of an Event.
type EventType string

// The closed set of event types a run may emit. Agent adapters are restricted
// to EventToken, EventAgentMessage and EventError; everything else is
// engine-authored.
const (
	EventRoundStarted    EventType = "round_started"
	EventSpeakerSelected EventType = "speaker_selected"
	EventToken           EventType = "token"
	EventAgentMessage    EventType = "agent_message"
	EventSummaryWritten  EventType = "summary_written"
	EventArtifactWritten EventType = "artifact_written"
	EventPause           EventType = "pause"
	EventResume          EventType = "resume"
	EventMetric          EventType = "metric"
	EventError           EventType = "error"
	EventFinished        EventType = "finished"
)

// Event is an append-only log record of something that happened in a Run.
// Events are the sole channel through which the engine communicates with
// storage and observers; after emission an Event must be treated as
// immutable.
//
// Seq is assigned by the run that owns the event: strictly increasing and
// gapless starting at 1. Events across different runs have no ordering
// relationship.
type Event struct {
	Seq       uint64         `json:"seq"`
	Type      EventType      `json:"type"`
	RunID     string         `json:"run_id"`
	Timestamp time.Time      `json:"timestamp"`
	Actor     string         `json:"actor"`
	Payload   map[string]any `json:"payload"`
}

// NewEvent creates an unsequenced event; the owning run stamps Seq on emit.
func NewEvent(t EventType, runID, actor string, payload map[string]any) Event {
	if payload == nil {
		payload = map[string]any{}
	}
	return Event{Type: t, RunID: runID, Timestamp: time.Now().UTC(), Actor: actor, Payload: payload}
}

// NewAgentMessageEvent wraps a finalized Message produced by a speaker.
func NewAgentMessageEvent(runID, actor string, msg Message) Event {
	return NewEvent(EventAgentMessage, runID, actor, map[string]any{"message": msg.Payload()})
}

// NewTokenEvent is a streaming token increment emitted while a speaker turn
// is in flight.
func NewTokenEvent(runID, actor, text string) Event {
	return NewEvent(EventToken, runID, actor, map[string]any{"text": text})
}

// NewErrorEvent records a recovered or fatal error. Stage names the pipeline
// step that failed (e.g. "speaker_invocation", "artifact_gate").
func NewErrorEvent(runID, actor, stage string, err error) Event {
	return NewEvent(EventError, runID, actor, map[string]any{
		"stage":   stage,
		"message": err.Error(),
	})
}

// NewMetricEvent carries convergence counters so every stop decision is
// auditable from the log alone.
func NewMetricEvent(runID string, payload map[string]any) Event {
	return NewEvent(EventMetric, runID, "system", payload)
}

// AgentMessage extracts the embedded Message from an agent_message event.
func (e Event) AgentMessage() (Message, bool) {
	if e.Type != EventAgentMessage {
		return Message{}, false
	}
	fragment, _ := e.Payload["message"].(map[string]any)
	return MessageFromPayload(fragment)
}

// IsTerminal reports whether the event ends an adapter invocation.
func (e Event) IsTerminal() bool {
	return e.Type == EventAgentMessage || e.Type == EventError
}

// Sequencer issues the strictly increasing, gapless sequence positions for a
// single run's events. Safe for concurrent use; parallel speaker bursts
// serialize through it.
type Sequencer struct {
	mu   sync.Mutex
	next uint64
}

// Next returns the next sequence position, starting at 1.
func (s *Sequencer) Next() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	return s.next
}

// Current returns the most recently issued position (0 if none).
func (s *Sequencer) Current() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}
