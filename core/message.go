package core

import "time"

// MessageRole categorizes the author kind of a Message.
type MessageRole string

// Message role kinds. These mirror the conversational roles agent adapters
// understand; "system" carries engine-synthesized context such as round
// summaries and conclusion snapshots.
const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleTool      MessageRole = "tool"
)

// Message is one role's or the user's utterance. Messages are immutable once
// created and only ever appended to a run's public history.
type Message struct {
	Role      MessageRole    `json:"role"`
	Name      string         `json:"name,omitempty"`
	Content   string         `json:"content"`
	Timestamp time.Time      `json:"timestamp"`
	Meta      map[string]any `json:"meta,omitempty"`
}

// NewMessage creates a message authored by name with the given role.
func NewMessage(role MessageRole, name, content string) Message {
	return Message{Role: role, Name: name, Content: content, Timestamp: time.Now().UTC()}
}

// NewUserMessage is a convenience wrapper for a user-authored message.
func NewUserMessage(content string) Message {
	return NewMessage(RoleUser, "user", content)
}

// NewSystemMessage is a convenience wrapper for engine-synthesized context.
func NewSystemMessage(name, content string) Message {
	return NewMessage(RoleSystem, name, content)
}

// Payload renders the message as an event payload fragment.
func (m Message) Payload() map[string]any {
	p := map[string]any{
		"role":    string(m.Role),
		"content": m.Content,
	}
	if m.Name != "" {
		p["name"] = m.Name
	}
	if !m.Timestamp.IsZero() {
		p["timestamp"] = m.Timestamp.Format(time.RFC3339Nano)
	}
	if len(m.Meta) > 0 {
		p["meta"] = m.Meta
	}
	return p
}

// MessageFromPayload reconstructs a Message from an event payload fragment.
// The second return value reports whether the fragment carried a message.
func MessageFromPayload(p map[string]any) (Message, bool) {
	if p == nil {
		return Message{}, false
	}
	content, ok := p["content"].(string)
	if !ok {
		return Message{}, false
	}
	msg := Message{Role: RoleAssistant, Content: content}
	if role, ok := p["role"].(string); ok && role != "" {
		msg.Role = MessageRole(role)
	}
	if name, ok := p["name"].(string); ok {
		msg.Name = name
	}
	if ts, ok := p["timestamp"].(string); ok {
		if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			msg.Timestamp = parsed
		}
	}
	if meta, ok := p["meta"].(map[string]any); ok {
		msg.Meta = meta
	}
	return msg, true
}
