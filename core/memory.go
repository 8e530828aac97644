package core

import "strings"

// PrivateMemory is a role's per-run scratch state under layered context
// mode. It is owned exclusively by its role; other roles only ever see what
// the Context Builder surfaces as excerpts, never the raw memory. Each list
// is trimmed to a configured maximum so snapshots stay bounded.
type PrivateMemory struct {
	Assumptions   []string `json:"assumptions"`
	Notes         []string `json:"notes"`
	PendingChecks []string `json:"pending_checks"`
	RiskPool      []string `json:"risks_pool"`
	Drafts        []string `json:"drafts"`
}

// Clone returns an independent deep copy.
func (m *PrivateMemory) Clone() *PrivateMemory {
	if m == nil {
		return nil
	}
	cp := &PrivateMemory{
		Assumptions:   append([]string(nil), m.Assumptions...),
		Notes:         append([]string(nil), m.Notes...),
		PendingChecks: append([]string(nil), m.PendingChecks...),
		RiskPool:      append([]string(nil), m.RiskPool...),
		Drafts:        append([]string(nil), m.Drafts...),
	}
	return cp
}

// Trim keeps only the latest maxItems entries of every list.
func (m *PrivateMemory) Trim(maxItems int) {
	if m == nil || maxItems <= 0 {
		return
	}
	m.Assumptions = trimTail(m.Assumptions, maxItems)
	m.Notes = trimTail(m.Notes, maxItems)
	m.PendingChecks = trimTail(m.PendingChecks, maxItems)
	m.RiskPool = trimTail(m.RiskPool, maxItems)
	m.Drafts = trimTail(m.Drafts, maxItems)
}

// Synthesis renders the memory as a compact text block suitable for a
// system prompt. Raw append-only history is never forwarded.
func (m *PrivateMemory) Synthesis() string {
	if m == nil {
		return ""
	}
	var b strings.Builder
	section := func(title string, items []string) {
		if len(items) == 0 {
			return
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(title)
		b.WriteString(":")
		for _, it := range items {
			b.WriteString("\n- ")
			b.WriteString(it)
		}
	}
	section("Assumptions", m.Assumptions)
	section("Notes", m.Notes)
	section("Pending checks", m.PendingChecks)
	section("Risk pool", m.RiskPool)
	section("Drafts", m.Drafts)
	return b.String()
}

func trimTail(items []string, max int) []string {
	if len(items) <= max {
		return items
	}
	return items[len(items)-max:]
}
