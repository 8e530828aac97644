package artifact

import (
	"fmt"
	"strings"

	"github.com/conclave-dev/conclave/core"
)

// GenerateFlowchart renders the completed meeting as a mermaid sequence
// diagram content map. Deterministic for a given roster and round count.
func GenerateFlowchart(roles []string, rounds int) map[string]any {
	if rounds < 1 {
		rounds = 1
	}
	speakers := roles
	if len(speakers) == 0 {
		speakers = []string{"Speaker"}
	}

	participants := []string{"Meeting"}
	seen := map[string]bool{"Meeting": true}
	for _, role := range speakers {
		if !seen[role] {
			participants = append(participants, role)
			seen[role] = true
		}
	}

	alias := make(map[string]string, len(participants))
	lines := []string{"sequenceDiagram", "  autonumber"}
	for i, p := range participants {
		alias[p] = fmt.Sprintf("p%d", i)
		lines = append(lines, fmt.Sprintf("  participant %s as %q", alias[p], p))
	}

	system := alias["Meeting"]
	recorder := alias[participants[len(participants)-1]]
	for round := 1; round <= rounds; round++ {
		for _, role := range speakers {
			lines = append(lines, fmt.Sprintf("  %s->>%s: round %d turn", system, alias[role], round))
			lines = append(lines, fmt.Sprintf("  %s-->>%s: round %d conclusion", alias[role], system, round))
		}
	}
	lines = append(lines, fmt.Sprintf("  %s->>%s: finalize", system, recorder))
	lines = append(lines, fmt.Sprintf("  %s-->>%s: ADR / TASKS / RISKS", recorder, system))

	return map[string]any{
		"mermaid": strings.Join(lines, "\n"),
		"rounds":  rounds,
		"roles":   roles,
	}
}

// GenerateMinutes distills the public transcript into a MINUTES content
// map: one excerpt per assistant message, in order.
func GenerateMinutes(topic string, messages []core.Message, maxExcerptChars int) map[string]any {
	if maxExcerptChars <= 0 {
		maxExcerptChars = 240
	}
	entries := make([]map[string]any, 0, len(messages))
	round := 1
	for _, msg := range messages {
		if msg.Role != core.RoleAssistant {
			continue
		}
		if r, ok := msg.Meta["round"].(int); ok && r > 0 {
			round = r
		}
		excerpt := msg.Content
		if len(excerpt) > maxExcerptChars {
			excerpt = excerpt[:maxExcerptChars]
		}
		entries = append(entries, map[string]any{
			"round":   round,
			"speaker": msg.Name,
			"excerpt": excerpt,
		})
	}
	return map[string]any{"topic": topic, "entries": entries}
}
