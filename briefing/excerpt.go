package briefing

import "strings"

// RoleProfile is a by-value snapshot of one role's latest declared output,
// captured for cross-role context sharing.
type RoleProfile struct {
	Role       string
	Conclusion string
	TopRisks   []string
}

// Excerpt is one statement selected for inclusion in another role's context.
type Excerpt struct {
	Role string
	Text string
}

// ExcerptPolicy chooses which statements from other roles' profiles a
// speaker gets to see in layered mode. Implementations must treat profiles
// as read-only and must never return more than k excerpts.
type ExcerptPolicy interface {
	Select(profiles []RoleProfile, speaker string, k int) []Excerpt
}

// RecentConclusions is the default policy: for each role other than the
// speaker it surfaces the top risk statement, preferring statements that
// mention one of the configured terms. With no terms, every top risk
// qualifies.
type RecentConclusions struct {
	Terms []string
}

// Select returns at most k risk excerpts from other roles, relevant ones
// first, in profile order.
func (p RecentConclusions) Select(profiles []RoleProfile, speaker string, k int) []Excerpt {
	if k <= 0 {
		return nil
	}
	var relevant, rest []Excerpt
	for _, prof := range profiles {
		if prof.Role == speaker {
			continue
		}
		for _, risk := range prof.TopRisks {
			ex := Excerpt{Role: prof.Role, Text: risk}
			if p.matches(risk) {
				relevant = append(relevant, ex)
			} else {
				rest = append(rest, ex)
			}
			break
		}
	}
	picked := append(relevant, rest...)
	if len(picked) > k {
		picked = picked[:k]
	}
	return picked
}

func (p RecentConclusions) matches(text string) bool {
	if len(p.Terms) == 0 {
		return true
	}
	lower := strings.ToLower(text)
	for _, t := range p.Terms {
		if strings.Contains(lower, t) {
			return true
		}
	}
	return false
}
