// Package schedule decides who speaks in a round and in what order. A
// policy returns a fixed speaker list per round; the engine owns the actual
// invocation (one at a time for Sequential, a bounded concurrent burst for
// BoundedParallel). The recorder, when scheduled at all, is always last: it
// may depend on the round's other outputs.
package schedule

import "github.com/conclave-dev/conclave/core"

// Policy produces the fixed speaker order for a round.
type Policy interface {
	Plan(roster []core.RoleDescriptor, round int) []core.RoleDescriptor
}

// Concurrency reports how many speakers may be in flight at once under the
// policy; 1 means strictly sequential.
type Concurrency interface {
	Limit() int
}

// Sequential schedules the full roster in declaration order each round,
// recorder pinned last, one speaker active at a time.
type Sequential struct{}

// Plan implements Policy.
func (Sequential) Plan(roster []core.RoleDescriptor, _ int) []core.RoleDescriptor {
	ordered := make([]core.RoleDescriptor, 0, len(roster))
	var recorders []core.RoleDescriptor
	for _, r := range roster {
		if r.Recorder {
			recorders = append(recorders, r)
			continue
		}
		ordered = append(ordered, r)
	}
	return append(ordered, recorders...)
}

// Limit implements Concurrency.
func (Sequential) Limit() int { return 1 }

// BoundedParallel schedules a configured subset of roles (every
// non-recorder roster member when Roles is empty) for concurrent execution,
// at most MaxConcurrent at a time. The recorder is never part of the burst;
// the engine drives it separately after the round's outputs are collected.
type BoundedParallel struct {
	// Roles restricts the burst to these roster names. Empty means all
	// non-recorder roles.
	Roles []string
	// MaxConcurrent bounds in-flight speakers; 0 means no bound beyond the
	// burst size.
	MaxConcurrent int
}

// Plan implements Policy. Roster declaration order breaks ties.
func (p BoundedParallel) Plan(roster []core.RoleDescriptor, _ int) []core.RoleDescriptor {
	allowed := make(map[string]bool, len(p.Roles))
	for _, name := range p.Roles {
		allowed[name] = true
	}
	var burst []core.RoleDescriptor
	for _, r := range roster {
		if r.Recorder {
			continue
		}
		if len(p.Roles) > 0 && !allowed[r.Name] {
			continue
		}
		burst = append(burst, r)
	}
	return burst
}

// Limit implements Concurrency.
func (p BoundedParallel) Limit() int {
	if p.MaxConcurrent <= 0 {
		return 0
	}
	return p.MaxConcurrent
}

// ForMeeting selects the policy implied by the meeting configuration.
func ForMeeting(m core.Meeting) Policy {
	if m.Parallel.Enabled {
		return BoundedParallel{Roles: m.Parallel.Roles, MaxConcurrent: m.Parallel.Limit}
	}
	return Sequential{}
}
