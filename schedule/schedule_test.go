package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conclave-dev/conclave/core"
)

func roster() []core.RoleDescriptor {
	return []core.RoleDescriptor{
		{Name: "recorder", Recorder: true},
		{Name: "architect"},
		{Name: "pragmatist"},
	}
}

func names(roles []core.RoleDescriptor) []string {
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		out = append(out, r.Name)
	}
	return out
}

func TestSequentialPinsRecorderLast(t *testing.T) {
	plan := Sequential{}.Plan(roster(), 1)
	assert.Equal(t, []string{"architect", "pragmatist", "recorder"}, names(plan))
	assert.Equal(t, 1, Sequential{}.Limit())
}

func TestBoundedParallelExcludesRecorder(t *testing.T) {
	p := BoundedParallel{MaxConcurrent: 2}
	plan := p.Plan(roster(), 1)
	assert.Equal(t, []string{"architect", "pragmatist"}, names(plan))
	assert.Equal(t, 2, p.Limit())
}

func TestBoundedParallelRespectsRoleSubset(t *testing.T) {
	p := BoundedParallel{Roles: []string{"pragmatist"}}
	plan := p.Plan(roster(), 1)
	assert.Equal(t, []string{"pragmatist"}, names(plan))
	assert.Equal(t, 0, p.Limit())
}

func TestForMeetingSelectsPolicy(t *testing.T) {
	m := core.Meeting{}
	_, ok := ForMeeting(m).(Sequential)
	require.True(t, ok)

	m.Parallel = core.Parallelism{Enabled: true, Roles: []string{"architect"}, Limit: 3}
	bp, ok := ForMeeting(m).(BoundedParallel)
	require.True(t, ok)
	assert.Equal(t, []string{"architect"}, bp.Roles)
	assert.Equal(t, 3, bp.MaxConcurrent)
}
