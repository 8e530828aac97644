package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validMeeting() Meeting {
	return Meeting{
		ID:    "meeting-1",
		Topic: "Pick a message broker",
		Roles: []RoleDescriptor{
			{Name: "architect", Instructions: "Design the system."},
			{Name: "pragmatist", Instructions: "Keep it simple."},
			{Name: "recorder", Instructions: "Write it down.", Recorder: true},
		},
		MaxRounds:   3,
		ContextMode: ContextShared,
	}
}

func TestValidateAcceptsWellFormedMeeting(t *testing.T) {
	require.NoError(t, validMeeting().Validate())
}

func TestValidateRejectsBadConfigurations(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Meeting)
		field  string
	}{
		{
			name:   "empty topic",
			mutate: func(m *Meeting) { m.Topic = "   " },
			field:  "topic",
		},
		{
			name:   "zero round cap",
			mutate: func(m *Meeting) { m.MaxRounds = 0 },
			field:  "max_rounds",
		},
		{
			name:   "empty roster",
			mutate: func(m *Meeting) { m.Roles = nil },
			field:  "roles",
		},
		{
			name: "duplicate role name",
			mutate: func(m *Meeting) {
				m.Roles = append(m.Roles, RoleDescriptor{Name: "architect"})
			},
			field: "roles",
		},
		{
			name: "no recorder",
			mutate: func(m *Meeting) {
				m.Roles[2].Recorder = false
			},
			field: "roles",
		},
		{
			name: "two recorders",
			mutate: func(m *Meeting) {
				m.Roles[0].Recorder = true
			},
			field: "roles",
		},
		{
			name:   "unknown context mode",
			mutate: func(m *Meeting) { m.ContextMode = "telepathic" },
			field:  "context_mode",
		},
		{
			name: "parallel role outside roster",
			mutate: func(m *Meeting) {
				m.Parallel = Parallelism{Enabled: true, Roles: []string{"ghost"}}
			},
			field: "parallel.roles",
		},
		{
			name: "negative parallel limit",
			mutate: func(m *Meeting) {
				m.Parallel = Parallelism{Enabled: true, Limit: -1}
			},
			field: "parallel.limit",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := validMeeting()
			tt.mutate(&m)
			err := m.Validate()
			require.Error(t, err)
			var cfgErr *ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestOverridesApplyMergesOnlySetFields(t *testing.T) {
	m := validMeeting()

	rounds := 7
	mode := ContextLayered
	merged := (&Overrides{MaxRounds: &rounds, ContextMode: &mode}).Apply(m)

	assert.Equal(t, 7, merged.MaxRounds)
	assert.Equal(t, ContextLayered, merged.ContextMode)
	assert.Equal(t, m.Topic, merged.Topic)
	assert.Equal(t, 0, merged.PauseOnRound)

	// The source meeting is untouched.
	assert.Equal(t, 3, m.MaxRounds)
	assert.Equal(t, ContextShared, m.ContextMode)

	var none *Overrides
	assert.Equal(t, m, none.Apply(m))
}

func TestRecorderAndRoleLookup(t *testing.T) {
	m := validMeeting()

	rec, ok := m.Recorder()
	require.True(t, ok)
	assert.Equal(t, "recorder", rec.Name)

	role, ok := m.Role("pragmatist")
	require.True(t, ok)
	assert.Equal(t, "pragmatist", role.Name)

	_, ok = m.Role("ghost")
	assert.False(t, ok)
}

func TestUserTaskRendersBackgroundAndConstraints(t *testing.T) {
	m := validMeeting()
	m.Background = "Greenfield project."
	m.Constraints = []string{"budget under 10k", "single region"}

	task := m.UserTask()
	assert.Contains(t, task, "Topic: Pick a message broker")
	assert.Contains(t, task, "Background: Greenfield project.")
	assert.Contains(t, task, "- budget under 10k")
	assert.Contains(t, task, "- single region")
}
