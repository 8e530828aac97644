package runstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conclave-dev/conclave/core"
)

func TestCreateRejectsDuplicateID(t *testing.T) {
	s := NewInMemoryStore()
	run := core.NewRun("meeting-1")
	require.NoError(t, s.Create(run))

	err := s.Create(run)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestUpdateRequiresExistingRun(t *testing.T) {
	s := NewInMemoryStore()
	run := core.NewRun("meeting-1")
	require.Error(t, s.Update(run))

	require.NoError(t, s.Create(run))
	run.Status = core.RunStatusDone
	run.Round = 3
	require.NoError(t, s.Update(run))

	got, err := s.Get(run.ID)
	require.NoError(t, err)
	assert.Equal(t, core.RunStatusDone, got.Status)
	assert.Equal(t, 3, got.Round)
}

func TestGetUnknownRun(t *testing.T) {
	s := NewInMemoryStore()
	_, err := s.Get("run-missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
