package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conclave-dev/conclave/core"
)

func TestPutIsLatestWinsPerRole(t *testing.T) {
	s := NewInMemoryStore()
	require.NoError(t, s.Put("run-1", "architect", core.PrivateMemory{Notes: []string{"first"}}))
	require.NoError(t, s.Put("run-1", "architect", core.PrivateMemory{Notes: []string{"second"}}))

	m, ok, err := s.Get("run-1", "architect")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"second"}, m.Notes)
}

func TestGetMissingSnapshot(t *testing.T) {
	s := NewInMemoryStore()
	_, ok, err := s.Get("run-1", "architect")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSnapshotsAreCopiedBothWays(t *testing.T) {
	s := NewInMemoryStore()
	src := core.PrivateMemory{Assumptions: []string{"original"}}
	require.NoError(t, s.Put("run-1", "architect", src))

	// Mutating the source after Put does not affect the store.
	src.Assumptions[0] = "mutated"
	got, ok, err := s.Get("run-1", "architect")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "original", got.Assumptions[0])

	// Mutating a read value does not affect later reads.
	got.Assumptions[0] = "mutated again"
	again, _, err := s.Get("run-1", "architect")
	require.NoError(t, err)
	assert.Equal(t, "original", again.Assumptions[0])
}

func TestListReturnsAllRolesForRun(t *testing.T) {
	s := NewInMemoryStore()
	require.NoError(t, s.Put("run-1", "architect", core.PrivateMemory{Notes: []string{"a"}}))
	require.NoError(t, s.Put("run-1", "pragmatist", core.PrivateMemory{Notes: []string{"p"}}))
	require.NoError(t, s.Put("run-2", "architect", core.PrivateMemory{Notes: []string{"other"}}))

	all, err := s.List("run-1")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, []string{"a"}, all["architect"].Notes)
	assert.Equal(t, []string{"p"}, all["pragmatist"].Notes)
}
