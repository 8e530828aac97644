package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrivateMemoryCloneIsIndependent(t *testing.T) {
	m := &PrivateMemory{
		Assumptions: []string{"single region"},
		RiskPool:    []string{"queue overload"},
	}
	cp := m.Clone()
	require.NotNil(t, cp)

	cp.Assumptions[0] = "mutated"
	cp.RiskPool = append(cp.RiskPool, "extra")

	assert.Equal(t, "single region", m.Assumptions[0])
	assert.Len(t, m.RiskPool, 1)

	var nilMem *PrivateMemory
	assert.Nil(t, nilMem.Clone())
}

func TestTrimKeepsLatestEntries(t *testing.T) {
	m := &PrivateMemory{
		Notes:  []string{"n1", "n2", "n3", "n4"},
		Drafts: []string{"d1"},
	}
	m.Trim(2)
	assert.Equal(t, []string{"n3", "n4"}, m.Notes)
	assert.Equal(t, []string{"d1"}, m.Drafts)

	// Non-positive max leaves everything untouched.
	m.Trim(0)
	assert.Len(t, m.Notes, 2)
}

func TestSynthesisRendersOnlyNonEmptySections(t *testing.T) {
	m := &PrivateMemory{
		Assumptions:   []string{"traffic stays under 1k rps"},
		PendingChecks: []string{"confirm SLA with vendor"},
	}
	text := m.Synthesis()
	assert.Contains(t, text, "Assumptions:\n- traffic stays under 1k rps")
	assert.Contains(t, text, "Pending checks:\n- confirm SLA with vendor")
	assert.NotContains(t, text, "Risk pool")
	assert.NotContains(t, text, "Drafts")

	var nilMem *PrivateMemory
	assert.Equal(t, "", nilMem.Synthesis())
	assert.Equal(t, "", (&PrivateMemory{}).Synthesis())
}
