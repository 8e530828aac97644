package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conclave-dev/conclave/config"
	"github.com/conclave-dev/conclave/core"
	"github.com/conclave-dev/conclave/model"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "conclave")
	assert.Contains(t, out, Version)
}

func TestRunRequiresMeetingFlag(t *testing.T) {
	_, err := execute(t, "run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "meeting")
}

func TestRunRejectsMissingMeetingFile(t *testing.T) {
	t.Setenv("CONCLAVE_PROVIDER", "mock")
	_, err := execute(t, "run", "--meeting", "does-not-exist.json")
	require.Error(t, err)
}

func TestBuildOverrides(t *testing.T) {
	assert.Nil(t, buildOverrides(runFlags{}))

	o := buildOverrides(runFlags{maxRounds: 4, layered: true, maxCalls: 10})
	require.NotNil(t, o)
	assert.Equal(t, 4, *o.MaxRounds)
	assert.Equal(t, core.ContextLayered, *o.ContextMode)
	assert.Equal(t, 10, *o.MaxModelCalls)
	assert.Nil(t, o.PauseOnRound)
}

func TestBuildModelSelectsProvider(t *testing.T) {
	m, err := buildModel(&config.Config{Provider: config.ProviderMock})
	require.NoError(t, err)
	_, ok := m.(*model.MockModel)
	assert.True(t, ok)

	_, err = buildModel(&config.Config{Provider: "smoke-signals"})
	require.Error(t, err)
	var cfgErr *core.ConfigError
	require.ErrorAs(t, err, &cfgErr)
}
