package conclave

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conclave-dev/conclave/core"
	"github.com/conclave-dev/conclave/internal/testutil"
	"github.com/conclave-dev/conclave/runner"
)

func TestStartSyncRunsAMeetingToCompletion(t *testing.T) {
	meeting := testutil.NewMeetingBuilder("pick a queue").
		Role("architect", "design first").
		Role("pragmatist", "cost first").
		Recorder("recorder").
		MaxRounds(2).
		Build()

	r := runner.NewScriptRunner().
		Script("architect", testutil.RoleJSON("adopt the queue")).
		Script("pragmatist", testutil.RoleJSON("adopt the queue")).
		Script("recorder", testutil.SummaryJSON("agreed"), testutil.BundleJSON("adopt the queue"))

	c := New(r)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	runID, events, err := c.StartSync(ctx, meeting, nil)
	require.NoError(t, err)
	require.NotEmpty(t, runID)
	assert.NotEmpty(t, events)
	assert.Equal(t, core.EventFinished, events[len(events)-1].Type)

	run, err := c.Run(runID)
	require.NoError(t, err)
	assert.Equal(t, core.RunStatusDone, run.Status)

	artifacts, err := c.Artifacts(runID)
	require.NoError(t, err)
	types := make(map[core.ArtifactType]bool, len(artifacts))
	for _, a := range artifacts {
		types[a.Type] = true
	}
	for _, required := range core.RequiredArtifacts {
		assert.True(t, types[required], "missing artifact %s", required)
	}
}

func TestStartSyncSurfacesConfigErrors(t *testing.T) {
	meeting := testutil.NewMeetingBuilder("no recorder").
		Role("solo", "alone").
		Build()

	c := New(runner.NewScriptRunner())
	_, _, err := c.StartSync(context.Background(), meeting, nil)
	var cfgErr *core.ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestAbandonFailsAPausedRun(t *testing.T) {
	meeting := testutil.NewMeetingBuilder("approval gate").
		Role("architect", "design first").
		Recorder("recorder").
		MaxRounds(3).
		Termination(core.Termination{MinRounds: 3}).
		PauseOnRound(1).
		Build()

	r := runner.NewScriptRunner().
		Script("architect", testutil.RoleJSON("undecided")).
		Script("recorder", testutil.SummaryJSON("round one"), testutil.BundleJSON("undecided"))

	c := New(r)
	runID, events, errs, err := c.Start(context.Background(), meeting, nil)
	require.NoError(t, err)

	paused := false
	for ev := range events {
		if ev.Type == core.EventPause {
			paused = true
			require.NoError(t, c.Abandon(runID))
		}
	}
	require.True(t, paused)
	<-errs

	run, err := c.Run(runID)
	require.NoError(t, err)
	assert.Equal(t, core.RunStatusFailed, run.Status)
}
