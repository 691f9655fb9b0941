package cmd

import (
	"bytes"
	"testing"
	"time"

	"github.com/maggot-ml/maggot/experiment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateRunsSummary(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	runs := []experiment.Metadata{
		{Name: "exp", Status: experiment.StatusFinished, Root: "/x/exp", StartedAt: t0, DurationMs: 1500,
			Annotations: experiment.ConfigValues{"exit_code": 0}},
		{Name: "exp", Status: experiment.StatusFailed, Root: "/x/exp-1", StartedAt: t0.Add(time.Hour), Error: "loss is NaN",
			Annotations: experiment.ConfigValues{"exit_code": 1}},
		{Name: "svm", Status: experiment.StatusActive, Root: "/x/svm", StartedAt: t0.Add(2 * time.Hour)},
	}

	summary := generateRunsSummary("/x", runs)
	assert.Equal(t, "/x", summary.RunsDir)
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 1, summary.Finished)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Active)

	require.Len(t, summary.Runs, 3)
	require.NotNil(t, summary.Runs[0].ExitCode)
	assert.Equal(t, 0, *summary.Runs[0].ExitCode)
	assert.Nil(t, summary.Runs[2].ExitCode)

	require.NotNil(t, summary.LastFailure)
	assert.Equal(t, "/x/exp-1", summary.LastFailure.Root)
	assert.Equal(t, "loss is NaN", summary.LastFailure.Error)

	var buf bytes.Buffer
	writeRunsTable(&buf, summary)
	assert.Contains(t, buf.String(), "/x/exp-1")
	assert.Contains(t, buf.String(), "3 runs: 1 finished, 1 failed, 1 active")
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "-", formatDuration(0))
	assert.Equal(t, "1.5s", formatDuration(1500))
	assert.Equal(t, "1m30s", formatDuration(90000))
}
