package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/maggot-ml/maggot/experiment"
	"github.com/maggot-ml/maggot/internal/log"
	"github.com/maggot-ml/maggot/internal/runner"
	"github.com/maggot-ml/maggot/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetRunFlags(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		runFile, runName, runFrom = "", "", ""
		runSet, runDirs = nil, nil
		runQuiet = false
	})
}

func withRunner(t *testing.T, fn CommandRunner) {
	t.Helper()
	saved := appDependencies
	SetDependencies(&AppDependencies{RunCommand: fn})
	t.Cleanup(func() { appDependencies = saved })
}

func testConsole() (*log.Console, *bytes.Buffer) {
	var out bytes.Buffer
	return &log.Console{OutputStyle: types.StyleHuman, Out: &out, Err: &out}, &out
}

func TestPlanRunFromFile(t *testing.T) {
	resetRunFlags(t)

	path := filepath.Join(t.TempDir(), "experiment.yml")
	require.NoError(t, os.WriteFile(path, []byte(`name: svm
runs_dir: out
directories: [plots]
config:
  c: 10
  gamma: 0.01
`), 0o644))

	runFile = path
	runSet = []string{"c=3"}
	runDirs = []string{"extra"}

	plan, err := planRun()
	require.NoError(t, err)
	assert.Equal(t, path, plan.source)
	assert.Equal(t, "svm", plan.name)
	assert.Equal(t, "out", plan.runsDir)
	assert.Equal(t, experiment.DefaultMaxSuffix, plan.maxSuffix)
	assert.Equal(t, []string{"plots", "extra"}, plan.directories)
	assert.Equal(t, map[string]any{"c": 10, "gamma": 0.01}, plan.config)
	assert.Equal(t, map[string]any{"c": 3}, plan.overrides)

	t.Run("Name flag wins", func(t *testing.T) {
		runName = "svm-small"
		plan, err := planRun()
		require.NoError(t, err)
		assert.Equal(t, "svm-small", plan.name)
	})
}

func TestPlanRunErrors(t *testing.T) {
	resetRunFlags(t)

	t.Run("Invalid override", func(t *testing.T) {
		runFile = ""
		runFrom = ""
		runSet = []string{"novalue"}
		_, err := planRun()
		assert.ErrorIs(t, err, experiment.ErrConfig)
	})

	t.Run("Invalid experiment file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "experiment.yml")
		require.NoError(t, os.WriteFile(path, []byte("max_suffix: -1\n"), 0o644))
		runFile = path
		runSet = nil
		_, err := planRun()
		assert.ErrorIs(t, err, experiment.ErrConfig)
	})

	t.Run("Missing previous run", func(t *testing.T) {
		runFile = ""
		runFrom = filepath.Join(t.TempDir(), "gone")
		_, err := planRun()
		assert.ErrorIs(t, err, experiment.ErrDirectory)
	})
}

func TestPlanRunFromPreviousRun(t *testing.T) {
	resetRunFlags(t)

	var root string
	err := experiment.Run(context.Background(), map[string]any{"c": 10}, func(_ context.Context, exp *experiment.Experiment) error {
		root = exp.Root()
		_, err := exp.RegisterDirectory(runner.LogsDir)
		return err
	},
		experiment.WithBaseDir(t.TempDir()),
		experiment.WithName("svm"),
		experiment.WithDirectories("samples"),
		experiment.WithLogger(zerolog.Nop()),
	)
	require.NoError(t, err)

	runFrom = root
	plan, err := planRun()
	require.NoError(t, err)
	assert.Equal(t, "svm", plan.name)
	assert.Equal(t, map[string]any{"c": 10}, plan.config)
	assert.Equal(t, []string{"samples"}, plan.directories)
	assert.Equal(t, filepath.Join(root, experiment.MetadataFile), plan.source)
}

func testPlan(t *testing.T) *runPlan {
	return &runPlan{
		config:      map[string]any{"c": 10},
		name:        "exp",
		runsDir:     t.TempDir(),
		maxSuffix:   experiment.DefaultMaxSuffix,
		directories: []string{"samples"},
	}
}

func TestExecuteRun(t *testing.T) {
	resetRunFlags(t)

	t.Run("Successful command", func(t *testing.T) {
		var seen []string
		withRunner(t, func(ctx context.Context, exp *experiment.Experiment, command []string, opts runner.Options) error {
			seen = command
			_, err := exp.Directory("samples")
			return err
		})

		plan := testPlan(t)
		console, out := testConsole()
		require.NoError(t, executeRun(context.Background(), plan, []string{"python", "train.py"}, console))
		assert.Equal(t, []string{"python", "train.py"}, seen)

		root := filepath.Join(plan.runsDir, "exp")
		md, err := experiment.ReadMetadata(root)
		require.NoError(t, err)
		assert.Equal(t, experiment.StatusFinished, md.Status)
		assert.Equal(t, experiment.ConfigValues{"c": 10}, md.Config)
		assert.FileExists(t, filepath.Join(root, RunLogFile))
		assert.Contains(t, out.String(), `✓ run "exp" finished in `+root)
	})

	t.Run("Failing command", func(t *testing.T) {
		cmdErr := &runner.ExitError{Code: 2, Err: errors.New("exit status 2")}
		withRunner(t, func(context.Context, *experiment.Experiment, []string, runner.Options) error {
			return cmdErr
		})

		plan := testPlan(t)
		console, out := testConsole()
		err := executeRun(context.Background(), plan, []string{"false"}, console)
		assert.Same(t, cmdErr, err)

		md, readErr := experiment.ReadMetadata(filepath.Join(plan.runsDir, "exp"))
		require.NoError(t, readErr)
		assert.Equal(t, experiment.StatusFailed, md.Status)
		assert.Equal(t, "command exited with code 2", md.Error)
		assert.Contains(t, out.String(), `✖ run "exp" failed`)
	})

	t.Run("Run that cannot start", func(t *testing.T) {
		called := false
		withRunner(t, func(context.Context, *experiment.Experiment, []string, runner.Options) error {
			called = true
			return nil
		})

		plan := testPlan(t)
		plan.directories = []string{"../escape"}
		console, _ := testConsole()
		err := executeRun(context.Background(), plan, []string{"true"}, console)
		assert.ErrorIs(t, err, experiment.ErrDirectory)
		assert.False(t, called)
	})
}
