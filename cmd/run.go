package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/maggot-ml/maggot/experiment"
	"github.com/maggot-ml/maggot/internal/config"
	"github.com/maggot-ml/maggot/internal/log"
	"github.com/maggot-ml/maggot/internal/logging"
	"github.com/maggot-ml/maggot/internal/runner"
	"github.com/maggot-ml/maggot/types"
	zlog "github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// RunLogFile is the JSON log of the CLI written into each run root.
const RunLogFile = "maggot.log"

var (
	runFile  string
	runName  string
	runSet   []string
	runDirs  []string
	runFrom  string
	runQuiet bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFile, "file", "f", "", "Experiment file (default: experiment.yml, .yaml, .toml or .json in the current directory)")
	runCmd.Flags().StringVar(&runName, "name", "", "Run name (default: name from the experiment file or derived from options)")
	runCmd.Flags().StringArrayVar(&runSet, "set", nil, "Override an option, as key=value (repeatable)")
	runCmd.Flags().StringArrayVar(&runDirs, "dir", nil, "Register an extra run directory (repeatable)")
	runCmd.Flags().StringVar(&runFrom, "from", "", "Rerun with the options and name of a previous run directory")
	runCmd.Flags().BoolVarP(&runQuiet, "quiet", "q", false, "Do not echo command output; show a spinner instead")
	runCmd.MarkFlagsMutuallyExclusive("file", "from")

	// Everything after the command name belongs to the command.
	runCmd.Flags().SetInterspersed(false)
}

var runCmd = &cobra.Command{
	Use:   "run [flags] [--] COMMAND [ARGS...]",
	Short: "Run a command inside a new experiment run",
	Long: `Run creates a fresh run directory under the runs directory, freezes the
experiment options into run.yml and executes COMMAND inside it.

The command receives the run through MAGGOT_* environment variables:
  MAGGOT_RUN_ID, MAGGOT_RUN_NAME, MAGGOT_RUN_ROOT, MAGGOT_METADATA,
  MAGGOT_DIR_<NAME> for every registered directory and
  MAGGOT_CONFIG_<KEY> for every top-level scalar option.

Its output is saved under logs/ in the run directory and the run is marked
finished or failed from its exit code. Maggot exits with the same code.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		plan, err := planRun()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return executeRun(ctx, plan, args, newConsole(false))
	},
}

// runPlan is everything needed to start an experiment, resolved from the
// experiment file, a previous run and the command line.
type runPlan struct {
	source      string
	config      map[string]any
	overrides   map[string]any
	name        string
	runsDir     string
	maxSuffix   int
	directories []string
}

func planRun() (*runPlan, error) {
	plan := &runPlan{}

	switch {
	case runFrom != "":
		md, err := experiment.ReadMetadata(runFrom)
		if err != nil {
			return nil, fmt.Errorf("failed to load previous run %q: %w", runFrom, err)
		}
		plan.source = filepath.Join(runFrom, experiment.MetadataFile)
		plan.config = md.Config
		plan.name = md.Name
		for name := range md.Directories {
			if name != runner.LogsDir {
				plan.directories = append(plan.directories, name)
			}
		}
	default:
		path := runFile
		if path == "" {
			path = config.FindExperimentFile(".")
		}
		if path != "" {
			expFile, err := config.LoadExperimentFile(path)
			if err != nil {
				return nil, err
			}
			plan.source = path
			plan.config = expFile.Config
			plan.name = expFile.Name
			plan.runsDir = expFile.RunsDir
			plan.maxSuffix = expFile.MaxSuffix
			plan.directories = expFile.Directories
		}
	}

	overrides, err := config.ParseOverrides(runSet)
	if err != nil {
		return nil, err
	}
	plan.overrides = overrides

	if runName != "" {
		plan.name = runName
	}
	plan.runsDir = settingString("runs_dir", plan.runsDir)
	plan.maxSuffix = settingInt("max_suffix", plan.maxSuffix)
	plan.directories = append(plan.directories, runDirs...)

	return plan, nil
}

func (p *runPlan) options() []experiment.Option {
	opts := []experiment.Option{
		experiment.WithBaseDir(p.runsDir),
		experiment.WithMaxSuffix(p.maxSuffix),
		experiment.WithOverrides(p.overrides),
		experiment.WithDirectories(p.directories...),
		experiment.WithInitiator(types.LocalInitiator()),
	}
	if p.name != "" {
		opts = append(opts, experiment.WithName(p.name))
	}
	return opts
}

func executeRun(ctx context.Context, plan *runPlan, command []string, console *log.Console) error {
	if plan.source != "" {
		console.Verbose("Using options from %s", plan.source)
	} else {
		console.Verbose("No experiment file found; running with command line options only")
	}

	var runLog io.Closer
	defer func() {
		if runLog != nil {
			runLog.Close()
		}
	}()

	runOpts := runner.Options{Stdout: os.Stdout, Stderr: os.Stderr}
	if runQuiet {
		runOpts = runner.Options{}
	}

	var active *experiment.Experiment
	err := experiment.Run(ctx, plan.config, func(ctx context.Context, exp *experiment.Experiment) error {
		active = exp

		var err error
		runLog, err = logging.AttachRunLog(filepath.Join(exp.Root(), RunLogFile))
		if err != nil {
			// The run itself is still usable without its CLI log.
			zlog.Warn().Err(err).Msg("Failed to attach run log")
		}

		logCtx := zlog.With().Str("run_id", exp.ID().String()).Str("run_name", exp.Name()).Logger()
		logCtx.Info().Msgf("Run directory: %s", exp.Root())
		console.Info("↪ run %q started in %s", exp.Name(), exp.Root())

		if runQuiet {
			console.StartSpinner(fmt.Sprintf("running %s ...", command[0]))
			defer console.StopSpinner()
		}

		return GetDependencies().RunCommand(ctx, exp, command, runOpts)
	}, plan.options()...)

	if active == nil {
		// The run never started; there is no directory to point at.
		return err
	}
	if err != nil {
		console.Info("✖ run %q failed, details in %s", active.Name(), filepath.Join(active.Root(), experiment.MetadataFile))
		return err
	}

	console.Info("✓ run %q finished in %s", active.Name(), active.Root())
	return nil
}
