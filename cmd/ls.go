package cmd

import (
	"github.com/maggot-ml/maggot/experiment"
	"github.com/maggot-ml/maggot/internal/config"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var lsJSON bool

func init() {
	rootCmd.AddCommand(lsCmd)
	lsCmd.Flags().BoolVar(&lsJSON, "json", false, "Print the listing as JSON")
}

var lsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List runs in the runs directory",
	Long: `Ls reads run.yml from every run directory under the runs directory and lists
the runs by start time. Directories without a readable run.yml are skipped.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		runsDir := settingString("runs_dir", experimentRunsDir())

		runs, err := experiment.ListRuns(runsDir)
		if err != nil {
			return err
		}
		summary := generateRunsSummary(runsDir, runs)

		console := newConsole(lsJSON)
		if lsJSON {
			return console.Json(summary)
		}
		if summary.Total == 0 {
			console.Info("No runs in %s", runsDir)
			return nil
		}
		writeRunsTable(console.Out, summary)
		return nil
	},
}

// experimentRunsDir is the runs directory named by the experiment file in
// the current directory, if any.
func experimentRunsDir() string {
	path := config.FindExperimentFile(".")
	if path == "" {
		return experiment.DefaultBaseDir
	}
	expFile, err := config.LoadExperimentFile(path)
	if err != nil {
		log.Debug().Err(err).Str("file", path).Msg("Ignoring invalid experiment file")
		return experiment.DefaultBaseDir
	}
	if expFile.RunsDir == "" {
		return experiment.DefaultBaseDir
	}
	return expFile.RunsDir
}
