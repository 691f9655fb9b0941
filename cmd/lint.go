package cmd

import (
	"fmt"
	"os"

	"github.com/maggot-ml/maggot/internal/config"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(lintCmd)
}

var lintCmd = &cobra.Command{
	Use:   "lint [FILE]",
	Short: "Validate an experiment file",
	Long: `Lint checks an experiment file (YAML, TOML or JSON) without starting a run.
It validates the run name, the runs directory, the directories to register and
every option value, and reports all problems at once.

Without FILE, experiment.yml, .yaml, .toml or .json in the current directory is used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		lintFile := config.FindExperimentFile(".")
		if len(args) > 0 {
			lintFile = args[0]
		}
		if lintFile == "" {
			return fmt.Errorf("no experiment file found in the current directory")
		}

		console := newConsole(false)
		console.Info("Linting file: %s", lintFile)

		if _, err := config.LoadExperimentFile(lintFile); err != nil {
			fmt.Fprintf(os.Stderr, "✖ Validation failed: %v\n", err)
			os.Exit(1)
		}

		console.Info("✓ %s is valid!", lintFile)
		return nil
	},
}
