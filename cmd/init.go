package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/maggot-ml/maggot/experiment"
	"github.com/maggot-ml/maggot/internal/config"
	"github.com/maggot-ml/maggot/internal/templates"
	"github.com/maggot-ml/maggot/utils"
	"github.com/spf13/cobra"
)

var (
	initNoTUI bool
	initDirs  []string
)

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().BoolVar(&initNoTUI, "no-tui", false, "Do not prompt; use the arguments and defaults")
	initCmd.Flags().StringArrayVar(&initDirs, "dir", nil, "Directory to register in every run (repeatable)")
}

var initCmd = &cobra.Command{
	Use:   "init [NAME]",
	Args:  cobra.MaximumNArgs(1),
	Short: "Scaffold an experiment file",
	Long: `Initialize an experiment in the current directory by writing a starter
experiment.yml and creating the runs directory.

Without --no-tui an interactive prompt collects the experiment name, the runs
directory and the directories every run should have. NAME defaults to the
name of the current directory.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults := initAnswers{
			Name:        defaultExperimentName(args),
			RunsDir:     settingString("runs_dir", experiment.DefaultBaseDir),
			Directories: initDirs,
		}

		answers := defaults
		if !initNoTUI {
			var canceled bool
			answers, canceled = RunInitTUI(defaults)
			if canceled {
				fmt.Println("✖ maggot init canceled.")
				return nil
			}
		}

		outPath := config.DefaultExperimentFiles[0]
		utils.MustNotExist(outPath)

		if err := scaffoldExperiment(".", answers); err != nil {
			return err
		}

		fmt.Printf("✓ experiment %q initialized, run it with: maggot run -- <command>\n", answers.Name)
		return nil
	},
}

func defaultExperimentName(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "experiment"
	}
	return filepath.Base(cwd)
}

// scaffoldExperiment writes experiment.yml into dir and creates the runs
// directory. The answers are validated the same way the file is on load.
func scaffoldExperiment(dir string, answers initAnswers) error {
	expFile := &config.ExperimentFile{
		Name:        answers.Name,
		RunsDir:     answers.RunsDir,
		Directories: answers.Directories,
	}
	if err := config.ValidateExperimentFile(expFile); err != nil {
		return err
	}

	fmt.Printf("↪ scaffolding experiment %q ...\n", answers.Name)

	data := map[string]any{
		"Name":        answers.Name,
		"RunsDir":     answers.RunsDir,
		"Directories": answers.Directories,
	}
	outPath := filepath.Join(dir, config.DefaultExperimentFiles[0])
	if err := templates.WriteTpl(templates.ExperimentTpl, outPath, data); err != nil {
		return err
	}

	runsDir := answers.RunsDir
	if !filepath.IsAbs(runsDir) {
		runsDir = filepath.Join(dir, runsDir)
	}
	utils.MkDir(runsDir)
	return nil
}
