package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/maggot-ml/maggot/experiment"
	"github.com/maggot-ml/maggot/internal/log"
	"github.com/maggot-ml/maggot/internal/logging"
	"github.com/maggot-ml/maggot/internal/runner"
	"github.com/maggot-ml/maggot/types"
	zlog "github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var Verbose bool

var rootCmd = &cobra.Command{
	Use:   "maggot",
	Short: "Maggot runs experiments in isolated, reproducible run directories",
	Long: `Maggot gives every run of an experiment its own directory, freezes the
configuration it was started with, and records how it ended in run.yml.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	cobra.OnInitialize(initSettings)

	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&Verbose, "verbose", "v", false, "Enable verbose logs to stderr")
	flags.String("runs-dir", experiment.DefaultBaseDir, "Directory that holds run roots")
	flags.Int("max-suffix", experiment.DefaultMaxSuffix, "Largest numeric suffix tried when a run name is taken")

	cobra.CheckErr(viper.BindPFlag("verbose", flags.Lookup("verbose")))
	cobra.CheckErr(viper.BindPFlag("runs_dir", flags.Lookup("runs-dir")))
	cobra.CheckErr(viper.BindPFlag("max_suffix", flags.Lookup("max-suffix")))
}

// initSettings layers MAGGOT_* environment variables and an optional
// .maggot.yaml under the command line flags.
func initSettings() {
	viper.SetEnvPrefix("MAGGOT")
	viper.AutomaticEnv()

	viper.SetConfigName(".maggot")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(home)
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			zlog.Warn().Err(err).Msg("Ignoring unreadable settings file")
		}
	} else {
		zlog.Debug().Str("file", viper.ConfigFileUsed()).Msg("Loaded settings file")
	}

	// The flag was pre-scanned in main; the environment or the settings
	// file can still turn verbose logging on.
	if viper.GetBool("verbose") && !Verbose {
		Verbose = true
		if err := logging.ConfigureGlobalLogger(true, ""); err != nil {
			zlog.Warn().Err(err).Msg("Failed to reconfigure logging")
		}
	}
}

// settingString returns a CLI setting, or fallback when neither a flag, the
// environment nor the settings file set it.
func settingString(key, fallback string) string {
	if fallback != "" && !viper.IsSet(key) {
		return fallback
	}
	return viper.GetString(key)
}

func settingInt(key string, fallback int) int {
	if fallback != 0 && !viper.IsSet(key) {
		return fallback
	}
	return viper.GetInt(key)
}

func newConsole(jsonOutput bool) *log.Console {
	style := types.StyleHuman
	if jsonOutput {
		style = types.StyleMachineJSON
	} else if Verbose {
		style = types.StyleHumanVerbose
	}
	return log.NewConsole(style)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "✖ %v\n", err)

		var exitErr *runner.ExitError
		if errors.As(err, &exitErr) && exitErr.Code > 0 {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}
