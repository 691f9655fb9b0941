package main

import (
	"fmt"
	"os"

	"github.com/maggot-ml/maggot/cmd"
	"github.com/maggot-ml/maggot/internal/logging"
	"github.com/maggot-ml/maggot/internal/runner"
	"github.com/rs/zerolog/log"
)

func main() {
	// Logging is configured before cobra parses flags, so scan for the flag
	// by hand. Everything after "--" belongs to the command being run.
	isVerbose := false
	for _, arg := range os.Args[1:] {
		if arg == "--" {
			break
		}
		if arg == "--verbose" || arg == "-v" {
			isVerbose = true
		}
	}

	err := logging.ConfigureGlobalLogger(isVerbose, "")
	if err != nil {
		// Fallback to basic stderr if logger setup fails
		fmt.Fprintf(os.Stderr, "FATAL: Failed to initialize logging: %v\n", err)
		os.Exit(1)
	}

	cmd.SetDependencies(&cmd.AppDependencies{
		RunCommand: runner.Run,
	})

	log.Debug().Msg("Starting maggot CLI command execution")
	cmd.Execute()
}
