package cmd

import (
	"context"

	"github.com/maggot-ml/maggot/experiment"
	"github.com/maggot-ml/maggot/internal/runner"
)

// CommandRunner executes a command inside an active experiment.
type CommandRunner func(ctx context.Context, exp *experiment.Experiment, command []string, opts runner.Options) error

type AppDependencies struct {
	RunCommand CommandRunner
}

var appDependencies *AppDependencies

// SetDependencies allows for injecting application dependencies
func SetDependencies(deps *AppDependencies) {
	if deps == nil || deps.RunCommand == nil {
		panic("critical error: attempted to set nil dependencies or command runner")
	}
	appDependencies = deps
}

// GetDependencies provides access to the dependencies.
// Panics if dependencies haven't been set (indicates setup error).
func GetDependencies() *AppDependencies {
	if appDependencies == nil {
		panic("critical error: application dependencies not set before access")
	}
	return appDependencies
}
