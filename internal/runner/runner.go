package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/maggot-ml/maggot/experiment"
	"github.com/rs/zerolog/log"
)

// LogsDir is registered in every run that executes a command.
const LogsDir = "logs"

type Options struct {
	// Dir is the working directory of the command. Empty means the current one.
	Dir string

	// Stdout and Stderr receive a copy of the command output in addition to
	// the files under logs/. Nil writers are skipped.
	Stdout io.Writer
	Stderr io.Writer
}

// ExitError reports a command that ran but did not exit cleanly.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Code < 0 {
		return fmt.Sprintf("command terminated: %v", e.Err)
	}
	return fmt.Sprintf("command exited with code %d", e.Code)
}

func (e *ExitError) Unwrap() error { return e.Err }

// Run executes command inside the active experiment exp. Output is written to
// logs/stdout.log and logs/stderr.log under the run root, and the command and
// its exit code are recorded as annotations.
func Run(ctx context.Context, exp *experiment.Experiment, command []string, opts Options) error {
	if len(command) == 0 {
		return fmt.Errorf("%w: no command given", experiment.ErrConfig)
	}

	logger := log.With().Str("component", "runner").Str("run_name", exp.Name()).Logger()

	logsDir, err := exp.RegisterDirectory(LogsDir)
	if err != nil {
		return err
	}

	env, err := BuildEnv(exp)
	if err != nil {
		return err
	}

	stdoutFile, err := os.Create(filepath.Join(logsDir, "stdout.log"))
	if err != nil {
		return fmt.Errorf("%w: failed to create stdout log: %v", experiment.ErrDirectory, err)
	}
	defer stdoutFile.Close()

	stderrFile, err := os.Create(filepath.Join(logsDir, "stderr.log"))
	if err != nil {
		return fmt.Errorf("%w: failed to create stderr log: %v", experiment.ErrDirectory, err)
	}
	defer stderrFile.Close()

	if err := exp.Annotate("command", command); err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, command[0], command[1:]...)
	cmd.Env = append(os.Environ(), env...)
	cmd.Dir = opts.Dir
	cmd.Stdin = os.Stdin
	cmd.Stdout = tee(stdoutFile, opts.Stdout)
	cmd.Stderr = tee(stderrFile, opts.Stderr)

	logger.Info().Strs("command", command).Str("logs", logsDir).Msg("Running command")
	startTime := time.Now()

	runErr := cmd.Run()
	durationMs := time.Since(startTime).Milliseconds()

	var exitErr *exec.ExitError
	if runErr != nil && !errors.As(runErr, &exitErr) {
		logger.Error().Err(runErr).Msg("Command could not be started")
		return fmt.Errorf("failed to start command %q: %w", command[0], runErr)
	}

	exitCode := cmd.ProcessState.ExitCode()
	if err := exp.Annotate("exit_code", exitCode); err != nil {
		return err
	}
	if err := exp.Annotate("command_duration_ms", durationMs); err != nil {
		return err
	}

	if runErr != nil {
		logger.Error().Int("exit_code", exitCode).Int64("duration_ms", durationMs).Msg("Command failed")
		return &ExitError{Code: exitCode, Err: runErr}
	}

	logger.Info().Int64("duration_ms", durationMs).Msg("Command finished successfully")
	return nil
}

// BuildEnv returns the MAGGOT_* variables describing the active experiment
// exp, sorted by name.
func BuildEnv(exp *experiment.Experiment) ([]string, error) {
	snap, err := exp.Config()
	if err != nil {
		return nil, err
	}
	dirs, err := exp.Directories()
	if err != nil {
		return nil, err
	}

	root := exp.Root()
	env := []string{
		"MAGGOT_RUN_ID=" + exp.ID().String(),
		"MAGGOT_RUN_NAME=" + exp.Name(),
		"MAGGOT_RUN_ROOT=" + root,
		"MAGGOT_METADATA=" + filepath.Join(root, experiment.MetadataFile),
	}

	for name, path := range dirs {
		env = append(env, envKey("MAGGOT_DIR_", name)+"="+path)
	}

	for _, key := range snap.Keys() {
		value, _ := snap.Get(key)
		if s, ok := scalarString(value); ok {
			env = append(env, envKey("MAGGOT_CONFIG_", key)+"="+s)
		}
	}

	sort.Strings(env)
	return env, nil
}

// envKey upper-cases name and replaces anything outside [A-Z0-9] with '_'.
func envKey(prefix, name string) string {
	var b strings.Builder
	b.WriteString(prefix)
	for _, r := range strings.ToUpper(name) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

func scalarString(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case int:
		return strconv.Itoa(val), true
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64), true
	case bool:
		return strconv.FormatBool(val), true
	default:
		return "", false
	}
}

func tee(file io.Writer, extra io.Writer) io.Writer {
	if extra == nil {
		return file
	}
	return io.MultiWriter(file, extra)
}
