package experiment

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/maggot-ml/maggot/types"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Status string

const (
	// Constructed, not yet entered.
	StatusPending Status = "pending"

	// Entered: config frozen, root resolved.
	StatusActive Status = "active"

	// Terminal: the run body returned without error.
	StatusFinished Status = "finished"

	// Terminal: the run body returned an error or panicked.
	StatusFailed Status = "failed"
)

// DefaultBaseDir is where run roots are created when no base directory is given.
const DefaultBaseDir = "runs"

const maxDerivedNameLen = 64

// Experiment is the run-scoped context of one execution of an experiment
// body. It owns the configuration snapshot and the artifact directories of
// that run for its whole lifetime.
type Experiment struct {
	config      map[string]any
	overrides   map[string]any
	baseDir     string
	name        string
	maxSuffix   int
	initialDirs []string
	initiator   types.Initiator
	logger      zerolog.Logger
	now         func() time.Time

	mu          sync.Mutex
	status      Status
	broken      bool
	id          uuid.UUID
	snapshot    *Snapshot
	registry    *Registry
	annotations map[string]any
	startedAt   time.Time
	finishedAt  time.Time
}

type Option func(*Experiment)

// WithBaseDir sets the directory under which the run root is created.
func WithBaseDir(dir string) Option {
	return func(e *Experiment) { e.baseDir = dir }
}

// WithName sets the run name explicitly. Without it the name comes from the
// "name" option, or is derived from the scalar options.
func WithName(name string) Option {
	return func(e *Experiment) { e.name = name }
}

// WithOverrides layers overrides (typically from the command line) over the
// base configuration when the experiment is entered.
func WithOverrides(overrides map[string]any) Option {
	return func(e *Experiment) {
		e.overrides = make(map[string]any, len(overrides))
		for k, v := range overrides {
			e.overrides[k] = v
		}
	}
}

// WithMaxSuffix bounds the disambiguation suffixes tried for the run root.
func WithMaxSuffix(n int) Option {
	return func(e *Experiment) { e.maxSuffix = n }
}

// WithDirectories registers the given directories as part of entering.
func WithDirectories(names ...string) Option {
	return func(e *Experiment) { e.initialDirs = append(e.initialDirs, names...) }
}

func WithInitiator(initiator types.Initiator) Option {
	return func(e *Experiment) { e.initiator = initiator }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(e *Experiment) { e.logger = logger }
}

// New creates a pending experiment. Nothing touches the filesystem until Enter.
func New(config map[string]any, opts ...Option) *Experiment {
	e := &Experiment{
		config:    make(map[string]any, len(config)),
		baseDir:   DefaultBaseDir,
		maxSuffix: DefaultMaxSuffix,
		initiator: types.LocalInitiator(),
		logger:    log.With().Str("component", "experiment").Logger(),
		now:       time.Now,
		status:    StatusPending,
	}
	for k, v := range config {
		e.config[k] = v
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run enters a new experiment, calls body and always exits the experiment,
// whether body returns normally, returns an error or panics. The error
// returned by body is passed through unchanged; a panic is re-raised with its
// original value once the run has been finalized.
func Run(ctx context.Context, config map[string]any, body func(context.Context, *Experiment) error, opts ...Option) error {
	exp := New(config, opts...)
	if err := exp.Enter(); err != nil {
		return err
	}

	exited := false
	defer func() {
		if exited {
			return
		}
		p := recover()
		if p == nil {
			// runtime.Goexit, e.g. t.FailNow inside the body.
			_ = exp.Exit(errors.New("run body exited without returning"))
			return
		}
		_ = exp.Exit(fmt.Errorf("panic: %v", p))
		panic(p)
	}()

	runErr := body(ctx, exp)
	exited = true
	return exp.Exit(runErr)
}

// Enter moves the experiment from pending to active: the configuration
// snapshot is built and the run root is claimed. If any step fails the
// experiment is left unusable and nothing is left behind on disk.
func (e *Experiment) Enter() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.broken {
		return fmt.Errorf("%w: experiment failed to enter earlier and cannot be reused", ErrState)
	}
	if e.status != StatusPending {
		return fmt.Errorf("%w: experiment is already %s", ErrState, e.status)
	}

	snapshot, err := BuildSnapshot(e.config, e.overrides)
	if err != nil {
		e.broken = true
		return fmt.Errorf("failed to build configuration snapshot: %w", err)
	}

	name, err := resolveRunName(e.name, snapshot)
	if err != nil {
		e.broken = true
		return err
	}

	root, err := ResolveRoot(e.baseDir, name, e.maxSuffix)
	if err != nil {
		e.broken = true
		return err
	}

	e.id = uuid.New()
	e.name = name
	e.snapshot = snapshot
	e.startedAt = e.now()
	e.annotations = make(map[string]any)
	e.logger = e.logger.With().
		Str("run_id", e.id.String()).
		Str("run_name", name).
		Logger()
	e.registry = NewRegistry(root, e.logger.With().Str("component", "directories").Logger())

	for _, dir := range e.initialDirs {
		if _, err := e.registry.Register(dir); err != nil {
			e.abandonLocked(root)
			return err
		}
	}

	e.status = StatusActive
	if err := WriteMetadata(root, e.metadataLocked(nil)); err != nil {
		e.status = StatusPending
		e.abandonLocked(root)
		return err
	}

	e.logger.Info().Str("run_root", root).Msg("Experiment started")
	e.logger.Debug().Interface("config", snapshot.AsMap()).Msg("Configuration frozen")
	return nil
}

func (e *Experiment) abandonLocked(root string) {
	if err := os.RemoveAll(root); err != nil {
		e.logger.Warn().Err(err).Str("run_root", root).Msg("Failed to remove run root after failed entry")
	}
	e.broken = true
	e.snapshot = nil
	e.registry = nil
}

// Exit finalizes the run: the status becomes finished when runErr is nil and
// failed otherwise, and run.yml is rewritten with the final record.
//
// A non-nil runErr is always returned unchanged. A finalization failure is
// logged and only returned when there is no runErr to report.
func (e *Experiment) Exit(runErr error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.status != StatusActive {
		return fmt.Errorf("%w: cannot exit an experiment that is %s", ErrState, e.status)
	}

	e.finishedAt = e.now()
	if runErr != nil {
		e.status = StatusFailed
	} else {
		e.status = StatusFinished
	}

	root := e.registry.Root()
	if err := WriteMetadata(root, e.metadataLocked(runErr)); err != nil {
		if runErr != nil {
			e.logger.Error().Err(err).AnErr("run_error", runErr).Msg("Failed to write final run metadata")
			return runErr
		}
		e.logger.Error().Err(err).Msg("Failed to write final run metadata")
		return fmt.Errorf("failed to finalize experiment %q: %w", e.name, err)
	}

	duration := e.finishedAt.Sub(e.startedAt)
	if runErr != nil {
		e.logger.Error().Err(runErr).Dur("duration", duration).Str("run_root", root).Msg("Experiment failed")
	} else {
		e.logger.Info().Dur("duration", duration).Str("run_root", root).Msg("Experiment finished")
	}
	return runErr
}

func (e *Experiment) metadataLocked(runErr error) Metadata {
	md := Metadata{
		ID:          e.id.String(),
		Name:        e.name,
		Status:      e.status,
		Root:        e.registry.Root(),
		StartedAt:   e.startedAt.UTC(),
		Initiator:   e.initiator,
		Directories: e.registry.All(),
		Annotations: ConfigValues(copyValue(e.annotations).(map[string]any)),
		Config:      ConfigValues(e.snapshot.AsMap()),
	}
	if !e.finishedAt.IsZero() {
		finished := e.finishedAt.UTC()
		md.FinishedAt = &finished
		md.DurationMs = e.finishedAt.Sub(e.startedAt).Milliseconds()
	}
	if runErr != nil {
		md.Error = runErr.Error()
	}
	return md
}

func (e *Experiment) requireActiveLocked(op string) error {
	if e.status != StatusActive {
		return fmt.Errorf("%w: %s requires an active experiment, experiment is %s", ErrState, op, e.status)
	}
	return nil
}

// Config returns the frozen configuration of the run.
func (e *Experiment) Config() (*Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireActiveLocked("config access"); err != nil {
		return nil, err
	}
	return e.snapshot, nil
}

// RegisterDirectory returns the path of the named artifact directory under
// the run root, creating it on first use.
func (e *Experiment) RegisterDirectory(name string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireActiveLocked("directory registration"); err != nil {
		return "", err
	}
	return e.registry.Register(name)
}

// Directory returns the path of a directory registered earlier.
func (e *Experiment) Directory(name string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireActiveLocked("directory lookup"); err != nil {
		return "", err
	}
	return e.registry.Path(name)
}

// Directories returns every registered directory keyed by name.
func (e *Experiment) Directories() (map[string]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireActiveLocked("directory listing"); err != nil {
		return nil, err
	}
	return e.registry.All(), nil
}

// Annotate records a value in the run metadata under key.
func (e *Experiment) Annotate(key string, value any) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireActiveLocked("annotation"); err != nil {
		return err
	}
	if key == "" {
		return fmt.Errorf("%w: annotation key cannot be empty", ErrConfig)
	}
	normalized, err := normalizeValue(key, value)
	if err != nil {
		return err
	}
	e.annotations[key] = normalized
	return nil
}

func (e *Experiment) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// ID is the zero UUID until the experiment has been entered.
func (e *Experiment) ID() uuid.UUID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.id
}

// Name returns the run name. Before Enter it is the requested name, if any.
func (e *Experiment) Name() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.name
}

// Root returns the run root, or "" if the experiment was never entered.
func (e *Experiment) Root() string {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.registry == nil {
		return ""
	}
	return e.registry.Root()
}

func (e *Experiment) StartedAt() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.startedAt
}

func resolveRunName(requested string, snapshot *Snapshot) (string, error) {
	if requested != "" {
		if err := ValidateRunName(requested); err != nil {
			return "", err
		}
		return requested, nil
	}
	if name, err := snapshot.String("name"); err == nil && strings.TrimSpace(name) != "" {
		return sanitizeRunName(name), nil
	}
	return deriveRunName(snapshot), nil
}

// deriveRunName builds a name like "c10.gamma0.01" from the top-level scalar
// options.
func deriveRunName(snapshot *Snapshot) string {
	var parts []string
	for _, key := range snapshot.keys {
		switch v := snapshot.values[key].(type) {
		case string:
			parts = append(parts, key+v)
		case int:
			parts = append(parts, key+strconv.Itoa(v))
		case float64:
			parts = append(parts, key+strconv.FormatFloat(v, 'g', -1, 64))
		case bool:
			parts = append(parts, key+strconv.FormatBool(v))
		}
	}
	return sanitizeRunName(strings.Join(parts, "."))
}

func sanitizeRunName(name string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := b.String()
	if len(out) > maxDerivedNameLen {
		out = out[:maxDerivedNameLen]
	}
	if strings.HasPrefix(out, "-") {
		out = "_" + out[1:]
	}
	if out == "" || out == "." || out == ".." {
		return "run"
	}
	return out
}
