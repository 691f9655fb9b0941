package experiment

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// DefaultMaxSuffix bounds root disambiguation: name, name-1, ... name-1000.
const DefaultMaxSuffix = 1000

var runNameRegex = regexp.MustCompile(`^[A-Za-z0-9._][A-Za-z0-9._-]*$`)

// ValidateRunName checks that name can be used as a single directory segment.
func ValidateRunName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: run name cannot be empty", ErrDirectory)
	}
	if name == "." || name == ".." {
		return fmt.Errorf("%w: run name %q is reserved", ErrDirectory, name)
	}
	if !runNameRegex.MatchString(name) {
		return fmt.Errorf("%w: run name %q may only contain letters, digits, '.', '_' and '-'", ErrDirectory, name)
	}
	return nil
}

// ValidateDirectoryName checks a logical artifact directory name and returns
// its canonical form. Nested names such as "plots/loss" are allowed, but the
// result must stay inside the run root.
func ValidateDirectoryName(name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("%w: directory name cannot be empty", ErrDirectory)
	}
	if strings.ContainsRune(name, 0) {
		return "", fmt.Errorf("%w: directory name %q contains a NUL byte", ErrDirectory, name)
	}
	slashed := filepath.ToSlash(name)
	if filepath.IsAbs(name) || strings.HasPrefix(slashed, "/") {
		return "", fmt.Errorf("%w: directory name %q must be relative", ErrDirectory, name)
	}
	for _, segment := range strings.Split(slashed, "/") {
		if segment == ".." {
			return "", fmt.Errorf("%w: directory name %q escapes the run root", ErrDirectory, name)
		}
	}
	clean := filepath.Clean(name)
	if clean == "." {
		return "", fmt.Errorf("%w: directory name %q resolves to the run root", ErrDirectory, name)
	}
	return filepath.ToSlash(clean), nil
}

// ResolveRoot claims a fresh run root under baseDir.
//
// Candidates are tried in order: runName, runName-1, runName-2, ... up to
// runName-maxSuffix. Each candidate is claimed with os.Mkdir, which fails if
// the directory already exists, so two concurrent runs can never end up with
// the same root.
func ResolveRoot(baseDir, runName string, maxSuffix int) (string, error) {
	if err := ValidateRunName(runName); err != nil {
		return "", err
	}
	if maxSuffix < 0 {
		maxSuffix = 0
	}

	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return "", fmt.Errorf("%w: failed to resolve base directory %q: %v", ErrDirectory, baseDir, err)
	}
	if err := os.MkdirAll(absBase, 0o755); err != nil {
		return "", fmt.Errorf("%w: failed to create base directory %q: %v", ErrDirectory, absBase, err)
	}

	for i := 0; i <= maxSuffix; i++ {
		candidate := runName
		if i > 0 {
			candidate = fmt.Sprintf("%s-%d", runName, i)
		}
		path := filepath.Join(absBase, candidate)

		err := os.Mkdir(path, 0o755)
		if err == nil {
			return path, nil
		}
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		return "", fmt.Errorf("%w: failed to create run root %q: %v", ErrDirectory, path, err)
	}

	return "", fmt.Errorf("%w: no free run root for %q under %q after %d candidates", ErrDirectory, runName, absBase, maxSuffix+1)
}

// Registry tracks the named artifact directories of one run.
type Registry struct {
	root   string
	mu     sync.Mutex
	dirs   map[string]string
	logger zerolog.Logger
}

func NewRegistry(root string, logger zerolog.Logger) *Registry {
	return &Registry{
		root:   root,
		dirs:   make(map[string]string),
		logger: logger,
	}
}

func (r *Registry) Root() string { return r.root }

// Register returns root/name, creating the directory the first time name is
// registered. Later calls with the same name return the same path without
// touching the filesystem.
func (r *Registry) Register(name string) (string, error) {
	clean, err := ValidateDirectoryName(name)
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if path, exists := r.dirs[clean]; exists {
		return path, nil
	}

	path := filepath.Join(r.root, filepath.FromSlash(clean))
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", fmt.Errorf("%w: failed to create directory %q: %v", ErrDirectory, path, err)
	}
	r.dirs[clean] = path

	r.logger.Debug().Str("directory", clean).Str("path", path).Msg("Registered directory")
	return path, nil
}

// Path returns the path of a directory registered earlier.
func (r *Registry) Path(name string) (string, error) {
	clean, err := ValidateDirectoryName(name)
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	path, exists := r.dirs[clean]
	if !exists {
		return "", fmt.Errorf("%w: directory %q was never registered", ErrDirectory, name)
	}
	return path, nil
}

// All returns a copy of every registration, keyed by canonical name.
func (r *Registry) All() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]string, len(r.dirs))
	for k, v := range r.dirs {
		out[k] = v
	}
	return out
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.dirs))
	for k := range r.dirs {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
