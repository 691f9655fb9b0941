package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/maggot-ml/maggot/experiment"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// DefaultExperimentFiles are probed in order when no file is given.
var DefaultExperimentFiles = []string{
	"experiment.yml",
	"experiment.yaml",
	"experiment.toml",
	"experiment.json",
}

// ExperimentFile is the on-disk description of an experiment: its options
// plus defaults for how runs of it are laid out.
type ExperimentFile struct {
	Name        string         `yaml:"name,omitempty" toml:"name,omitempty" json:"name,omitempty"`
	RunsDir     string         `yaml:"runs_dir,omitempty" toml:"runs_dir,omitempty" json:"runs_dir,omitempty"`
	MaxSuffix   int            `yaml:"max_suffix,omitempty" toml:"max_suffix,omitempty" json:"max_suffix,omitempty"`
	Directories []string       `yaml:"directories,omitempty" toml:"directories,omitempty" json:"directories,omitempty"`
	Config      map[string]any `yaml:"config" toml:"config" json:"config"`
}

// FindExperimentFile returns the first default experiment file present in
// dir, or "" when there is none.
func FindExperimentFile(dir string) string {
	for _, name := range DefaultExperimentFiles {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}

func LoadExperimentFile(filename string) (*ExperimentFile, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read experiment file %s: %w", filename, err)
	}

	expFile, err := decodeExperimentFile(filename, data)
	if err != nil {
		return nil, err
	}

	// Validate the loaded configuration
	if err := ValidateExperimentFile(expFile); err != nil {
		return nil, fmt.Errorf("validation error in %s: %w", filename, err)
	}

	return expFile, nil
}

func decodeExperimentFile(filename string, data []byte) (*ExperimentFile, error) {
	var expFile ExperimentFile

	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".yml", ".yaml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&expFile); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: failed to parse YAML in %s: %v", experiment.ErrConfig, filename, err)
		}
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&expFile); err != nil {
			return nil, fmt.Errorf("%w: failed to parse TOML in %s: %v", experiment.ErrConfig, filename, err)
		}
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		dec.DisallowUnknownFields()
		if err := dec.Decode(&expFile); err != nil {
			return nil, fmt.Errorf("%w: failed to parse JSON in %s: %v", experiment.ErrConfig, filename, err)
		}
	default:
		return nil, fmt.Errorf("%w: unsupported experiment file extension %q (use .yml, .yaml, .toml or .json)", experiment.ErrConfig, ext)
	}

	return &expFile, nil
}

// ValidateExperimentFile reports every problem in expFile at once.
func ValidateExperimentFile(expFile *ExperimentFile) error {
	var errs []string

	if expFile.Name != "" {
		if err := experiment.ValidateRunName(expFile.Name); err != nil {
			errs = append(errs, fmt.Sprintf("field 'name': %v", err))
		}
	}

	if strings.ContainsRune(expFile.RunsDir, 0) {
		errs = append(errs, "field 'runs_dir' contains a NUL byte")
	}

	if expFile.MaxSuffix < 0 {
		errs = append(errs, "field 'max_suffix' cannot be negative")
	}

	seenDirs := make(map[string]int, len(expFile.Directories))
	for i, dir := range expFile.Directories {
		clean, err := experiment.ValidateDirectoryName(dir)
		if err != nil {
			errs = append(errs, fmt.Sprintf("directories[%d]: %v", i, err))
			continue
		}
		if first, dup := seenDirs[clean]; dup {
			errs = append(errs, fmt.Sprintf("directories[%d]: %q duplicates directories[%d]", i, dir, first))
			continue
		}
		seenDirs[clean] = i
	}

	if _, err := experiment.BuildSnapshot(expFile.Config, nil); err != nil {
		errs = append(errs, fmt.Sprintf("field 'config': %v", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: experiment file validation failed:\n- %s", experiment.ErrConfig, strings.Join(errs, "\n- "))
	}
	return nil
}

// ParseOverrides turns "key=value" pairs into option overrides. Values are
// parsed as YAML, so "10" is an int, "0.5" a float and "[1, 2]" a list; an
// empty value is the empty string. Later pairs win.
func ParseOverrides(pairs []string) (map[string]any, error) {
	overrides := make(map[string]any, len(pairs))
	var errs []string

	for _, pair := range pairs {
		key, raw, found := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !found {
			errs = append(errs, fmt.Sprintf("%q: expected key=value", pair))
			continue
		}
		if key == "" {
			errs = append(errs, fmt.Sprintf("%q: option name cannot be empty", pair))
			continue
		}

		if strings.TrimSpace(raw) == "" {
			overrides[key] = ""
			continue
		}

		var value any
		if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
			errs = append(errs, fmt.Sprintf("%q: invalid value: %v", pair, err))
			continue
		}
		overrides[key] = value
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: invalid overrides:\n- %s", experiment.ErrConfig, strings.Join(errs, "\n- "))
	}
	return overrides, nil
}
