package experiment

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/maggot-ml/maggot/types"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// MetadataFile is the name of the metadata file written into every run root.
const MetadataFile = "run.yml"

// ConfigValues is a normalized option mapping as persisted in run.yml.
type ConfigValues map[string]any

func (c ConfigValues) MarshalYAML() (any, error) {
	return encodeNode(map[string]any(c))
}

// Metadata is the persisted record of a run.
type Metadata struct {
	ID          string            `yaml:"id" json:"id"`
	Name        string            `yaml:"name" json:"name"`
	Status      Status            `yaml:"status" json:"status"`
	Root        string            `yaml:"root" json:"root"`
	StartedAt   time.Time         `yaml:"started_at" json:"started_at"`
	FinishedAt  *time.Time        `yaml:"finished_at,omitempty" json:"finished_at,omitempty"`
	DurationMs  int64             `yaml:"duration_ms" json:"duration_ms"`
	Error       string            `yaml:"error,omitempty" json:"error,omitempty"`
	Initiator   types.Initiator   `yaml:"initiator" json:"initiator"`
	Directories map[string]string `yaml:"directories" json:"directories"`
	Annotations ConfigValues      `yaml:"annotations,omitempty" json:"annotations,omitempty"`
	Config      ConfigValues      `yaml:"config" json:"config"`
}

// Snapshot rebuilds the configuration snapshot recorded in the metadata.
func (m *Metadata) Snapshot() (*Snapshot, error) {
	return BuildSnapshot(m.Config, nil)
}

// WriteMetadata writes md to root/run.yml. The file is written to a temporary
// name first and renamed, so readers never observe a half-written record.
func WriteMetadata(root string, md Metadata) error {
	data, err := yaml.Marshal(&md)
	if err != nil {
		return fmt.Errorf("failed to marshal run metadata: %w", err)
	}

	tmp, err := os.CreateTemp(root, "."+MetadataFile+"-*")
	if err != nil {
		return fmt.Errorf("%w: failed to create metadata file in %s: %v", ErrDirectory, root, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: failed to write metadata file %s: %v", ErrDirectory, tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: failed to close metadata file %s: %v", ErrDirectory, tmpPath, err)
	}

	target := filepath.Join(root, MetadataFile)
	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: failed to move metadata file into place at %s: %v", ErrDirectory, target, err)
	}
	return nil
}

// ReadMetadata loads root/run.yml.
func ReadMetadata(root string) (*Metadata, error) {
	path := filepath.Join(root, MetadataFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read metadata file %s: %v", ErrDirectory, path, err)
	}

	var md Metadata
	if err := yaml.Unmarshal(data, &md); err != nil {
		return nil, fmt.Errorf("%w: failed to parse metadata file %s: %v", ErrConfig, path, err)
	}
	return &md, nil
}

// ListRuns returns the metadata of every run directly under baseDir, oldest
// first. Directories without a run.yml are ignored and unreadable records are
// skipped with a warning.
func ListRuns(baseDir string) ([]Metadata, error) {
	entries, err := os.ReadDir(baseDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: failed to list runs in %s: %v", ErrDirectory, baseDir, err)
	}

	var runs []Metadata
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		root := filepath.Join(baseDir, entry.Name())
		if _, err := os.Stat(filepath.Join(root, MetadataFile)); err != nil {
			continue
		}

		md, err := ReadMetadata(root)
		if err != nil {
			log.Warn().Err(err).Str("run_root", root).Msg("Skipping unreadable run")
			continue
		}
		runs = append(runs, *md)
	}

	sort.SliceStable(runs, func(i, j int) bool {
		if !runs[i].StartedAt.Equal(runs[j].StartedAt) {
			return runs[i].StartedAt.Before(runs[j].StartedAt)
		}
		return runs[i].Name < runs[j].Name
	})
	return runs, nil
}
