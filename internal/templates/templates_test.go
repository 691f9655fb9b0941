package templates

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"text/template"

	"github.com/maggot-ml/maggot/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteExperimentTpl(t *testing.T) {
	tests := []struct {
		name        string
		directories []string
	}{
		{name: "With directories", directories: []string{"samples", "plots/loss"}},
		{name: "Without directories"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := filepath.Join(t.TempDir(), "experiment.yml")
			err := WriteTpl(ExperimentTpl, out, map[string]any{
				"Name":        "planar",
				"RunsDir":     "runs",
				"Directories": tt.directories,
			})
			require.NoError(t, err)

			// The scaffold must be a valid experiment file.
			f, err := config.LoadExperimentFile(out)
			require.NoError(t, err)
			assert.Equal(t, "planar", f.Name)
			assert.Equal(t, "runs", f.RunsDir)
			assert.Equal(t, tt.directories, f.Directories)
			assert.Equal(t, map[string]any{"seed": 0}, f.Config)
		})
	}
}

func TestWriteTplErrors(t *testing.T) {
	t.Run("Unknown template", func(t *testing.T) {
		err := WriteTpl("files/missing.tmpl", filepath.Join(t.TempDir(), "x"), nil)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse template")
	})

	t.Run("Missing data key", func(t *testing.T) {
		err := WriteTpl(ExperimentTpl, filepath.Join(t.TempDir(), "x.yml"), map[string]any{"Name": "planar"})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to render template")
	})

	t.Run("Unwritable output", func(t *testing.T) {
		err := WriteTpl(ExperimentTpl, filepath.Join(t.TempDir(), "missing", "x.yml"), nil)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to create output file")
	})
}

func TestWriteTplWithFuncs(t *testing.T) {
	out := filepath.Join(t.TempDir(), "experiment.yml")
	funcs := template.FuncMap{"upper": strings.ToUpper}

	err := WriteTplWithFuncs(ExperimentTpl, out, map[string]any{
		"Name":        "svm",
		"RunsDir":     "out",
		"Directories": nil,
	}, funcs)
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "name: svm\n")
	assert.NotContains(t, string(data), "directories:")
}
