package utils

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

// MkDir creates the directory targetDir/parts..., exiting the CLI on failure.
func MkDir(targetDir string, parts ...string) {
	path := filepath.Join(append([]string{targetDir}, parts...)...)
	cobra.CheckErr(os.MkdirAll(path, 0o755))
}

// MustNotExist exits the CLI when path already exists, so scaffolding never
// overwrites a file or directory.
func MustNotExist(path string) {
	cobra.CheckErr(CheckNotExist(path))
}

// CheckNotExist is MustNotExist returning the error instead of exiting.
func CheckNotExist(path string) error {
	_, err := os.Lstat(path)
	switch {
	case err == nil:
		return fmt.Errorf("refusing to overwrite existing file or directory: %s", path)
	case errors.Is(err, fs.ErrNotExist):
		return nil
	default:
		return fmt.Errorf("failed to check %s: %w", path, err)
	}
}
