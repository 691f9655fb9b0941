package experiment

import (
	"errors"
	"fmt"
)

var (
	// ErrConfig is returned for malformed or invalid configuration.
	ErrConfig = errors.New("config error")

	// ErrMissingOption is returned when an option is looked up but was never set.
	// It wraps ErrConfig.
	ErrMissingOption = fmt.Errorf("%w: missing option", ErrConfig)

	// ErrDirectory is returned for invalid directory names, filesystem
	// failures and exhausted root disambiguation.
	ErrDirectory = errors.New("directory error")

	// ErrState is returned when the experiment is used outside the active
	// state, entered twice or exited twice.
	ErrState = errors.New("state error")
)
