package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	globallog "github.com/rs/zerolog/log"
)

// ConfigureGlobalLogger sets up the zerolog global logger instance.
// Call this once at the start of the application (e.g., in main.go).
// logFilePath should be empty for terminal logging (uses ConsoleWriter to stderr).
// If logFilePath is provided, logs in JSON format to that file.
//
// The global logger always carries a run log tee; see AttachRunLog.
func ConfigureGlobalLogger(isVerbose bool, logFilePath string) error {
	logLevel := zerolog.InfoLevel
	if isVerbose {
		logLevel = zerolog.DebugLevel
	}

	var outputWriter io.Writer
	isLoggingToFile := false

	if logFilePath != "" {
		// --- File logging ---
		isLoggingToFile = true
		dir := filepath.Dir(logFilePath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create log directory %q: %w", dir, err)
		}

		fileHandle, err := os.OpenFile(logFilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file %q: %w", logFilePath, err)
		}

		// Log files should contain all log levels.
		outputWriter = fileHandle
		logLevel = zerolog.DebugLevel
	} else {
		// --- Terminal logging ---
		outputWriter = zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
			NoColor:    false,
			FormatLevel: func(i any) string {
				if level, ok := i.(string); ok {
					return strings.ToUpper(fmt.Sprintf("[%s]", level))
				}
				return fmt.Sprintf("[%v]", i)
			},
			FormatMessage: func(i any) string {
				// Prevent extra quotes around simple messages in console
				if msg, ok := i.(string); ok {
					return msg
				}
				return fmt.Sprintf("%v", i)
			},
		}
	}

	primary := levelFilter{w: outputWriter, min: logLevel}
	globallog.Logger = zerolog.New(zerolog.MultiLevelWriter(primary, runLog)).With().Timestamp().Logger()

	// Levels are filtered per writer so that the run log can keep debug
	// records while the terminal stays at info.
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	zerolog.TimeFieldFormat = time.RFC3339

	// --- Log confirmation ---
	if isLoggingToFile {
		globallog.Debug().Msgf("Configured file logging (JSON format) to: %s", logFilePath)
	} else {
		globallog.Debug().Msg("Configured console logging.")
	}
	globallog.Debug().Msgf("Log level set to: %s", logLevel)
	return nil
}

// AttachRunLog tees every log record, at debug level and in JSON format, to
// logFilePath until the returned closer is closed. Loggers derived from the
// global logger before the call are included.
func AttachRunLog(logFilePath string) (io.Closer, error) {
	fileHandle, err := os.OpenFile(logFilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open run log file %q: %w", logFilePath, err)
	}

	runLog.set(fileHandle)
	globallog.Debug().Msgf("Run log attached: %s", logFilePath)

	return closerFunc(func() error {
		runLog.set(nil)
		return fileHandle.Close()
	}), nil
}
