package log

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/maggot-ml/maggot/types"
)

// Console prints user-facing output for a CLI command. Structured logs go
// through zerolog; Console is what a person at the terminal reads.
type Console struct {
	OutputStyle types.OutputStyle
	Spinner     *spinner.Spinner

	Out io.Writer
	Err io.Writer
}

func NewConsole(style types.OutputStyle) *Console {
	return &Console{
		OutputStyle: style,
		Spinner: spinner.New(
			spinner.CharSets[11], // Default ⣾ style spinner, can modify this at the call site
			100*time.Millisecond,
			spinner.WithHiddenCursor(true),
			spinner.WithWriter(os.Stderr)),
		Out: os.Stdout,
		Err: os.Stderr,
	}
}

func (c *Console) human() bool {
	return c.OutputStyle == types.StyleHuman || c.OutputStyle == types.StyleHumanVerbose
}

func (c *Console) Info(msg string, args ...any) {
	if c.human() {
		fmt.Fprintf(c.Out, msg+"\n", args...)
	}
	// Silent for machine modes
}

func (c *Console) Verbose(msg string, args ...any) {
	if c.OutputStyle == types.StyleHumanVerbose {
		fmt.Fprintf(c.Out, msg+"\n", args...)
	}
}

// Error is printed in every style. Machine consumers read stdout only.
func (c *Console) Error(msg string, args ...any) {
	fmt.Fprintf(c.Err, "Error: "+msg+"\n", args...)
}

func (c *Console) Json(data any) error {
	if c.OutputStyle != types.StyleMachineJSON {
		return nil
	}
	encoded, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(c.Out, string(encoded))
	return err
}

// StartSpinner starts the console spinner. you can pass optionalCharset
// to override the default spinner. It is a variadic parameter but only
// the first argument will be used.
func (c *Console) StartSpinner(text string, optionalCharset ...[]string) {
	if c.human() && c.Spinner != nil {
		c.Spinner.Suffix = " " + text
		if len(optionalCharset) > 0 {
			c.Spinner.UpdateCharSet(optionalCharset[0])
		}
		c.Spinner.Start()
	}
}

func (c *Console) StopSpinner() {
	if c.human() && c.Spinner != nil {
		c.Spinner.Stop()
	}
}
