package log

import (
	"bytes"
	"testing"

	"github.com/maggot-ml/maggot/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConsole(style types.OutputStyle) (*Console, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	c := &Console{OutputStyle: style, Out: &out, Err: &errOut}
	return c, &out, &errOut
}

func TestConsoleStyles(t *testing.T) {
	tests := []struct {
		name    string
		style   types.OutputStyle
		wantOut string
	}{
		{name: "Human", style: types.StyleHuman, wantOut: "run exp\n"},
		{name: "Verbose", style: types.StyleHumanVerbose, wantOut: "run exp\nroot /tmp/exp\n"},
		{name: "JSON", style: types.StyleMachineJSON, wantOut: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, out, errOut := newTestConsole(tt.style)
			c.Info("run %s", "exp")
			c.Verbose("root %s", "/tmp/exp")
			c.Error("boom")

			assert.Equal(t, tt.wantOut, out.String())
			assert.Equal(t, "Error: boom\n", errOut.String())
		})
	}
}

func TestConsoleJson(t *testing.T) {
	c, out, _ := newTestConsole(types.StyleMachineJSON)
	require.NoError(t, c.Json(map[string]any{"name": "exp"}))
	assert.JSONEq(t, `{"name":"exp"}`, out.String())

	human, humanOut, _ := newTestConsole(types.StyleHuman)
	require.NoError(t, human.Json(map[string]any{"name": "exp"}))
	assert.Empty(t, humanOut.String())
}

func TestConsoleSpinnerWithoutSpinner(t *testing.T) {
	c, _, _ := newTestConsole(types.StyleHuman)
	assert.NotPanics(t, func() {
		c.StartSpinner("working")
		c.StopSpinner()
	})
}
