package cmd

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

type initAnswers struct {
	Name        string
	RunsDir     string
	Directories []string
}

type initModel struct {
	inputs   []textinput.Model
	defaults initAnswers
	focusIdx int
	canceled bool
	done     bool
}

func initialInitModel(defaults initAnswers) initModel {
	name := textinput.New()
	name.Placeholder = defaults.Name
	name.Focus()
	name.CharLimit = 64
	name.Width = 30

	runsDir := textinput.New()
	runsDir.Placeholder = defaults.RunsDir
	runsDir.CharLimit = 256
	runsDir.Width = 30

	dirs := textinput.New()
	dirs.Placeholder = strings.Join(defaults.Directories, ", ")
	if dirs.Placeholder == "" {
		dirs.Placeholder = "samples, checkpoints"
	}
	dirs.CharLimit = 256
	dirs.Width = 30

	return initModel{
		inputs:   []textinput.Model{name, runsDir, dirs},
		defaults: defaults,
	}
}

func (m initModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m initModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.canceled = true
			m.done = true
			return m, tea.Quit
		case "enter":
			m.done = true
			return m, tea.Quit
		case "tab", "shift+tab", "down", "up":
			if msg.String() == "up" || msg.String() == "shift+tab" {
				m.focusIdx--
			} else {
				m.focusIdx++
			}
			if m.focusIdx >= len(m.inputs) {
				m.focusIdx = 0
			} else if m.focusIdx < 0 {
				m.focusIdx = len(m.inputs) - 1
			}
			for i := range m.inputs {
				if i == m.focusIdx {
					m.inputs[i].Focus()
				} else {
					m.inputs[i].Blur()
				}
			}
			return m, nil
		}
	}

	cmds := make([]tea.Cmd, len(m.inputs))
	for i := range m.inputs {
		m.inputs[i], cmds[i] = m.inputs[i].Update(msg)
	}

	return m, tea.Batch(cmds...)
}

func (m initModel) View() string {
	s := "\n"
	labels := []string{"Experiment name", "Runs directory", "Run directories (comma separated)"}

	for i, input := range m.inputs {
		s += labels[i] + ": " + input.View() + "\n"
	}

	s += "\n[Enter] to continue • [Esc] to cancel\n"
	return s
}

// answers applies the defaults to every field left empty.
func (m initModel) answers() initAnswers {
	a := m.defaults

	if v := strings.TrimSpace(m.inputs[0].Value()); v != "" {
		a.Name = v
	}
	if v := strings.TrimSpace(m.inputs[1].Value()); v != "" {
		a.RunsDir = v
	}
	if v := strings.TrimSpace(m.inputs[2].Value()); v != "" {
		a.Directories = splitList(v)
	}
	return a
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func RunInitTUI(defaults initAnswers) (answers initAnswers, canceled bool) {
	p := tea.NewProgram(initialInitModel(defaults))
	m, err := p.Run()
	if err != nil {
		return initAnswers{}, true
	}

	final := m.(initModel)
	if final.canceled {
		return initAnswers{}, true
	}
	return final.answers(), false
}
