package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/librebol/eval"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	inputStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// maxEntries bounds the transcript kept on screen.
const maxEntries = 20

type entry struct {
	input  string
	output string
	err    error
}

type interactiveModel struct {
	s       *session
	input   textinput.Model
	entries []entry
	history []string
	recall  int
	busy    bool // an evaluation command is in flight
}

func newInteractiveModel(s *session) *interactiveModel {
	ti := textinput.New()
	ti.Prompt = promptMain
	ti.Placeholder = "expression"
	ti.Width = 60
	ti.Focus()
	return &interactiveModel{s: s, input: ti}
}

type evalMsg struct {
	input  string
	output string
	err    error
}

func (m *interactiveModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *interactiveModel) evaluate(src string) tea.Cmd {
	return func() tea.Msg {
		if strings.HasPrefix(src, ":") {
			return evalMsg{input: src, output: m.status(src)}
		}
		out, err := m.s.eval(src)
		return evalMsg{input: src, output: out, err: err}
	}
}

func (m *interactiveModel) status(cmd string) string {
	switch cmd {
	case ":stats":
		st := m.s.rt.Stats()
		return fmt.Sprintf("%d handle(s), %d buffer(s), %d pending cleanup(s), tick %d",
			st.Handles(), st.Buffers, st.PendingCleanups, st.Tick)
	case ":recycle":
		return fmt.Sprintf("%d cleanup(s) ran", m.s.rt.Recycle())
	case ":tick":
		return fmt.Sprint(m.s.rt.Tick())
	default:
		return "commands: :stats :recycle :tick, esc to quit"
	}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.s.rt.Halt()
			return m, tea.Quit

		case "enter":
			src := strings.TrimSpace(m.input.Value())
			if src == "" || m.busy {
				return m, nil
			}
			if src == ":quit" {
				return m, tea.Quit
			}
			m.history = append(m.history, src)
			m.recall = len(m.history)
			m.input.SetValue("")
			m.busy = true
			return m, m.evaluate(src)

		case "up":
			if m.recall > 0 {
				m.recall--
				m.input.SetValue(m.history[m.recall])
				m.input.CursorEnd()
			}
			return m, nil

		case "down":
			if m.recall < len(m.history)-1 {
				m.recall++
				m.input.SetValue(m.history[m.recall])
				m.input.CursorEnd()
			} else {
				m.recall = len(m.history)
				m.input.SetValue("")
			}
			return m, nil
		}

	case evalMsg:
		m.busy = false
		m.entries = append(m.entries, entry(msg))
		if len(m.entries) > maxEntries {
			m.entries = m.entries[len(m.entries)-maxEntries:]
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *interactiveModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("r3"))
	if names := m.s.loader.Names(); len(names) > 0 {
		b.WriteString(" ")
		b.WriteString(strings.Join(names, ", "))
	}
	b.WriteString("\n\n")

	for _, e := range m.entries {
		b.WriteString(inputStyle.Render(promptMain + e.input))
		b.WriteString("\n")
		switch {
		case e.err != nil:
			msg := e.err.Error()
			if f, ok := eval.AsFailure(e.err); ok {
				msg = f.Error()
			}
			b.WriteString(errorStyle.Render(msg))
			b.WriteString("\n")
		case e.output != "":
			b.WriteString(resultStyle.Render(e.output))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n\n")
	b.WriteString(helpStyle.Render("enter evaluate • ↑/↓ history • :stats :recycle :tick • esc quit"))
	return b.String()
}

func runInteractive(s *session) error {
	p := tea.NewProgram(newInteractiveModel(s), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
