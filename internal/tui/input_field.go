package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	inputCharLimit  = 4000
	inputHistoryCap = 100
	// inputChrome is the border, padding and prompt around the text.
	inputChrome = 6
)

var (
	promptStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	inputBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)
)

// SubmittedMsg is sent when the user presses Enter on a non-empty line.
type SubmittedMsg struct {
	Text string
}

// InputField is the single-line prompt at the bottom of the screen.
// ctrl+p and ctrl+n step through previously submitted lines.
type InputField struct {
	input textinput.Model
	width int

	history []string
	// recall indexes history while stepping through it; len(history) means
	// the line being edited.
	recall int
	draft  string
}

// NewInputField creates a focused input field.
func NewInputField() *InputField {
	ti := textinput.New()
	ti.Placeholder = "Ask something, or type tools, memory:status, memory:clear, quit"
	ti.CharLimit = inputCharLimit
	ti.Focus()

	f := &InputField{input: ti}
	f.SetWidth(80)
	return f
}

// SetWidth sets the outer width of the field.
func (f *InputField) SetWidth(width int) {
	f.width = width
	f.input.Width = max(width-inputChrome, 1)
}

// Value returns the current text.
func (f *InputField) Value() string {
	return f.input.Value()
}

// History returns the submitted lines, oldest first.
func (f *InputField) History() []string {
	return append([]string(nil), f.history...)
}

// Update handles key presses. Enter submits the trimmed line.
func (f *InputField) Update(msg tea.Msg) (*InputField, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.Type {
		case tea.KeyEnter:
			return f, f.submit()
		case tea.KeyCtrlP:
			f.step(-1)
			return f, nil
		case tea.KeyCtrlN:
			f.step(1)
			return f, nil
		}
	}

	var cmd tea.Cmd
	f.input, cmd = f.input.Update(msg)
	return f, cmd
}

func (f *InputField) submit() tea.Cmd {
	text := strings.TrimSpace(f.input.Value())
	if text == "" {
		return nil
	}
	if n := len(f.history); n == 0 || f.history[n-1] != text {
		f.history = append(f.history, text)
		if len(f.history) > inputHistoryCap {
			f.history = f.history[len(f.history)-inputHistoryCap:]
		}
	}
	f.recall = len(f.history)
	f.draft = ""
	f.input.Reset()
	return func() tea.Msg { return SubmittedMsg{Text: text} }
}

// step moves through history by delta, keeping the unsent line as a draft.
func (f *InputField) step(delta int) {
	next := f.recall + delta
	if next < 0 || next > len(f.history) {
		return
	}
	if f.recall == len(f.history) {
		f.draft = f.input.Value()
	}
	f.recall = next
	if next == len(f.history) {
		f.input.SetValue(f.draft)
	} else {
		f.input.SetValue(f.history[next])
	}
	f.input.CursorEnd()
}

// View renders the field in a rounded box.
func (f *InputField) View() string {
	return inputBoxStyle.Width(f.width - 2).Render(promptStyle.Render("> ") + f.input.View())
}

// Focus focuses the text input.
func (f *InputField) Focus() tea.Cmd {
	return f.input.Focus()
}
