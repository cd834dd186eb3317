package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

const (
	idlePlaceholder = "Ask a question..."
	busyPlaceholder = "Answer in progress..."
)

// InputPanel provides a single-line text input with CJK-aware cursor handling.
// It is disabled while an answer streams.
type InputPanel struct {
	input         textinput.Model
	busy          bool
	width, height int
}

// NewInputPanel creates an input panel with the given prompt.
func NewInputPanel(prompt string) *InputPanel {
	ti := textinput.New()
	ti.Prompt = prompt
	ti.Placeholder = idlePlaceholder
	ti.Focus()
	return &InputPanel{input: ti}
}

func (p *InputPanel) Update(msg tea.Msg) (Panel, tea.Cmd) {
	switch msg := msg.(type) {
	case StateMsg:
		return p, p.setBusy(msg.Snapshot.Busy)
	case tea.KeyMsg:
		if p.busy {
			return p, nil
		}
		if msg.Type == tea.KeyEnter {
			text := strings.TrimSpace(p.input.Value())
			if text == "" {
				return p, nil
			}
			p.input.Reset()
			return p, func() tea.Msg { return InputSubmitMsg{Text: text} }
		}
	}
	var cmd tea.Cmd
	p.input, cmd = p.input.Update(msg)
	return p, cmd
}

func (p *InputPanel) setBusy(busy bool) tea.Cmd {
	if busy == p.busy {
		return nil
	}
	p.busy = busy
	if busy {
		p.input.Placeholder = busyPlaceholder
		p.input.Blur()
		return nil
	}
	p.input.Placeholder = idlePlaceholder
	return p.input.Focus()
}

// Value returns the text being typed.
func (p *InputPanel) Value() string {
	return p.input.Value()
}

func (p *InputPanel) View() string {
	return p.input.View()
}

func (p *InputPanel) SetSize(width, height int) {
	p.width = width
	p.height = height
	p.input.Width = width - len(p.input.Prompt) - 1
}
