package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/linanwx/chatball/chat"
	"github.com/linanwx/chatball/termmd"
)

const (
	userLabel      = "You"
	assistantLabel = "Chatball"
	pendingText    = "..."
)

var (
	userLabelStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6")) // cyan
	assistantLabelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("5")) // magenta
	pendingStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	emptyChatStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
)

// renderedTurn caches the rendering of one turn.
type renderedTurn struct {
	turn    chat.Turn
	width   int
	pending bool
	text    string
}

// ChatPanel displays the conversation in a scrollable viewport.
type ChatPanel struct {
	viewport viewport.Model
	markdown bool
	width    int

	turns []chat.Turn
	busy  bool
	cache []renderedTurn
}

// NewChatPanel creates a chat panel. With markdown set, assistant turns are
// rendered as terminal markdown.
func NewChatPanel(markdown bool) *ChatPanel {
	vp := viewport.New(0, 0)
	vp.SetContent("")
	return &ChatPanel{viewport: vp, markdown: markdown}
}

func (p *ChatPanel) Update(msg tea.Msg) (Panel, tea.Cmd) {
	switch msg := msg.(type) {
	case StateMsg:
		p.turns = msg.Snapshot.Conversation
		p.busy = msg.Snapshot.Busy
		p.refresh()
		return p, nil
	}
	var cmd tea.Cmd
	p.viewport, cmd = p.viewport.Update(msg)
	return p, cmd
}

func (p *ChatPanel) View() string {
	return p.viewport.View()
}

func (p *ChatPanel) SetSize(width, height int) {
	p.width = width
	p.viewport.Width = width
	p.viewport.Height = height
	p.refresh()
}

// refresh re-renders the transcript, following the bottom unless the user
// scrolled up.
func (p *ChatPanel) refresh() {
	follow := p.viewport.AtBottom()
	p.viewport.SetContent(p.render())
	if follow {
		p.viewport.GotoBottom()
	}
}

func (p *ChatPanel) render() string {
	if len(p.turns) == 0 {
		return emptyChatStyle.Render("Ask a question to get started.")
	}

	if len(p.cache) > len(p.turns) {
		p.cache = p.cache[:len(p.turns)]
	}
	blocks := make([]string, 0, len(p.turns))
	for i, t := range p.turns {
		pending := t.IsAssistant() && t.Content == "" && p.busy && i == len(p.turns)-1
		if i < len(p.cache) && p.cache[i].turn == t && p.cache[i].width == p.width && p.cache[i].pending == pending {
			blocks = append(blocks, p.cache[i].text)
			continue
		}
		r := renderedTurn{turn: t, width: p.width, pending: pending, text: p.renderTurn(t, pending)}
		if i < len(p.cache) {
			p.cache[i] = r
		} else {
			p.cache = append(p.cache, r)
		}
		blocks = append(blocks, r.text)
	}
	return strings.Join(blocks, "\n\n")
}

func (p *ChatPanel) renderTurn(t chat.Turn, pending bool) string {
	if !t.IsAssistant() {
		return userLabelStyle.Render(userLabel) + "\n" + wrapText(t.Content, p.width)
	}

	body := t.Content
	switch {
	case pending:
		body = pendingStyle.Render(pendingText)
	case p.markdown:
		body = termmd.Render(body, p.width)
	default:
		body = wrapText(body, p.width)
	}
	return assistantLabelStyle.Render(assistantLabel) + "\n" + body
}

func wrapText(s string, width int) string {
	if width <= 0 {
		return s
	}
	return lipgloss.NewStyle().Width(width).Render(s)
}
