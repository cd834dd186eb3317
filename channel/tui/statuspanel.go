package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/linanwx/chatball/internal/health"
	"github.com/linanwx/chatball/internal/tokens"
)

var (
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	healthOKStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	healthBadStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	alertStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("1")).Padding(0, 1)
)

// StatusPanel shows the busy spinner, backend health and a token estimate
// on a single line.
type StatusPanel struct {
	spinner spinner.Model
	busy    bool
	health  health.Status
	checked bool
	tokens  int
	counter tokens.Counter
	width   int
}

// NewStatusPanel creates a status panel.
func NewStatusPanel() *StatusPanel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return &StatusPanel{spinner: sp}
}

func (p *StatusPanel) Update(msg tea.Msg) (Panel, tea.Cmd) {
	switch msg := msg.(type) {
	case StateMsg:
		wasBusy := p.busy
		p.busy = msg.Snapshot.Busy
		p.tokens = p.counter.Count(msg.Snapshot.Conversation, p.busy)
		if p.busy && !wasBusy {
			return p, p.spinner.Tick
		}
		return p, nil
	case HealthMsg:
		p.health = msg.Status
		p.checked = true
		return p, nil
	case spinner.TickMsg:
		if !p.busy {
			return p, nil
		}
		var cmd tea.Cmd
		p.spinner, cmd = p.spinner.Update(msg)
		return p, cmd
	}
	return p, nil
}

func (p *StatusPanel) View() string {
	var left string
	if p.busy {
		left = p.spinner.View() + " answering (Esc to stop)"
	} else {
		left = "ready (Ctrl+L logs, Ctrl+C quit)"
	}

	right := fmt.Sprintf("~%d tokens  %s", p.tokens, p.healthLabel())
	gap := p.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return statusStyle.Render(left) + strings.Repeat(" ", gap) + right
}

func (p *StatusPanel) healthLabel() string {
	switch {
	case !p.checked:
		return statusStyle.Render("backend: checking")
	case p.health.Healthy():
		label := "backend: ok"
		if p.health.Model != "" {
			label += " (" + p.health.Model + ")"
		}
		return healthOKStyle.Render(label)
	case p.health.Reachable:
		return healthBadStyle.Render("backend: degraded")
	default:
		return healthBadStyle.Render("backend: unreachable")
	}
}

func (p *StatusPanel) SetSize(width, height int) {
	p.width = width
}

// renderAlert renders the alert banner, or "" when there is no alert.
func renderAlert(alert string, width int) string {
	if alert == "" {
		return ""
	}
	style := alertStyle
	if width > 0 {
		style = style.Width(width)
	}
	return style.Render("Error: " + alert)
}
