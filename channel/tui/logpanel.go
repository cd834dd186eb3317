package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const defaultMaxLogLines = 1000

var (
	logLineStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8")) // dim gray
	logWarnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	logErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

// logStyle picks a style from the slog text handler's level field.
func logStyle(line string) lipgloss.Style {
	switch {
	case strings.Contains(line, "level=ERROR"):
		return logErrorStyle
	case strings.Contains(line, "level=WARN"):
		return logWarnStyle
	default:
		return logLineStyle
	}
}

// LogPanel displays log output in a scrollable viewport. It is hidden until
// toggled, but keeps buffering lines meanwhile.
type LogPanel struct {
	viewport viewport.Model
	lines    []string
	maxLines int
}

// NewLogPanel creates a log panel.
func NewLogPanel() *LogPanel {
	vp := viewport.New(0, 0)
	vp.SetContent("")
	return &LogPanel{
		viewport: vp,
		maxLines: defaultMaxLogLines,
	}
}

func (p *LogPanel) Update(msg tea.Msg) (Panel, tea.Cmd) {
	switch msg := msg.(type) {
	case LogLineMsg:
		line := strings.TrimRight(msg.Line, "\n")
		p.lines = append(p.lines, logStyle(line).Render(line))
		if len(p.lines) > p.maxLines {
			p.lines = p.lines[len(p.lines)-p.maxLines:]
		}
		p.viewport.SetContent(strings.Join(p.lines, "\n"))
		p.viewport.GotoBottom()
		return p, nil
	}
	var cmd tea.Cmd
	p.viewport, cmd = p.viewport.Update(msg)
	return p, cmd
}

// Len returns the number of buffered lines.
func (p *LogPanel) Len() int {
	return len(p.lines)
}

func (p *LogPanel) View() string {
	return p.viewport.View()
}

func (p *LogPanel) SetSize(width, height int) {
	p.viewport.Width = width
	p.viewport.Height = height
	// Lines buffered while hidden moved the offset past the content.
	p.viewport.GotoBottom()
}
