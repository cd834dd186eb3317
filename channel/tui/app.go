package tui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	defaultLogRatio = 0.35
	inputPrompt     = "> "

	cmdClear = "/clear"
	cmdQuit  = "/quit"
)

var separatorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))

// Options configures the App.
type Options struct {
	Markdown bool
}

// App is the root bubbletea model that orchestrates panels and layout.
type App struct {
	ctrl Controller

	logPanel    *LogPanel
	chatPanel   *ChatPanel
	inputPanel  *InputPanel
	statusPanel *StatusPanel

	alert    string
	showLogs bool

	width, height int
	logRatio      float64

	refresh <-chan struct{}
	logs    <-chan string
}

// NewApp creates the root TUI model. refresh delivers controller change
// signals and logs delivers log lines; either may be nil.
func NewApp(ctrl Controller, refresh <-chan struct{}, logs <-chan string, opts Options) *App {
	return &App{
		ctrl:        ctrl,
		logPanel:    NewLogPanel(),
		chatPanel:   NewChatPanel(opts.Markdown),
		inputPanel:  NewInputPanel(inputPrompt),
		statusPanel: NewStatusPanel(),
		logRatio:    defaultLogRatio,
		refresh:     refresh,
		logs:        logs,
	}
}

func (m *App) Init() tea.Cmd {
	return tea.Batch(
		func() tea.Msg { return StateMsg{Snapshot: m.ctrl.Snapshot()} },
		waitForSignal(m.refresh),
		waitForLog(m.logs),
	)
}

// waitForSignal turns the next refresh signal into a refreshMsg.
func waitForSignal(ch <-chan struct{}) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return refreshMsg{}
	}
}

// waitForLog turns the next buffered log line into a LogLineMsg.
func waitForLog(ch <-chan string) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		line, ok := <-ch
		if !ok {
			return nil
		}
		return LogLineMsg{Line: line}
	}
}

func (m *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.recalcLayout()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			m.ctrl.Stop()
			return m, tea.Quit
		case tea.KeyEsc:
			m.ctrl.Stop()
			m.ctrl.ClearAlert()
			return m, nil
		case tea.KeyCtrlL:
			m.showLogs = !m.showLogs
			m.recalcLayout()
			return m, nil
		case tea.KeyPgUp, tea.KeyPgDown:
			_, cmd := m.chatPanel.Update(msg)
			return m, cmd
		}
		// All other keys go to input panel.
		_, cmd := m.inputPanel.Update(msg)
		m.ctrl.SetInput(m.inputPanel.Value())
		cmds = append(cmds, cmd)

	case tea.MouseMsg:
		_, cmd := m.chatPanel.Update(msg)
		cmds = append(cmds, cmd)

	case InputSubmitMsg:
		switch msg.Text {
		case cmdQuit:
			m.ctrl.Stop()
			return m, tea.Quit
		case cmdClear:
			m.ctrl.Reset()
		default:
			m.ctrl.Send(msg.Text)
		}

	case refreshMsg:
		cmds = append(cmds, m.applyState(StateMsg{Snapshot: m.ctrl.Snapshot()}))
		cmds = append(cmds, waitForSignal(m.refresh))

	case StateMsg:
		cmds = append(cmds, m.applyState(msg))

	case LogLineMsg:
		_, cmd := m.logPanel.Update(msg)
		cmds = append(cmds, cmd, waitForLog(m.logs))

	case HealthMsg:
		_, cmd := m.statusPanel.Update(msg)
		cmds = append(cmds, cmd)

	default:
		// Spinner ticks and cursor blinks.
		_, cmd := m.statusPanel.Update(msg)
		cmds = append(cmds, cmd)
		_, cmd = m.inputPanel.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// applyState fans a controller snapshot out to the panels.
func (m *App) applyState(msg StateMsg) tea.Cmd {
	alertChanged := m.alert != msg.Snapshot.Alert
	m.alert = msg.Snapshot.Alert

	var cmds []tea.Cmd
	for _, p := range []Panel{m.chatPanel, m.inputPanel, m.statusPanel} {
		_, cmd := p.Update(msg)
		cmds = append(cmds, cmd)
	}
	if alertChanged {
		m.recalcLayout()
	}
	return tea.Batch(cmds...)
}

func (m *App) View() string {
	if m.width == 0 || m.height == 0 {
		return "initializing..."
	}

	sep := separatorStyle.Render(strings.Repeat("─", m.width))

	var parts []string
	if m.showLogs {
		parts = append(parts, m.logPanel.View(), sep)
	}
	parts = append(parts, m.chatPanel.View())
	if m.alert != "" {
		parts = append(parts, renderAlert(m.alert, m.width))
	}
	parts = append(parts, m.statusPanel.View(), sep, m.inputPanel.View())

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m *App) recalcLayout() {
	if m.width == 0 || m.height == 0 {
		return
	}
	const inputH = 1
	const statusH = 1
	const sepLines = 1

	fixed := inputH + statusH + sepLines
	if m.alert != "" {
		fixed += lipgloss.Height(renderAlert(m.alert, m.width))
	}
	usable := max(m.height-fixed, 2)

	chatH := usable
	if m.showLogs {
		logH := max(int(float64(usable)*m.logRatio), 1)
		chatH = max(usable-logH-1, 1)
		m.logPanel.SetSize(m.width, logH)
	}
	m.chatPanel.SetSize(m.width, chatH)
	m.statusPanel.SetSize(m.width, statusH)
	m.inputPanel.SetSize(m.width, inputH)
}
