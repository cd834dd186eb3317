// Package tui provides the terminal user interface for chatting.
package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/linanwx/chatball/conversation"
	"github.com/linanwx/chatball/internal/health"
)

// Panel is a composable TUI region with its own state, update logic, and view.
// The root App model orchestrates panels without knowing their internals.
type Panel interface {
	Update(tea.Msg) (Panel, tea.Cmd)
	View() string
	SetSize(width, height int)
}

// Controller is the part of the conversation controller the TUI drives.
type Controller interface {
	Send(text string) bool
	Stop()
	Reset()
	ClearAlert()
	SetInput(text string)
	Snapshot() conversation.Snapshot
}

// LogLineMsg carries a single log line from the logger writer.
type LogLineMsg struct{ Line string }

// StateMsg carries the controller state after a change.
type StateMsg struct{ Snapshot conversation.Snapshot }

// HealthMsg carries a new backend health status.
type HealthMsg struct{ Status health.Status }

// InputSubmitMsg is emitted when the user presses Enter in the input panel.
type InputSubmitMsg struct{ Text string }

// refreshMsg signals that the controller changed and should be re-read.
type refreshMsg struct{}
