package channel

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/linanwx/chatball/channel/tui"
	"github.com/linanwx/chatball/conversation"
	"github.com/linanwx/chatball/internal/health"
	"github.com/linanwx/chatball/logger"
)

const tuiLogBufferSize = 256

// TUIChannel runs the conversation in a full-screen bubbletea program.
type TUIChannel struct {
	ctrl *conversation.Controller
	cfg  Config
}

func newTUIChannel(ctrl *conversation.Controller, cfg Config) *TUIChannel {
	return &TUIChannel{ctrl: ctrl, cfg: cfg}
}

func (c *TUIChannel) Name() string { return ModeTUI }

func (c *TUIChannel) Run(ctx context.Context) error {
	// Controller changes are coalesced into a single pending signal; the app
	// re-reads the full snapshot when it handles one.
	refresh := make(chan struct{}, 1)
	subID := c.ctrl.Subscribe(func() {
		select {
		case refresh <- struct{}{}:
		default:
		}
	})
	defer c.ctrl.Unsubscribe(subID)

	// Redirect logger output to the TUI log panel.
	lw := newLogWriter(tuiLogBufferSize)
	logger.Intercept(lw)
	defer logger.Restore()

	app := tui.NewApp(c.ctrl, refresh, lw.lines, tui.Options{Markdown: c.cfg.Markdown})
	program := tea.NewProgram(app,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)

	if c.cfg.Prober != nil {
		mon := health.NewMonitor(c.cfg.Prober, c.cfg.HealthInterval, func(st health.Status) {
			program.Send(tui.HealthMsg{Status: st})
		})
		if err := mon.Start(); err != nil {
			logger.Warn("health monitor not started", "err", err)
		} else {
			defer mon.Stop()
		}
	}

	logger.Info("channel started (TUI mode)")
	_, err := program.Run()
	c.ctrl.Stop()
	logger.Info("channel stopped (TUI mode)")

	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}

// logWriter implements io.Writer and queues each line for the TUI log panel.
// Lines are dropped when the queue is full so logging never blocks the UI.
type logWriter struct {
	lines chan string
}

func newLogWriter(size int) *logWriter {
	return &logWriter{lines: make(chan string, size)}
}

func (w *logWriter) Write(p []byte) (int, error) {
	// Split on newlines in case a single write contains multiple lines.
	for _, line := range bytes.Split(p, []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		select {
		case w.lines <- string(line):
		default:
		}
	}
	return len(p), nil
}
