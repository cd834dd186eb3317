// Package channel connects the conversation controller to the terminal.
package channel

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/linanwx/chatball/conversation"
	"github.com/linanwx/chatball/internal/health"
	"github.com/linanwx/chatball/logger"
)

// UI modes.
const (
	ModeAuto  = "auto"
	ModeTUI   = "tui"
	ModePlain = "plain"
)

// Channel is an interactive front end for a conversation.
type Channel interface {
	// Name returns the channel name ("tui" or "plain").
	Name() string

	// Run serves the user until they quit, input ends, or ctx is done.
	Run(ctx context.Context) error
}

// Config configures a channel.
type Config struct {
	Mode           string        // auto, tui or plain
	Markdown       bool          // render assistant markdown in the TUI
	Prober         health.Prober // backend health source for the status line; optional
	HealthInterval time.Duration // zero disables polling

	In  io.Reader // plain mode input, defaults to os.Stdin
	Out io.Writer // plain mode output, defaults to os.Stdout
}

// New picks a channel for cfg.Mode. In auto mode the TUI is used when stdin
// is a terminal, the plain line channel otherwise.
func New(ctrl *conversation.Controller, cfg Config) Channel {
	if cfg.In == nil {
		cfg.In = os.Stdin
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}

	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" || mode == ModeAuto {
		mode = ModePlain
		if term.IsTerminal(int(os.Stdin.Fd())) {
			mode = ModeTUI
		}
	}

	logger.Debug("channel selected", "mode", mode)
	if mode == ModeTUI {
		return newTUIChannel(ctrl, cfg)
	}
	return newPlainChannel(ctrl, cfg)
}

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// TerminalWidth returns the width of w, or fallback when w is not a terminal.
func TerminalWidth(w io.Writer, fallback int) int {
	f, ok := w.(*os.File)
	if !ok {
		return fallback
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		return fallback
	}
	return width
}
