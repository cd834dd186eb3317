package channel

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/linanwx/chatball/chat"
	"github.com/linanwx/chatball/conversation"
	"github.com/linanwx/chatball/logger"
)

const (
	plainPrompt     = "you> "
	plainLabel      = "Chatball: "
	maxInputLineLen = 1 << 20
)

// plainChannel is a line-mode channel for pipes and dumb terminals. Answers
// are written as they stream in.
type plainChannel struct {
	ctrl        *conversation.Controller
	in          io.Reader
	out         io.Writer
	interactive bool

	mu        sync.Mutex // guards out and the fields below
	answering bool
	printed   int
}

func newPlainChannel(ctrl *conversation.Controller, cfg Config) *plainChannel {
	return &plainChannel{
		ctrl:        ctrl,
		in:          cfg.In,
		out:         cfg.Out,
		interactive: isTerminalFile(cfg.In),
	}
}

func (c *plainChannel) Name() string {
	return ModePlain
}

func (c *plainChannel) Run(ctx context.Context) error {
	logger.Info("channel started (plain mode)")
	defer logger.Info("channel stopped (plain mode)")

	id := c.ctrl.Subscribe(c.onChange)
	defer c.ctrl.Unsubscribe(id)

	lines := make(chan string)
	errc := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(c.in)
		scanner.Buffer(make([]byte, 0, 64*1024), maxInputLineLen)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		errc <- scanner.Err()
	}()

	for {
		c.writePrompt()
		select {
		case <-ctx.Done():
			c.ctrl.Stop()
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-errc:
					if err != nil {
						return fmt.Errorf("read input: %w", err)
					}
				default:
				}
				return nil
			}

			text := strings.TrimSpace(line)
			switch text {
			case "":
				continue
			case "/quit", "/exit":
				return nil
			case "/clear":
				c.ctrl.Reset()
				c.println(color.CyanString("conversation cleared"))
				continue
			}
			c.ask(ctx, text)
		}
	}
}

// ask sends one question and blocks until its answer ends. Ctrl+C stops the
// answer instead of the program.
func (c *plainChannel) ask(ctx context.Context, text string) {
	c.mu.Lock()
	c.answering = true
	c.printed = 0
	fmt.Fprint(c.out, color.New(color.FgMagenta, color.Bold).Sprint(plainLabel))
	c.mu.Unlock()

	if !c.ctrl.Send(text) {
		c.mu.Lock()
		c.answering = false
		fmt.Fprintln(c.out)
		c.mu.Unlock()
		return
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	defer signal.Stop(sig)

	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stopped := false
	go func() {
		select {
		case <-sig:
			c.ctrl.Stop()
			cancel()
		case <-waitCtx.Done():
		}
	}()

	if err := c.ctrl.Wait(waitCtx); err != nil {
		stopped = ctx.Err() == nil
		c.ctrl.Stop()
	}

	snap := c.finish()
	switch {
	case snap.Alert != "":
		c.println(color.RedString("error: %s", snap.Alert))
	case stopped:
		c.println(color.YellowString("(stopped)"))
	case snap.Busy:
		// The stream closed without a done or error event.
		logger.Warn("answer ended without a terminal event")
		c.ctrl.Stop()
		c.println(color.YellowString("(answer ended unexpectedly)"))
	}
}

// finish writes any text not yet shown and ends the current answer.
func (c *plainChannel) finish() conversation.Snapshot {
	snap := c.ctrl.Snapshot()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.flush(snap.Conversation)
	c.answering = false
	fmt.Fprintln(c.out)
	return snap
}

func (c *plainChannel) onChange() {
	conv := c.ctrl.Conversation()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.answering {
		c.flush(conv)
	}
}

// flush writes the unseen suffix of the trailing assistant turn. Caller
// holds c.mu.
func (c *plainChannel) flush(conv chat.Conversation) {
	last, ok := conv.Last()
	if !ok || !last.IsAssistant() || len(last.Content) <= c.printed {
		return
	}
	_, _ = io.WriteString(c.out, last.Content[c.printed:])
	c.printed = len(last.Content)
}

func (c *plainChannel) writePrompt() {
	if !c.interactive {
		return
	}
	c.mu.Lock()
	fmt.Fprint(c.out, color.CyanString(plainPrompt))
	c.mu.Unlock()
}

func (c *plainChannel) println(s string) {
	c.mu.Lock()
	fmt.Fprintln(c.out, s)
	c.mu.Unlock()
}

func isTerminalFile(v any) bool {
	f, ok := v.(*os.File)
	return ok && IsTerminal(f)
}
