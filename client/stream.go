package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/text/encoding/unicode"

	"github.com/linanwx/chatball/chat"
	"github.com/linanwx/chatball/logger"
)

const readChunkSize = 4096

// Callbacks receive stream events. Any of them may be nil. They run on the
// stream's goroutine: zero or more OnDelta calls, then at most one of OnDone
// or OnError.
type Callbacks struct {
	OnDelta func(delta string)
	OnDone  func()
	OnError func(err error)
}

// StreamOptions tunes a single stream.
type StreamOptions struct {
	TopK int // zero uses the client's default
}

// Handle controls an in-flight stream.
type Handle interface {
	// Cancel aborts the stream and suppresses every later callback; one that
	// is already being dispatched may still run to completion. Calling it
	// again, or after the stream finished, does nothing.
	Cancel()
	// Done is closed when the stream goroutine has exited.
	Done() <-chan struct{}
}

type streamHandle struct {
	cancel    context.CancelFunc
	cancelled atomic.Bool
	done      chan struct{}
}

func (h *streamHandle) Cancel() {
	if h.cancelled.CompareAndSwap(false, true) {
		h.cancel()
	}
}

func (h *streamHandle) Done() <-chan struct{} {
	return h.done
}

// Stream posts messages to the streaming endpoint and returns immediately.
// Events are reported through cb until a terminal event, a failure, the end
// of the body, or cancellation. Cancelling ctx has the same effect as
// Handle.Cancel: the abort is swallowed rather than reported.
func (c *Client) Stream(ctx context.Context, messages []chat.Turn, opts StreamOptions, cb Callbacks) Handle {
	ctx, cancel := context.WithCancel(ctx)
	h := &streamHandle{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(h.done)
		defer cancel()
		d := &dispatcher{ctx: ctx, h: h, cb: cb}
		c.runStream(ctx, d, messages, c.resolveTopK(opts.TopK))
	}()
	return h
}

func (c *Client) runStream(ctx context.Context, d *dispatcher, messages []chat.Turn, topK int) {
	body, err := c.buildChatBody(messages, topK)
	if err != nil {
		d.fail(fmt.Errorf("encode request: %w", err))
		return
	}
	req, reqID, err := c.newRequest(ctx, http.MethodPost, streamPath, body)
	if err != nil {
		d.fail(err)
		return
	}
	req.Header.Set("Accept", "application/x-ndjson")

	start := time.Now()
	logger.Info("chat stream request", "request_id", reqID, "turns", len(messages), "top_k", topK)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if d.aborted() {
			logger.Debug("chat stream cancelled before response", "request_id", reqID)
			return
		}
		logger.Warn("chat stream connect failed", "request_id", reqID, "err", err)
		d.fail(ErrConnection)
		return
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) || resp.Body == http.NoBody {
		se := newStatusError(resp)
		logger.Warn("chat stream rejected", "request_id", reqID, "status", resp.StatusCode, "detail", se.Detail)
		d.fail(se)
		return
	}

	outcome := d.consume(resp.Body)
	logger.Info("chat stream finished",
		"request_id", reqID,
		"outcome", outcome,
		"deltas", d.deltas,
		"latencyMs", time.Since(start).Milliseconds(),
	)
}

// dispatcher owns the callbacks of one stream and enforces the ordering
// rules: nothing after a terminal callback, nothing after cancellation.
type dispatcher struct {
	ctx      context.Context
	h        *streamHandle
	cb       Callbacks
	finished bool
	deltas   int
}

func (d *dispatcher) aborted() bool {
	return d.h.cancelled.Load() || d.ctx.Err() != nil
}

func (d *dispatcher) live() bool {
	return !d.finished && !d.aborted()
}

func (d *dispatcher) delta(text string) {
	if !d.live() {
		return
	}
	d.deltas++
	if d.cb.OnDelta != nil {
		d.cb.OnDelta(text)
	}
}

func (d *dispatcher) done() {
	if !d.live() {
		return
	}
	d.finished = true
	if d.cb.OnDone != nil {
		d.cb.OnDone()
	}
}

func (d *dispatcher) fail(err error) {
	if !d.live() {
		return
	}
	d.finished = true
	if d.cb.OnError != nil {
		d.cb.OnError(err)
	}
}

// consume reads r chunk by chunk and dispatches each complete line as soon
// as its newline arrives. Lines are framed on raw bytes and decoded one at a
// time; a newline never falls inside a multi-byte sequence. It returns a
// short outcome label for logging.
func (d *dispatcher) consume(r io.Reader) string {
	var lines LineBuffer
	dec := unicode.UTF8.NewDecoder()
	buf := make([]byte, readChunkSize)

	for {
		n, err := r.Read(buf)
		if n > 0 {
			for _, raw := range lines.Feed(buf[:n]) {
				line, derr := dec.String(raw)
				if derr != nil {
					line = strings.ToValidUTF8(raw, "\uFFFD")
				}
				if outcome, stop := d.handleLine(line); stop {
					return outcome
				}
			}
		}
		switch {
		case err == nil:
			if d.aborted() {
				return "cancelled"
			}
		case errors.Is(err, io.EOF):
			if pending := trimLine(lines.Pending()); pending != "" {
				logger.Debug("chat stream dropped unterminated line", "bytes", len(pending))
			}
			logger.Debug("chat stream ended without terminal event")
			return "eof"
		default:
			if d.aborted() {
				return "cancelled"
			}
			logger.Warn("chat stream read failed", "err", err)
			d.fail(ErrStreamInterrupted)
			return "interrupted"
		}
	}
}

func (d *dispatcher) handleLine(line string) (string, bool) {
	ev, ok := ParseEvent(line)
	if !ok {
		return "", false
	}
	if ev.Delta != "" {
		d.delta(ev.Delta)
	}
	if ev.Done {
		d.done()
		return "done", true
	}
	if ev.Error != "" {
		d.fail(&EventError{Message: ev.Error})
		return "error", true
	}
	if d.aborted() {
		return "cancelled", true
	}
	return "", false
}
