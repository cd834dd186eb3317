// Package conversation owns the chat transcript and drives one stream at a
// time against the backend.
package conversation

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/linanwx/chatball/chat"
	"github.com/linanwx/chatball/client"
	"github.com/linanwx/chatball/logger"
)

const unknownError = "unknown error"

// Streamer starts a streaming chat request. *client.Client implements it.
type Streamer interface {
	Stream(ctx context.Context, messages []chat.Turn, opts client.StreamOptions, cb client.Callbacks) client.Handle
}

// Config configures a Controller.
type Config struct {
	TopK int // zero leaves the choice to the streamer
}

// Snapshot is a consistent view of the controller state.
type Snapshot struct {
	Conversation chat.Conversation
	Busy         bool
	Alert        string
	Input        string
}

type subscription struct {
	id string
	fn func()
}

// Controller holds the conversation, the busy flag and the alert, and turns
// stream callbacks into transcript updates.
//
// Callbacks arrive on the stream goroutine. Each stream gets a generation
// number; callbacks from a stream that was stopped or has already finished
// are dropped, so a stopped answer never grows again.
type Controller struct {
	streamer Streamer
	topK     int

	mu     sync.Mutex
	conv   chat.Conversation
	busy   bool
	alert  string
	input  string
	handle client.Handle
	gen    uint64

	subs       []subscription
	subCounter int64
}

// New creates a controller with an empty conversation.
func New(streamer Streamer, cfg Config) *Controller {
	return &Controller{
		streamer: streamer,
		topK:     cfg.TopK,
	}
}

// Send submits text as a new user turn and starts streaming the answer. It
// reports false, changing nothing, when the trimmed text is empty or a stream
// is already active.
func (c *Controller) Send(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}

	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return false
	}
	c.gen++
	gen := c.gen
	history := c.conv.Append(chat.UserTurn(text))
	c.conv = history.Append(chat.AssistantTurn(""))
	c.alert = ""
	c.input = ""
	c.busy = true
	c.mu.Unlock()

	logger.Info("conversation send", "turns", len(history), "chars", len(text))
	c.notify()

	h := c.streamer.Stream(context.Background(), history, client.StreamOptions{TopK: c.topK}, client.Callbacks{
		OnDelta: func(delta string) { c.onDelta(gen, delta) },
		OnDone:  func() { c.onDone(gen) },
		OnError: func(err error) { c.onError(gen, err) },
	})

	c.mu.Lock()
	if c.gen == gen {
		c.handle = h
		c.mu.Unlock()
		return true
	}
	c.mu.Unlock()
	// Stopped, reset or finished before the handle was stored. Cancel is a
	// no-op on a finished stream.
	h.Cancel()
	return true
}

// Stop cancels the active stream. Text received so far stays in the
// conversation. It does nothing when idle.
func (c *Controller) Stop() {
	c.mu.Lock()
	if !c.busy {
		c.mu.Unlock()
		return
	}
	h := c.halt()
	c.mu.Unlock()

	if h != nil {
		h.Cancel()
	}
	logger.Info("conversation stopped")
	c.notify()
}

// Reset stops any active stream and empties the conversation.
func (c *Controller) Reset() {
	c.mu.Lock()
	h := c.halt()
	c.conv = nil
	c.alert = ""
	c.mu.Unlock()

	if h != nil {
		h.Cancel()
	}
	logger.Info("conversation reset")
	c.notify()
}

// halt detaches the active stream. Caller holds c.mu.
func (c *Controller) halt() client.Handle {
	h := c.handle
	c.handle = nil
	c.busy = false
	c.gen++
	return h
}

// Wait blocks until the active stream goroutine exits or ctx is done. It
// returns immediately when no stream is active.
//
// A stream that ends without a done or error event leaves the controller
// busy; callers that need to move on must Stop it.
func (c *Controller) Wait(ctx context.Context) error {
	c.mu.Lock()
	h := c.handle
	c.mu.Unlock()
	if h == nil {
		return nil
	}
	select {
	case <-h.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) onDelta(gen uint64, delta string) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.conv = c.conv.AppendAssistantText(delta)
	c.mu.Unlock()
	c.notify()
}

func (c *Controller) onDone(gen uint64) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.halt()
	c.mu.Unlock()

	logger.Debug("conversation answer complete")
	c.notify()
}

func (c *Controller) onError(gen uint64, err error) {
	msg := unknownError
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.halt()
	c.alert = msg
	c.mu.Unlock()

	logger.Warn("conversation answer failed", "err", msg)
	c.notify()
}

// Conversation returns a copy of the transcript.
func (c *Controller) Conversation() chat.Conversation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conv.Clone()
}

// Busy reports whether a stream is active.
func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

// Alert returns the last error message, or "" when there is none.
func (c *Controller) Alert() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.alert
}

// ClearAlert dismisses the alert.
func (c *Controller) ClearAlert() {
	c.mu.Lock()
	changed := c.alert != ""
	c.alert = ""
	c.mu.Unlock()
	if changed {
		c.notify()
	}
}

// Input returns the pending input text.
func (c *Controller) Input() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.input
}

// SetInput replaces the pending input text. It does not notify subscribers.
func (c *Controller) SetInput(text string) {
	c.mu.Lock()
	c.input = text
	c.mu.Unlock()
}

// Snapshot returns all observable state at once.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Conversation: c.conv.Clone(),
		Busy:         c.busy,
		Alert:        c.alert,
		Input:        c.input,
	}
}

// Subscribe registers fn to be called after every state change and returns
// an id for Unsubscribe. fn runs on whichever goroutine made the change,
// without the controller lock held.
func (c *Controller) Subscribe(fn func()) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.subCounter++
	id := fmt.Sprintf("sub-%d", c.subCounter)
	c.subs = append(c.subs, subscription{id: id, fn: fn})
	return id
}

// Unsubscribe removes a subscription. Unknown ids are ignored.
func (c *Controller) Unsubscribe(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, s := range c.subs {
		if s.id == id {
			c.subs = append(c.subs[:i:i], c.subs[i+1:]...)
			return
		}
	}
}

func (c *Controller) notify() {
	c.mu.Lock()
	subs := c.subs
	c.mu.Unlock()

	for _, s := range subs {
		s.fn()
	}
}
