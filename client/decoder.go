package client

import (
	"bytes"
	"strings"
	"unicode"

	"github.com/tidwall/gjson"
)

// Event is one decoded line of the stream. The tags are meant to be mutually
// exclusive, but a line carrying several is handled in the order delta, done,
// error.
type Event struct {
	Delta string
	Done  bool
	Error string
}

// LineBuffer accumulates raw body bytes and hands out complete lines.
type LineBuffer struct {
	pending []byte
}

// Feed appends chunk and returns every line completed by it, without the
// trailing newline. Text after the last newline stays buffered.
func (b *LineBuffer) Feed(chunk []byte) []string {
	b.pending = append(b.pending, chunk...)

	var lines []string
	for {
		i := bytes.IndexByte(b.pending, '\n')
		if i < 0 {
			break
		}
		lines = append(lines, string(b.pending[:i]))
		b.pending = b.pending[i+1:]
	}
	if len(lines) > 0 {
		// Drop the consumed prefix so the backing array doesn't grow forever.
		b.pending = append([]byte(nil), b.pending...)
	}
	return lines
}

// Pending returns the buffered partial line.
func (b *LineBuffer) Pending() string {
	return string(b.pending)
}

// ParseEvent decodes one line. It reports false for blank lines, invalid
// JSON and JSON values that are not objects; callers skip those.
func ParseEvent(line string) (Event, bool) {
	line = trimLine(line)
	if line == "" || !gjson.Valid(line) {
		return Event{}, false
	}
	obj := gjson.Parse(line)
	if !obj.IsObject() {
		return Event{}, false
	}

	var ev Event
	if d := obj.Get("delta"); truthy(d) {
		ev.Delta = valueText(d)
	}
	ev.Done = truthy(obj.Get("done"))
	if e := obj.Get("error"); truthy(e) {
		ev.Error = valueText(e)
	}
	return ev, true
}

// truthy applies JSON value truthiness: false, null, 0, "" and missing
// values are false, everything else is true.
func truthy(r gjson.Result) bool {
	if !r.Exists() {
		return false
	}
	switch r.Type {
	case gjson.Null, gjson.False:
		return false
	case gjson.Number:
		return r.Num != 0
	case gjson.String:
		return r.Str != ""
	default:
		return true
	}
}

// valueText returns strings unquoted and any other value as raw JSON.
func valueText(r gjson.Result) string {
	if r.Type == gjson.String {
		return r.Str
	}
	return r.Raw
}

func trimLine(s string) string {
	return strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || r == '\uFEFF'
	})
}
