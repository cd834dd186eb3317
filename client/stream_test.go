package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/linanwx/chatball/chat"
)

type recorder struct {
	mu     sync.Mutex
	deltas []string
	done   int
	errs   []error
	events chan string
}

func newRecorder() *recorder {
	return &recorder{events: make(chan string, 64)}
}

func (r *recorder) callbacks() Callbacks {
	return Callbacks{
		OnDelta: func(s string) {
			r.mu.Lock()
			r.deltas = append(r.deltas, s)
			r.mu.Unlock()
			r.events <- "delta"
		},
		OnDone: func() {
			r.mu.Lock()
			r.done++
			r.mu.Unlock()
			r.events <- "done"
		},
		OnError: func(err error) {
			r.mu.Lock()
			r.errs = append(r.errs, err)
			r.mu.Unlock()
			r.events <- "error"
		},
	}
}

func (r *recorder) snapshot() ([]string, int, []error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.deltas...), r.done, append([]error(nil), r.errs...)
}

func waitHandle(t *testing.T, h Handle) {
	t.Helper()
	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not finish")
	}
}

func waitEvent(t *testing.T, r *recorder, want string) {
	t.Helper()
	select {
	case got := <-r.events:
		if got != want {
			t.Fatalf("event = %q, want %q", got, want)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %q", want)
	}
}

// ndjsonHandler writes each line followed by a newline and flushes it.
func ndjsonHandler(lines ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-ndjson")
		flusher, _ := w.(http.Flusher)
		for _, line := range lines {
			_, _ = io.WriteString(w, line+"\n")
			if flusher != nil {
				flusher.Flush()
			}
		}
	}
}

func userTurns(text string) []chat.Turn {
	return []chat.Turn{chat.UserTurn(text)}
}

func TestStreamDeliversDeltasThenDone(t *testing.T) {
	srv := httptest.NewServer(ndjsonHandler(
		`{"delta":"The "}`,
		`{"delta":"rules"}`,
		`{"done":true}`,
	))
	defer srv.Close()

	rec := newRecorder()
	h := New(Config{BaseURL: srv.URL}).Stream(context.Background(), userTurns("Hi"), StreamOptions{}, rec.callbacks())
	waitHandle(t, h)

	deltas, done, errs := rec.snapshot()
	if !reflect.DeepEqual(deltas, []string{"The ", "rules"}) {
		t.Fatalf("deltas = %q", deltas)
	}
	if done != 1 || len(errs) != 0 {
		t.Fatalf("done = %d, errs = %v", done, errs)
	}
}

func TestStreamDeliversLineBeforeSplitRune(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		// The chunk ends inside the two-byte encoding of "é".
		_, _ = io.WriteString(w, "{\"delta\":\"\u00e9\"}\n{\"delta\":\"\xc3")
		flusher.Flush()
		select {
		case <-release:
		case <-r.Context().Done():
			return
		}
		_, _ = io.WriteString(w, "\xa9t\u00e9\"}\n{\"done\":true}\n")
	}))
	defer srv.Close()

	rec := newRecorder()
	h := New(Config{BaseURL: srv.URL}).Stream(context.Background(), userTurns("Hi"), StreamOptions{}, rec.callbacks())
	defer h.Cancel()

	waitEvent(t, rec, "delta")
	close(release)
	waitEvent(t, rec, "delta")
	waitEvent(t, rec, "done")
	waitHandle(t, h)

	deltas, _, _ := rec.snapshot()
	if !reflect.DeepEqual(deltas, []string{"\u00e9", "\u00e9t\u00e9"}) {
		t.Fatalf("deltas = %q", deltas)
	}
}

func TestStreamErrorEvent(t *testing.T) {
	srv := httptest.NewServer(ndjsonHandler(
		`{"delta":"Partial"}`,
		`{"error":"rate limited"}`,
		`{"done":true}`,
	))
	defer srv.Close()

	rec := newRecorder()
	h := New(Config{BaseURL: srv.URL}).Stream(context.Background(), userTurns("Q"), StreamOptions{}, rec.callbacks())
	waitHandle(t, h)

	deltas, done, errs := rec.snapshot()
	if !reflect.DeepEqual(deltas, []string{"Partial"}) || done != 0 || len(errs) != 1 {
		t.Fatalf("deltas = %q, done = %d, errs = %v", deltas, done, errs)
	}
	var evErr *EventError
	if !errors.As(errs[0], &evErr) || evErr.Message != "rate limited" {
		t.Fatalf("error = %#v, want EventError(rate limited)", errs[0])
	}
}

func TestStreamHTTPFailure(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantText string
	}{
		{name: "json detail", status: http.StatusInternalServerError, body: `{"detail":"overloaded"}`, wantText: "overloaded"},
		{name: "json without detail", status: http.StatusBadGateway, body: `{"message":"x"}`, wantText: "HTTP 502"},
		{name: "empty detail", status: http.StatusServiceUnavailable, body: `{"detail":""}`, wantText: "HTTP 503"},
		{name: "plain text", status: http.StatusBadGateway, body: "upstream down", wantText: "upstream down"},
		{name: "empty body", status: http.StatusUnauthorized, body: "", wantText: "HTTP 401"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			rec := newRecorder()
			h := New(Config{BaseURL: srv.URL}).Stream(context.Background(), userTurns("Q"), StreamOptions{}, rec.callbacks())
			waitHandle(t, h)

			deltas, done, errs := rec.snapshot()
			if len(deltas) != 0 || done != 0 || len(errs) != 1 {
				t.Fatalf("deltas = %q, done = %d, errs = %v", deltas, done, errs)
			}
			var se *StatusError
			if !errors.As(errs[0], &se) || se.Code != tt.status {
				t.Fatalf("error = %#v, want StatusError %d", errs[0], tt.status)
			}
			if errs[0].Error() != tt.wantText {
				t.Fatalf("error text = %q, want %q", errs[0].Error(), tt.wantText)
			}
		})
	}
}

func TestStreamConnectionFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	rec := newRecorder()
	h := New(Config{BaseURL: url}).Stream(context.Background(), userTurns("Q"), StreamOptions{}, rec.callbacks())
	waitHandle(t, h)

	_, done, errs := rec.snapshot()
	if done != 0 || len(errs) != 1 {
		t.Fatalf("done = %d, errs = %v", done, errs)
	}
	if !errors.Is(errs[0], ErrConnection) {
		t.Fatalf("error = %v, want ErrConnection", errs[0])
	}
}

func TestStreamInterruptedMidBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"delta":"half"}`+"\n")
		w.(http.Flusher).Flush()
		panic(http.ErrAbortHandler)
	}))
	defer srv.Close()

	rec := newRecorder()
	h := New(Config{BaseURL: srv.URL}).Stream(context.Background(), userTurns("Q"), StreamOptions{}, rec.callbacks())
	waitHandle(t, h)

	deltas, done, errs := rec.snapshot()
	if !reflect.DeepEqual(deltas, []string{"half"}) || done != 0 || len(errs) != 1 {
		t.Fatalf("deltas = %q, done = %d, errs = %v", deltas, done, errs)
	}
	if !errors.Is(errs[0], ErrStreamInterrupted) {
		t.Fatalf("error = %v, want ErrStreamInterrupted", errs[0])
	}
}

func TestStreamEndsWithoutTerminalEvent(t *testing.T) {
	srv := httptest.NewServer(ndjsonHandler(`{"delta":"orphan"}`))
	defer srv.Close()

	rec := newRecorder()
	h := New(Config{BaseURL: srv.URL}).Stream(context.Background(), userTurns("Q"), StreamOptions{}, rec.callbacks())
	waitHandle(t, h)

	deltas, done, errs := rec.snapshot()
	if !reflect.DeepEqual(deltas, []string{"orphan"}) || done != 0 || len(errs) != 0 {
		t.Fatalf("deltas = %q, done = %d, errs = %v", deltas, done, errs)
	}
}

func TestStreamCancelBeforeFirstEvent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	rec := newRecorder()
	h := New(Config{BaseURL: srv.URL}).Stream(context.Background(), userTurns("Q"), StreamOptions{}, rec.callbacks())
	h.Cancel()
	waitHandle(t, h)

	deltas, done, errs := rec.snapshot()
	if len(deltas) != 0 || done != 0 || len(errs) != 0 {
		t.Fatalf("callbacks after cancel: deltas = %q, done = %d, errs = %v", deltas, done, errs)
	}
}

func TestStreamCancelMidStream(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"delta":"first"}`+"\n")
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	rec := newRecorder()
	h := New(Config{BaseURL: srv.URL}).Stream(context.Background(), userTurns("Q"), StreamOptions{}, rec.callbacks())
	waitEvent(t, rec, "delta")
	h.Cancel()
	h.Cancel()
	waitHandle(t, h)

	deltas, done, errs := rec.snapshot()
	if !reflect.DeepEqual(deltas, []string{"first"}) || done != 0 || len(errs) != 0 {
		t.Fatalf("deltas = %q, done = %d, errs = %v", deltas, done, errs)
	}
}

func TestStreamParentContextCancelIsSwallowed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	rec := newRecorder()
	h := New(Config{BaseURL: srv.URL}).Stream(ctx, userTurns("Q"), StreamOptions{}, rec.callbacks())
	cancel()
	waitHandle(t, h)

	_, done, errs := rec.snapshot()
	if done != 0 || len(errs) != 0 {
		t.Fatalf("done = %d, errs = %v", done, errs)
	}
}

func TestStreamCancelAfterDoneIsNoop(t *testing.T) {
	srv := httptest.NewServer(ndjsonHandler(`{"done":true}`))
	defer srv.Close()

	rec := newRecorder()
	h := New(Config{BaseURL: srv.URL}).Stream(context.Background(), nil, StreamOptions{}, rec.callbacks())
	waitHandle(t, h)
	h.Cancel()

	_, done, errs := rec.snapshot()
	if done != 1 || len(errs) != 0 {
		t.Fatalf("done = %d, errs = %v", done, errs)
	}
}

func TestStreamNilCallbacks(t *testing.T) {
	srv := httptest.NewServer(ndjsonHandler(`{"delta":"x"}`, `{"done":true}`))
	defer srv.Close()

	h := New(Config{BaseURL: srv.URL}).Stream(context.Background(), userTurns("Q"), StreamOptions{}, Callbacks{})
	waitHandle(t, h)
}

func TestStreamRequestShape(t *testing.T) {
	var (
		mu      sync.Mutex
		gotReq  *http.Request
		gotBody map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		gotReq = r
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		mu.Unlock()
		ndjsonHandler(`{"done":true}`)(w, r)
	}))
	defer srv.Close()

	c := New(Config{
		BaseURL: srv.URL + "/",
		TopK:    5,
		Headers: map[string]string{"Authorization": "Bearer t0ken"},
		ExtraBody: map[string]any{
			"temperature": 0.2,
			"top_k":       99,
			"dotted.key":  "v",
		},
	})
	turns := []chat.Turn{
		chat.UserTurn("Hi"),
		chat.AssistantTurn("Hello"),
		chat.UserTurn("Rules?"),
	}
	h := c.Stream(context.Background(), turns, StreamOptions{}, Callbacks{})
	waitHandle(t, h)

	mu.Lock()
	defer mu.Unlock()
	if gotReq == nil {
		t.Fatal("server saw no request")
	}
	if gotReq.Method != http.MethodPost || gotReq.URL.Path != streamPath {
		t.Fatalf("request = %s %s", gotReq.Method, gotReq.URL.Path)
	}
	if got := gotReq.Header.Get("Content-Type"); got != "application/json" {
		t.Fatalf("Content-Type = %q", got)
	}
	if got := gotReq.Header.Get("Authorization"); got != "Bearer t0ken" {
		t.Fatalf("Authorization = %q", got)
	}
	if gotReq.Header.Get("X-Request-ID") == "" {
		t.Fatal("missing X-Request-ID")
	}

	wantMessages := []any{
		map[string]any{"role": "user", "content": "Hi"},
		map[string]any{"role": "assistant", "content": "Hello"},
		map[string]any{"role": "user", "content": "Rules?"},
	}
	if !reflect.DeepEqual(gotBody["messages"], wantMessages) {
		t.Fatalf("messages = %#v", gotBody["messages"])
	}
	if gotBody["top_k"] != float64(5) {
		t.Fatalf("top_k = %v, want 5", gotBody["top_k"])
	}
	if gotBody["temperature"] != 0.2 {
		t.Fatalf("temperature = %v", gotBody["temperature"])
	}
	if gotBody["dotted.key"] != "v" {
		t.Fatalf("dotted.key = %v", gotBody["dotted.key"])
	}
}

func TestStreamOptionsTopKOverridesDefault(t *testing.T) {
	bodies := make(chan map[string]any, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		bodies <- body
		ndjsonHandler(`{"done":true}`)(w, r)
	}))
	defer srv.Close()

	h := New(Config{BaseURL: srv.URL}).Stream(context.Background(), nil, StreamOptions{TopK: 8}, Callbacks{})
	waitHandle(t, h)

	body := <-bodies
	if body["top_k"] != float64(8) {
		t.Fatalf("top_k = %v, want 8", body["top_k"])
	}
	if msgs, ok := body["messages"].([]any); !ok || len(msgs) != 0 {
		t.Fatalf("messages = %#v, want empty list", body["messages"])
	}
}
