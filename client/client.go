// Package client talks to the chat backend over HTTP.
//
// The streaming endpoint answers with newline-delimited JSON events:
//
//	{"delta": "<partial text>"}
//	{"done": true}
//	{"error": "<message>"}
//
// Stream reads that body incrementally and reports events through callbacks;
// Ask and Health cover the plain JSON endpoints.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/tidwall/sjson"

	"github.com/linanwx/chatball/chat"
)

const (
	chatPath   = "/api/chat"
	streamPath = "/api/chat/stream"
	healthPath = "/health"

	// DefaultTopK is the retrieval breadth used when none is configured.
	DefaultTopK = 3

	userAgent = "chatball"
)

// Config configures a Client.
type Config struct {
	BaseURL    string            // origin/prefix; empty keeps request paths relative
	TopK       int               // default top_k for requests that don't set one
	Headers    map[string]string // added to every request
	ExtraBody  map[string]any    // merged into chat request bodies
	HTTPClient *http.Client
}

// Client is a chat backend client. It holds no conversation state and is safe
// for concurrent use.
type Client struct {
	baseURL    string
	topK       int
	headers    map[string]string
	extraBody  map[string]any
	httpClient *http.Client
}

// New creates a client. The default HTTP client has no overall timeout:
// streams run until they finish or are cancelled.
func New(cfg Config) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	topK := cfg.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		topK:       topK,
		headers:    cfg.Headers,
		extraBody:  cfg.ExtraBody,
		httpClient: hc,
	}
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// TopK returns the default retrieval breadth.
func (c *Client) TopK() int {
	return c.topK
}

func (c *Client) endpoint(path string) string {
	return c.baseURL + path
}

func (c *Client) resolveTopK(topK int) int {
	if topK > 0 {
		return topK
	}
	return c.topK
}

// buildChatBody encodes {messages, top_k} plus any configured extra fields.
// messages and top_k always win over extra fields of the same name.
func (c *Client) buildChatBody(messages []chat.Turn, topK int) ([]byte, error) {
	if messages == nil {
		messages = []chat.Turn{}
	}

	body := []byte(`{}`)
	keys := make([]string, 0, len(c.extraBody))
	for k := range c.extraBody {
		if k == "messages" || k == "top_k" || strings.TrimSpace(k) == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var err error
	for _, k := range keys {
		body, err = sjson.SetBytes(body, escapePathKey(k), c.extraBody[k])
		if err != nil {
			return nil, fmt.Errorf("set extra field %q: %w", k, err)
		}
	}
	if body, err = sjson.SetBytes(body, "messages", messages); err != nil {
		return nil, fmt.Errorf("set messages: %w", err)
	}
	if body, err = sjson.SetBytes(body, "top_k", topK); err != nil {
		return nil, fmt.Errorf("set top_k: %w", err)
	}
	return body, nil
}

// newRequest builds a request with the common headers. The returned id is
// sent as X-Request-ID and used to correlate log lines.
func (c *Client) newRequest(ctx context.Context, method, path string, body []byte) (*http.Request, string, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), rd)
	if err != nil {
		return nil, "", fmt.Errorf("create request: %w", err)
	}

	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	id := uuid.NewString()
	req.Header.Set("X-Request-ID", id)
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, id, nil
}

// escapePathKey escapes sjson path metacharacters so k is treated as a
// single top-level key.
func escapePathKey(k string) string {
	var b strings.Builder
	for _, r := range k {
		switch r {
		case '.', '*', '?', '|', '#', '@', '\\', ':':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
