package client

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

var (
	// ErrConnection is reported when the request never reaches the backend.
	ErrConnection = errors.New("connection interrupted or blocked")

	// ErrStreamInterrupted is reported when the body read fails mid-stream.
	ErrStreamInterrupted = errors.New("stream read interrupted")
)

// maxErrorBody caps how much of a failed response is read for its detail.
const maxErrorBody = 64 << 10

// StatusError is a non-2xx response, or a response without a readable body.
type StatusError struct {
	Code   int
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("HTTP %d", e.Code)
}

// EventError is an error event sent by the backend inside the stream.
type EventError struct {
	Message string
}

func (e *EventError) Error() string {
	return e.Message
}

// newStatusError reads the detail out of a failed response. The lookup order
// is the JSON "detail" field, then the raw body when it is not JSON, then
// nothing (Error falls back to the status code).
func newStatusError(resp *http.Response) *StatusError {
	se := &StatusError{Code: resp.StatusCode}
	if resp.Body == nil || resp.Body == http.NoBody {
		return se
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil && len(data) == 0 {
		return se
	}
	se.Detail = extractDetail(data)
	return se
}

func extractDetail(data []byte) string {
	text := strings.TrimSpace(string(data))
	if text == "" {
		return ""
	}
	if !gjson.Valid(text) {
		return text
	}
	detail := gjson.Get(text, "detail")
	if !truthy(detail) {
		return ""
	}
	return valueText(detail)
}

func isSuccess(code int) bool {
	return code >= 200 && code < 300
}
