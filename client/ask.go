package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/linanwx/chatball/chat"
	"github.com/linanwx/chatball/logger"
)

// ChatResponse is the body of a non-streaming chat answer.
type ChatResponse struct {
	Answer    string   `json:"answer"`
	Retrieved []string `json:"retrieved"`
}

// HealthStatus is the body of the health endpoint.
type HealthStatus struct {
	OK       bool   `json:"ok"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// Ask sends messages to the non-streaming endpoint and waits for the full
// answer. A topK of zero uses the client's default.
func (c *Client) Ask(ctx context.Context, messages []chat.Turn, topK int) (*ChatResponse, error) {
	topK = c.resolveTopK(topK)
	body, err := c.buildChatBody(messages, topK)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	req, reqID, err := c.newRequest(ctx, http.MethodPost, chatPath, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	logger.Info("chat request", "request_id", reqID, "turns", len(messages), "top_k", topK)

	var out ChatResponse
	if err := c.doJSON(req, &out); err != nil {
		logger.Warn("chat request failed", "request_id", reqID, "err", err)
		return nil, err
	}

	logger.Info("chat response",
		"request_id", reqID,
		"answerChars", len(out.Answer),
		"retrieved", len(out.Retrieved),
		"latencyMs", time.Since(start).Milliseconds(),
	)
	return &out, nil
}

// Health probes the backend health endpoint.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	req, _, err := c.newRequest(ctx, http.MethodGet, healthPath, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	var out HealthStatus
	if err := c.doJSON(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// doJSON executes req and decodes a successful body into out. Failures map
// onto the same error values the stream reports.
func (c *Client) doJSON(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return newStatusError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
