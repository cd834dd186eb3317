// Package health probes the chat backend and summarizes the local client
// setup for `chatball health` and the TUI status line.
package health

import (
	"context"
	"time"

	"github.com/linanwx/chatball/client"
)

// Prober reports backend health. *client.Client implements it.
type Prober interface {
	Health(ctx context.Context) (*client.HealthStatus, error)
}

// Status is the result of one backend probe.
type Status struct {
	Reachable bool          `json:"reachable"`
	OK        bool          `json:"ok"`
	Provider  string        `json:"provider,omitempty"`
	Model     string        `json:"model,omitempty"`
	Err       string        `json:"error,omitempty"`
	Latency   time.Duration `json:"latency"`
	CheckedAt time.Time     `json:"checkedAt"`
}

// Healthy reports whether the backend answered and said it is ok.
func (s Status) Healthy() bool {
	return s.Reachable && s.OK
}

// same reports whether two probes observed the same backend state.
func (s Status) same(o Status) bool {
	return s.Reachable == o.Reachable &&
		s.OK == o.OK &&
		s.Provider == o.Provider &&
		s.Model == o.Model &&
		s.Err == o.Err
}

// Options controls Collect.
type Options struct {
	Prober     Prober
	BaseURL    string
	ConfigPath string
	LogPath    string
	Timeout    time.Duration
}

func (o Options) normalize() Options {
	if o.Timeout <= 0 {
		o.Timeout = defaultProbeTimeout
	}
	return o
}

// Snapshot is the report printed by `chatball health`.
type Snapshot struct {
	Status    string      `json:"status"`
	Backend   BackendInfo `json:"backend"`
	Runtime   RuntimeInfo `json:"runtime"`
	Config    *FileInfo   `json:"config,omitempty"`
	Log       *FileInfo   `json:"log,omitempty"`
	Timestamp string      `json:"timestamp"`
}

// BackendInfo describes the probed backend.
type BackendInfo struct {
	BaseURL string `json:"baseURL"`
	Status
}

// RuntimeInfo describes the client process.
type RuntimeInfo struct {
	Version string `json:"version"`
	OS      string `json:"os"`
	Arch    string `json:"arch"`
}

// FileInfo describes a local file the client depends on.
type FileInfo struct {
	Path          string `json:"path"`
	Exists        bool   `json:"exists"`
	FileSizeBytes int64  `json:"fileSizeBytes,omitempty"`
	UpdatedAt     string `json:"updatedAt,omitempty"`
	ParseError    string `json:"parseError,omitempty"`
}
