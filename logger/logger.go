// Package logger wraps log/slog with process-wide configuration and the
// ability to reroute output into the terminal UI.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Config describes logger settings.
type Config struct {
	Enabled bool
	Level   string
	Console bool
	File    string
}

var (
	mu      sync.RWMutex
	base    = slog.New(slog.NewTextHandler(io.Discard, nil))
	enabled bool

	current   Config
	logFile   *os.File
	intercept io.Writer // set while the TUI owns the terminal
)

// Init configures the logger. Relative file paths resolve against dir.
func Init(cfg Config, dir string) error {
	mu.Lock()
	defer mu.Unlock()

	current = cfg
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}

	if !cfg.Enabled {
		enabled = false
		base = slog.New(slog.NewTextHandler(io.Discard, nil))
		return nil
	}

	var initErr error
	if cfg.File != "" {
		path := resolvePath(cfg.File, dir)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return fmt.Errorf("logger: create log dir: %w", err)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			initErr = fmt.Errorf("logger: open log file: %w", err)
		} else {
			logFile = f
		}
	}

	rebuild()
	return initErr
}

// Intercept sends console output to w instead of stderr. The log file, if
// any, keeps receiving records.
func Intercept(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	intercept = w
	if enabled {
		rebuild()
	}
}

// Restore undoes Intercept.
func Restore() {
	mu.Lock()
	defer mu.Unlock()
	intercept = nil
	if enabled {
		rebuild()
	}
}

// Must be called with mu held.
func rebuild() {
	opts := &slog.HandlerOptions{Level: ParseLevel(current.Level)}

	var writers []io.Writer
	switch {
	case intercept != nil:
		writers = append(writers, intercept)
	case current.Console:
		writers = append(writers, os.Stderr)
	}
	if logFile != nil {
		writers = append(writers, logFile)
	}
	if len(writers) == 0 {
		writers = append(writers, io.Discard)
	}

	base = slog.New(slog.NewTextHandler(io.MultiWriter(writers...), opts))
	enabled = true
}

// Debug logs a debug message.
func Debug(msg string, args ...any) {
	log(slog.LevelDebug, msg, args...)
}

// Info logs an info message.
func Info(msg string, args ...any) {
	log(slog.LevelInfo, msg, args...)
}

// Warn logs a warning message.
func Warn(msg string, args ...any) {
	log(slog.LevelWarn, msg, args...)
}

// Error logs an error message.
func Error(msg string, args ...any) {
	log(slog.LevelError, msg, args...)
}

func log(level slog.Level, msg string, args ...any) {
	mu.RLock()
	l := base
	on := enabled
	mu.RUnlock()

	if !on {
		return
	}
	l.Log(context.Background(), level, msg, args...)
}

// ParseLevel maps a config string to a slog level. Unknown values mean info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func resolvePath(path, dir string) string {
	if strings.HasPrefix(path, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	if filepath.IsAbs(path) || dir == "" {
		return path
	}
	return filepath.Join(dir, path)
}
