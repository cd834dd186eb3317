// Package config handles configuration loading and saving.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/linanwx/chatball/logger"
)

const (
	configFileName = "config.yaml"
	configDirName  = ".chatball"

	EnvConfigDir = "CHATBALL_CONFIG_DIR"
	EnvAPIURL    = "CHATBALL_API_URL"
	EnvTopK      = "CHATBALL_TOP_K"
	EnvLogLevel  = "CHATBALL_LOG_LEVEL"
)

var configDirOverride string

// SetConfigDir overrides the config directory for the current process.
// Empty value clears the override.
func SetConfigDir(dir string) {
	configDirOverride = strings.TrimSpace(dir)
}

// Config is the root configuration structure.
type Config struct {
	API     APIConfig     `yaml:"api"`
	UI      UIConfig      `yaml:"ui"`
	Logging LoggingConfig `yaml:"logging,omitempty"`
}

// APIConfig describes how to reach the chat backend.
type APIConfig struct {
	BaseURL   string            `yaml:"baseURL"`             // empty means relative paths
	TopK      int               `yaml:"topK"`                // retrieval breadth passed to the backend
	Headers   map[string]string `yaml:"headers,omitempty"`   // extra request headers
	ExtraBody map[string]any    `yaml:"extraBody,omitempty"` // extra JSON fields merged into chat requests
}

// UIConfig controls the interactive front end.
type UIConfig struct {
	Mode           string `yaml:"mode"`                     // auto, tui, plain
	Markdown       *bool  `yaml:"markdown,omitempty"`       // render assistant markdown
	HealthInterval string `yaml:"healthInterval,omitempty"` // e.g. 30s; "0" disables polling
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Enabled *bool  `yaml:"enabled,omitempty"`
	Level   string `yaml:"level,omitempty"`   // debug, info, warn, error
	Console bool   `yaml:"console,omitempty"` // log to stderr
	File    string `yaml:"file,omitempty"`    // log file path, relative to the config dir
}

// ConfigDir returns the configuration directory.
func ConfigDir() (string, error) {
	if configDirOverride != "" {
		return configDirOverride, nil
	}
	if env := strings.TrimSpace(os.Getenv(EnvConfigDir)); env != "" {
		return env, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, configDirName), nil
}

// ConfigPath returns the path of the config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

// Load reads the config file, applies defaults and environment overrides.
// A missing file is not an error: defaults are returned.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		cfg = DefaultConfig()
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyDefaults()
	cfg.applyEnv()
	return cfg, nil
}

// Save writes the config file, creating the directory if needed.
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvAPIURL)); v != "" {
		c.API.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvTopK)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.API.TopK = n
		} else {
			logger.Warn("ignoring invalid env value", "key", EnvTopK, "value", v)
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		c.Logging.Level = v
	}
}

// BuildLoggerConfig converts the logging section to a logger.Config.
func (c *Config) BuildLoggerConfig() logger.Config {
	enabled := true
	if c.Logging.Enabled != nil {
		enabled = *c.Logging.Enabled
	}
	return logger.Config{
		Enabled: enabled,
		Level:   c.Logging.Level,
		Console: c.Logging.Console,
		File:    c.Logging.File,
	}
}

// MarkdownEnabled reports whether assistant turns should be rendered as markdown.
func (c *Config) MarkdownEnabled() bool {
	return c.UI.Markdown == nil || *c.UI.Markdown
}

// HealthPollInterval returns the backend health polling interval. Zero
// disables polling.
func (c *Config) HealthPollInterval() time.Duration {
	raw := strings.TrimSpace(c.UI.HealthInterval)
	if raw == "" {
		return defaultHealthInterval
	}
	if raw == "0" {
		return 0
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		logger.Warn("invalid ui.healthInterval, using default", "value", raw)
		return defaultHealthInterval
	}
	return d
}
