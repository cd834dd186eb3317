package config

import "time"

const (
	defaultBaseURL        = "http://localhost:8000"
	defaultTopK           = 3
	defaultUIMode         = "auto"
	defaultHealthInterval = 30 * time.Second
)

// UI modes.
const (
	UIModeAuto  = "auto"
	UIModeTUI   = "tui"
	UIModePlain = "plain"
)

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	markdown := true
	return &Config{
		API: APIConfig{
			BaseURL: defaultBaseURL,
			TopK:    defaultTopK,
		},
		UI: UIConfig{
			Mode:           defaultUIMode,
			Markdown:       &markdown,
			HealthInterval: defaultHealthInterval.String(),
		},
		Logging: defaultLoggingConfig(),
	}
}

func defaultLoggingConfig() LoggingConfig {
	enabled := true
	return LoggingConfig{
		Enabled: &enabled,
		Level:   "info",
		File:    "logs/chatball.log",
	}
}

func (c *Config) applyDefaults() {
	if c.API.BaseURL == "" {
		c.API.BaseURL = defaultBaseURL
	}
	if c.API.TopK <= 0 {
		c.API.TopK = defaultTopK
	}

	switch c.UI.Mode {
	case UIModeAuto, UIModeTUI, UIModePlain:
	default:
		c.UI.Mode = defaultUIMode
	}

	def := defaultLoggingConfig()
	if c.Logging.Enabled == nil && c.Logging.Level == "" && c.Logging.File == "" && !c.Logging.Console {
		c.Logging = def
		return
	}
	if c.Logging.Enabled == nil {
		enabled := true
		c.Logging.Enabled = &enabled
	}
	if c.Logging.Level == "" {
		c.Logging.Level = def.Level
	}
	if c.Logging.File == "" && !c.Logging.Console {
		c.Logging.File = def.File
	}
}
