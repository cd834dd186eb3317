package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func useTempConfigDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	SetConfigDir(dir)
	t.Cleanup(func() { SetConfigDir("") })
	t.Setenv(EnvAPIURL, "")
	t.Setenv(EnvTopK, "")
	t.Setenv(EnvLogLevel, "")
	return dir
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	useTempConfigDir(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.API.BaseURL != defaultBaseURL {
		t.Errorf("BaseURL = %q, want %q", cfg.API.BaseURL, defaultBaseURL)
	}
	if cfg.API.TopK != 3 {
		t.Errorf("TopK = %d, want 3", cfg.API.TopK)
	}
	if cfg.UI.Mode != UIModeAuto {
		t.Errorf("UI.Mode = %q, want %q", cfg.UI.Mode, UIModeAuto)
	}
	if !cfg.MarkdownEnabled() {
		t.Error("MarkdownEnabled() = false, want true")
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := useTempConfigDir(t)

	cfg := DefaultConfig()
	cfg.API.BaseURL = "https://chat.example.com"
	cfg.API.TopK = 5
	cfg.API.Headers = map[string]string{"Authorization": "Bearer x"}
	cfg.API.ExtraBody = map[string]any{"lang": "fr"}
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "config.yaml")); err != nil {
		t.Fatalf("config file missing: %v", err)
	}

	got, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.API.BaseURL != "https://chat.example.com" || got.API.TopK != 5 {
		t.Fatalf("API = %+v", got.API)
	}
	if got.API.Headers["Authorization"] != "Bearer x" {
		t.Fatalf("Headers = %v", got.API.Headers)
	}
	if got.API.ExtraBody["lang"] != "fr" {
		t.Fatalf("ExtraBody = %v", got.API.ExtraBody)
	}
}

func TestLoadAppliesDefaultsToPartialFile(t *testing.T) {
	dir := useTempConfigDir(t)
	raw := "api:\n  topK: 0\nui:\n  mode: fancy\nlogging:\n  level: debug\n"
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(raw), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.API.BaseURL != defaultBaseURL {
		t.Errorf("BaseURL = %q, want default", cfg.API.BaseURL)
	}
	if cfg.API.TopK != defaultTopK {
		t.Errorf("TopK = %d, want %d", cfg.API.TopK, defaultTopK)
	}
	if cfg.UI.Mode != UIModeAuto {
		t.Errorf("UI.Mode = %q, want auto", cfg.UI.Mode)
	}
	lc := cfg.BuildLoggerConfig()
	if !lc.Enabled || lc.Level != "debug" || lc.File == "" {
		t.Errorf("logger config = %+v", lc)
	}
}

func TestLoadRejectsBrokenYAML(t *testing.T) {
	dir := useTempConfigDir(t)
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("api: [\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(); err == nil {
		t.Fatal("Load() should fail on malformed yaml")
	}
}

func TestEnvOverrides(t *testing.T) {
	useTempConfigDir(t)
	t.Setenv(EnvAPIURL, "http://backend:9000")
	t.Setenv(EnvTopK, "7")
	t.Setenv(EnvLogLevel, "warn")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.API.BaseURL != "http://backend:9000" || cfg.API.TopK != 7 || cfg.Logging.Level != "warn" {
		t.Fatalf("env overrides not applied: %+v %+v", cfg.API, cfg.Logging)
	}
}

func TestEnvTopKInvalidIgnored(t *testing.T) {
	useTempConfigDir(t)
	t.Setenv(EnvTopK, "-2")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.API.TopK != defaultTopK {
		t.Fatalf("TopK = %d, want %d", cfg.API.TopK, defaultTopK)
	}
}

func TestHealthPollInterval(t *testing.T) {
	tests := []struct {
		raw  string
		want time.Duration
	}{
		{"", defaultHealthInterval},
		{"0", 0},
		{"5s", 5 * time.Second},
		{"soon", defaultHealthInterval},
		{"-1s", defaultHealthInterval},
	}
	for _, tt := range tests {
		cfg := &Config{UI: UIConfig{HealthInterval: tt.raw}}
		if got := cfg.HealthPollInterval(); got != tt.want {
			t.Errorf("HealthPollInterval(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}
