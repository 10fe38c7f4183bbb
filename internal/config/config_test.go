package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"slidecast/internal/config"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config failed validation: %v", err)
	}
	if cfg.Backend.BaseURL == "" {
		t.Fatal("expected default backend base URL")
	}
	if cfg.Workflow.AudioPollInterval <= 0 || cfg.Workflow.RenderPollInterval <= 0 {
		t.Fatalf("expected positive poll intervals, got %+v", cfg.Workflow)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if exists {
		t.Fatalf("expected missing config, got exists for %s", resolved)
	}
	if cfg.Backend.RequestTimeout != 30 {
		t.Fatalf("expected default request timeout, got %d", cfg.Backend.RequestTimeout)
	}
}

func TestLoadParsesAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := strings.Join([]string{
		"[backend]",
		`base_url = "https://studio.example.com/api/"`,
		"request_timeout = 5",
		"",
		"[workflow]",
		"audio_poll_interval = 1",
		"",
		"[logging]",
		`format = "JSON"`,
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to be detected")
	}
	if cfg.Backend.BaseURL != "https://studio.example.com/api" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Backend.BaseURL)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected lowercased format, got %q", cfg.Logging.Format)
	}
	if got := cfg.AudioPollInterval(); got != time.Second {
		t.Fatalf("expected 1s audio poll interval, got %s", got)
	}
	if cfg.Workflow.RenderPollInterval != 2 {
		t.Fatalf("expected default render poll interval, got %d", cfg.Workflow.RenderPollInterval)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"bad scheme", func(c *config.Config) { c.Backend.BaseURL = "ftp://example.com" }},
		{"bad format", func(c *config.Config) { c.Logging.Format = "xml" }},
		{"bad level", func(c *config.Config) { c.Logging.Level = "verbose" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestTokenFromEnvironment(t *testing.T) {
	t.Setenv("SLIDECAST_API_TOKEN", "env-token")
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Backend.APIToken != "env-token" {
		t.Fatalf("expected token from environment, got %q", cfg.Backend.APIToken)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[backend]") {
		t.Fatal("expected sample to contain backend section")
	}
}
