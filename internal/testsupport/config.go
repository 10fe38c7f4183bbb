package testsupport

import (
	"path/filepath"
	"testing"

	"slidecast/internal/config"
)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Backend.BaseURL = "http://127.0.0.1:0/api"
	cfg.Workflow.AudioPollInterval = 1
	cfg.Workflow.RenderPollInterval = 1
	return &cfg
}
