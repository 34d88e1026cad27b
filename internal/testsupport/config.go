package testsupport

import (
	"path/filepath"
	"testing"

	"dubstitch/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StagingDir = filepath.Join(base, "staging")
	cfg.Paths.OutputDir = filepath.Join(base, "output")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Synthesis.Command = "tts-helper"

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithFlushSize overrides the batch flush size on the test config.
func WithFlushSize(size int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Batch.FlushSize = size
	}
}
