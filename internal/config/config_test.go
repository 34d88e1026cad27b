package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, path, exists, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if exists {
		t.Fatal("expected exists=false for missing file")
	}
	if path == "" {
		t.Fatal("expected resolved path")
	}
	if cfg.Batch.FlushSize != 10 {
		t.Fatalf("unexpected flush size %d", cfg.Batch.FlushSize)
	}
	if cfg.Mix.DialoguePercent != 10 {
		t.Fatalf("unexpected dialogue percent %v", cfg.Mix.DialoguePercent)
	}
}

func TestLoadOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
staging_dir = "` + dir + `/staging"
output_dir = "` + dir + `/out"

[workers]
synthesis = 8

[batch]
flush_size = 25

[mix]
dialogue_percent = 15
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !exists {
		t.Fatal("expected exists=true")
	}
	if cfg.Workers.Synthesis != 8 {
		t.Fatalf("workers.synthesis = %d, want 8", cfg.Workers.Synthesis)
	}
	if cfg.Batch.FlushSize != 25 {
		t.Fatalf("batch.flush_size = %d, want 25", cfg.Batch.FlushSize)
	}
	if cfg.Mix.DialoguePercent != 15 {
		t.Fatalf("mix.dialogue_percent = %v, want 15", cfg.Mix.DialoguePercent)
	}
	// Unset sections keep defaults.
	if cfg.Output.Height != 1080 {
		t.Fatalf("output.height = %d, want 1080", cfg.Output.Height)
	}
}

func TestValidateRejectsBadMix(t *testing.T) {
	cfg := Default()
	cfg.Mix.DialoguePercent = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for zero dialogue percent")
	}

	cfg = Default()
	cfg.Mix.GapFraction = 1.5
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for gap fraction > 1")
	}
}

func TestNormalizeFloorsWorkers(t *testing.T) {
	cfg := Default()
	cfg.Workers.Synthesis = -1
	cfg.Workers.Encoding = 0
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	if cfg.Workers.Synthesis <= 0 || cfg.Workers.Encoding <= 0 {
		t.Fatalf("workers not floored: %+v", cfg.Workers)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("sample config is empty")
	}
}
