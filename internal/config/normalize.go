package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeWorkers()
	c.normalizeSynthesis()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeWorkers() {
	if c.Workers.Synthesis <= 0 {
		c.Workers.Synthesis = Default().Workers.Synthesis
	}
	if c.Workers.Encoding <= 0 {
		c.Workers.Encoding = Default().Workers.Encoding
	}
}

func (c *Config) normalizeSynthesis() {
	c.Synthesis.Command = strings.TrimSpace(c.Synthesis.Command)
	c.Synthesis.Voice = strings.TrimSpace(c.Synthesis.Voice)
	c.Synthesis.Language = strings.TrimSpace(c.Synthesis.Language)
	if c.Synthesis.Speed <= 0 {
		c.Synthesis.Speed = 1.0
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}
