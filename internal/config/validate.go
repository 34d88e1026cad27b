package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateDialogue(); err != nil {
		return err
	}
	if err := c.validateMix(); err != nil {
		return err
	}
	if err := c.validateBatch(); err != nil {
		return err
	}
	if err := c.validateOutput(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.StagingDir == "" {
		return errors.New("paths.staging_dir must be set")
	}
	if c.Paths.OutputDir == "" {
		return errors.New("paths.output_dir must be set")
	}
	return nil
}

func (c *Config) validateDialogue() error {
	if c.Dialogue.MinGapMS < 0 {
		return errors.New("dialogue.min_gap_ms must not be negative")
	}
	if c.Dialogue.MinDurationMS <= 0 {
		return errors.New("dialogue.min_duration_ms must be positive")
	}
	for name, value := range map[string]float64{
		"dialogue.merge_similarity":  c.Dialogue.MergeSimilarity,
		"dialogue.merge_containment": c.Dialogue.MergeContainment,
	} {
		if value < 0 || value > 1 {
			return fmt.Errorf("%s must be between 0 and 1", name)
		}
	}
	return nil
}

func (c *Config) validateMix() error {
	if c.Mix.DialoguePercent <= 0 || c.Mix.DialoguePercent > 100 {
		return errors.New("mix.dialogue_percent must be between 0 and 100")
	}
	if c.Mix.GapFraction <= 0 || c.Mix.GapFraction > 1 {
		return errors.New("mix.gap_fraction must be between 0 and 1")
	}
	if c.Mix.GapCapPercent <= 0 || c.Mix.GapCapPercent > 100 {
		return errors.New("mix.gap_cap_percent must be between 0 and 100")
	}
	if c.Mix.DubHeadroomDB < 0 {
		return errors.New("mix.dub_headroom_db must not be negative")
	}
	return nil
}

func (c *Config) validateBatch() error {
	if c.Batch.FlushSize <= 0 {
		return errors.New("batch.flush_size must be positive")
	}
	return nil
}

func (c *Config) validateOutput() error {
	if c.Output.Height <= 0 {
		return errors.New("output.height must be positive")
	}
	if c.Output.StitchedSuffix == "" {
		return errors.New("output.stitched_suffix must be set")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.NtfyTopic != "" && c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}
