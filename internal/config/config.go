package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	StagingDir string `toml:"staging_dir"`
	OutputDir  string `toml:"output_dir"`
	LogDir     string `toml:"log_dir"`
}

// Workers contains worker pool sizing for the pipeline.
type Workers struct {
	Synthesis int `toml:"synthesis"`
	Encoding  int `toml:"encoding"`
}

// Dialogue contains normalization thresholds for dialogue windows.
type Dialogue struct {
	MinGapMS         int     `toml:"min_gap_ms"`
	MinDurationMS    int     `toml:"min_duration_ms"`
	MergeSimilarity  float64 `toml:"merge_similarity"`
	MergeContainment float64 `toml:"merge_containment"`
}

// Mix contains audio underlay mixing parameters.
type Mix struct {
	// DialoguePercent is the original-audio loudness under dubbed dialogue,
	// as a percentage of the dubbed track's reference loudness.
	DialoguePercent float64 `toml:"dialogue_percent"`
	// GapFraction scales DialoguePercent for silent-gap segments.
	GapFraction float64 `toml:"gap_fraction"`
	// GapCapPercent is the hard ceiling for the gap mix percentage.
	GapCapPercent float64 `toml:"gap_cap_percent"`
	// DubHeadroomDB is the attenuation applied to the dubbed track before overlay.
	DubHeadroomDB float64 `toml:"dub_headroom_db"`
}

// Batch contains batching configuration for the encode pipeline.
type Batch struct {
	FlushSize int `toml:"flush_size"`
}

// Output contains final artifact settings.
type Output struct {
	Height         int    `toml:"height"`
	StitchedSuffix string `toml:"stitched_suffix"`
	// WordTimedSidecar additionally renders a ".words.srt" track with one
	// cue per word for players that highlight the active word.
	WordTimedSidecar bool `toml:"word_timed_sidecar"`
}

// Synthesis contains the speech synthesis collaborator settings.
type Synthesis struct {
	Command  string  `toml:"command"`
	Voice    string  `toml:"voice"`
	Language string  `toml:"language"`
	Speed    float64 `toml:"speed"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for dubstitch.
//
// Configuration sections by subsystem:
//   - Paths: staging, output, and log directories
//   - Workers: synthesis and batch-encoding pool sizes
//   - Dialogue: window normalization thresholds
//   - Mix: underlay loudness calibration
//   - Batch: dialogue flush size per encoded batch
//   - Output: downscale height and stitched-file naming
//   - Synthesis: external TTS helper invocation
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Workers       Workers       `toml:"workers"`
	Dialogue      Dialogue      `toml:"dialogue"`
	Mix           Mix           `toml:"mix"`
	Batch         Batch         `toml:"batch"`
	Output        Output        `toml:"output"`
	Synthesis     Synthesis     `toml:"synthesis"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/dubstitch/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("dubstitch.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories a dub run needs.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StagingDir, c.Paths.OutputDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// FFmpegBinary returns the ffmpeg executable name used for all transcoding.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

// FFprobeBinary returns the ffprobe executable name used for media probing.
func (c *Config) FFprobeBinary() string {
	return "ffprobe"
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
