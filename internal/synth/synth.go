package synth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"dubstitch/internal/config"
)

// Request carries one line of text to synthesize.
type Request struct {
	Text     string
	Language string
	Voice    string
	// SpeedHint nudges the synthesizer's speaking rate. 1.0 is neutral;
	// values above 1 speak faster. Advisory only.
	SpeedHint float64
}

// Synthesizer turns a text line into a speech audio file at dst.
type Synthesizer interface {
	Synthesize(ctx context.Context, req Request, dst string) error
}

// CommandSynthesizer shells out to an external TTS helper binary for each
// line. The helper's contract: write a WAV file at --out and exit zero.
type CommandSynthesizer struct {
	command string
	voice   string
	lang    string
	speed   float64
	logger  *slog.Logger
}

// NewCommandSynthesizer builds a synthesizer from the configured helper.
func NewCommandSynthesizer(cfg config.Synthesis, logger *slog.Logger) (*CommandSynthesizer, error) {
	command := strings.TrimSpace(cfg.Command)
	if command == "" {
		return nil, errors.New("synthesis command is not configured")
	}
	return &CommandSynthesizer{
		command: command,
		voice:   cfg.Voice,
		lang:    cfg.Language,
		speed:   cfg.Speed,
		logger:  logger,
	}, nil
}

// Synthesize runs the helper for one line. The request's language, voice, and
// speed override the configured defaults when set.
func (s *CommandSynthesizer) Synthesize(ctx context.Context, req Request, dst string) error {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return errors.New("synthesize: empty text")
	}

	args := []string{"--text", text, "--out", dst}
	if lang := firstNonEmpty(req.Language, s.lang); lang != "" {
		args = append(args, "--language", lang)
	}
	if voice := firstNonEmpty(req.Voice, s.voice); voice != "" {
		args = append(args, "--voice", voice)
	}
	if speed := firstPositive(req.SpeedHint, s.speed); speed > 0 {
		args = append(args, "--speed", strconv.FormatFloat(speed, 'f', 2, 64))
	}

	started := time.Now()
	cmd := exec.CommandContext(ctx, s.command, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("synthesize: %s: %w: %s", s.command, err, strings.TrimSpace(string(output)))
	}

	info, err := os.Stat(dst)
	if err != nil {
		return fmt.Errorf("synthesize: helper exited clean but wrote no output: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("synthesize: helper wrote empty file %s", dst)
	}

	s.logger.Debug("line synthesized",
		slog.Int("chars", len(text)),
		slog.Duration("elapsed", time.Since(started)))
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

func firstPositive(values ...float64) float64 {
	for _, value := range values {
		if value > 0 {
			return value
		}
	}
	return 0
}
