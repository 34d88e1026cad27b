package ffmpeg

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ExtractAudio pulls the slice [start, end) of src's audio into a WAV file.
func (t *Transcoder) ExtractAudio(ctx context.Context, src string, start, end time.Duration, dst string) error {
	return t.run(ctx,
		"-ss", seconds(start), "-to", seconds(end),
		"-i", src,
		"-vn", "-ac", "2", "-ar", "48000",
		"-c:a", "pcm_s16le",
		dst)
}

// GenerateSilence writes a silent WAV of the given duration.
func (t *Transcoder) GenerateSilence(ctx context.Context, duration time.Duration, dst string) error {
	return t.run(ctx,
		"-f", "lavfi", "-i", "anullsrc=channel_layout=stereo:sample_rate=48000",
		"-t", seconds(duration),
		"-c:a", "pcm_s16le",
		dst)
}

// StretchAudio fits src to the target duration with pitch-preserving tempo
// adjustment. atempo only accepts factors in [0.5, 2], so larger changes are
// decomposed into a chain; residual rounding is absorbed by an exact trim/pad.
func (t *Transcoder) StretchAudio(ctx context.Context, src string, target time.Duration, dst string) error {
	if target <= 0 {
		return fmt.Errorf("stretch audio: non-positive target %v", target)
	}
	current, err := t.AudioDuration(ctx, src)
	if err != nil {
		return fmt.Errorf("stretch audio: probe source: %w", err)
	}
	if current <= 0 {
		return fmt.Errorf("stretch audio: source %s has no duration", src)
	}

	tempo := current.Seconds() / target.Seconds()
	filters := append(atempoChain(tempo), fmt.Sprintf("apad=whole_dur=%s", seconds(target)))
	return t.run(ctx,
		"-i", src,
		"-af", strings.Join(filters, ","),
		"-t", seconds(target),
		"-c:a", "pcm_s16le",
		dst)
}

// atempoChain decomposes a tempo factor into atempo stages within [0.5, 2].
func atempoChain(tempo float64) []string {
	if tempo <= 0 {
		tempo = 1
	}
	var stages []string
	for tempo > 2 {
		stages = append(stages, "atempo=2.0")
		tempo /= 2
	}
	for tempo < 0.5 {
		stages = append(stages, "atempo=0.5")
		tempo /= 0.5
	}
	stages = append(stages, fmt.Sprintf("atempo=%.6f", tempo))
	return stages
}

// AdjustVolume rewrites src with a flat gain in decibels.
func (t *Transcoder) AdjustVolume(ctx context.Context, src string, gainDB float64, dst string) error {
	return t.run(ctx,
		"-i", src,
		"-af", fmt.Sprintf("volume=%.3fdB", gainDB),
		"-c:a", "pcm_s16le",
		dst)
}

// OverlayAudio mixes the underlay beneath the dubbed track. The underlay is
// gained first, the dub is attenuated by the headroom, and the two are summed
// without amix's automatic normalization so the computed levels survive.
func (t *Transcoder) OverlayAudio(ctx context.Context, dub, underlay string, underlayGainDB, dubHeadroomDB float64, dst string) error {
	filter := fmt.Sprintf(
		"[0:a]volume=-%.3fdB[dub];[1:a]volume=%.3fdB[bed];[dub][bed]amix=inputs=2:duration=first:normalize=0[out]",
		dubHeadroomDB, underlayGainDB)
	return t.run(ctx,
		"-i", dub, "-i", underlay,
		"-filter_complex", filter,
		"-map", "[out]",
		"-c:a", "pcm_s16le",
		dst)
}

// TrimPadAudio forces src to exactly the target duration: longer input is
// trimmed, shorter input is padded with silence.
func (t *Transcoder) TrimPadAudio(ctx context.Context, src string, target time.Duration, dst string) error {
	return t.run(ctx,
		"-i", src,
		"-af", fmt.Sprintf("apad=whole_dur=%s", seconds(target)),
		"-t", seconds(target),
		"-c:a", "pcm_s16le",
		dst)
}

var rmsLevelPattern = regexp.MustCompile(`RMS level dB:\s*(-?[0-9.]+|nan|-inf)`)

// MeasureRMS measures the overall RMS level of src's audio and returns it as
// a linear amplitude. Silence measures as 0.
func (t *Transcoder) MeasureRMS(ctx context.Context, path string) (float64, error) {
	output, err := t.runner.Run(ctx, t.ffmpegBin,
		"-v", "info", "-hide_banner",
		"-i", path,
		"-af", "astats=measure_perchannel=none:measure_overall=RMS_level",
		"-f", "null", "-")
	if err != nil {
		return 0, fmt.Errorf("measure rms: %w", err)
	}

	matches := rmsLevelPattern.FindAllStringSubmatch(output, -1)
	if len(matches) == 0 {
		return 0, fmt.Errorf("measure rms: no RMS level in astats output for %s", path)
	}
	// astats prints per-channel levels before Overall; the last match is the
	// overall figure.
	level := matches[len(matches)-1][1]
	if level == "nan" || level == "-inf" {
		return 0, nil
	}
	db, err := strconv.ParseFloat(level, 64)
	if err != nil {
		return 0, fmt.Errorf("measure rms: parse level %q: %w", level, err)
	}
	return math.Pow(10, db/20), nil
}
