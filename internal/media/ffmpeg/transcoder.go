package ffmpeg

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"dubstitch/internal/media/ffprobe"
)

// Probe hooks, package-level so tests can substitute canned results.
var (
	probeInspect    = ffprobe.Inspect
	probeTimestamps = ffprobe.FrameTimestamps
)

// Transcoder drives the external ffmpeg-compatible CLI. All operations are
// synchronous; a non-zero exit surfaces as an error for the caller's
// fallback strategy.
type Transcoder struct {
	runner     Runner
	ffmpegBin  string
	ffprobeBin string
	logger     *slog.Logger
}

// New constructs a transcoder around the given binaries.
func New(runner Runner, ffmpegBin, ffprobeBin string, logger *slog.Logger) *Transcoder {
	if ffmpegBin == "" {
		ffmpegBin = "ffmpeg"
	}
	if ffprobeBin == "" {
		ffprobeBin = "ffprobe"
	}
	return &Transcoder{runner: runner, ffmpegBin: ffmpegBin, ffprobeBin: ffprobeBin, logger: logger}
}

func (t *Transcoder) run(ctx context.Context, args ...string) error {
	full := append([]string{"-y", "-v", "error", "-hide_banner"}, args...)
	_, err := t.runner.Run(ctx, t.ffmpegBin, full...)
	return err
}

func seconds(d time.Duration) string {
	return fmt.Sprintf("%.3f", d.Seconds())
}

// Probe inspects a media file.
func (t *Transcoder) Probe(ctx context.Context, path string) (ffprobe.Result, error) {
	return probeInspect(ctx, t.ffprobeBin, path)
}

// Duration returns the container duration.
func (t *Transcoder) Duration(ctx context.Context, path string) (time.Duration, error) {
	result, err := t.Probe(ctx, path)
	if err != nil {
		return 0, err
	}
	return time.Duration(result.DurationSeconds() * float64(time.Second)), nil
}

// AudioDuration returns the duration of an audio file.
func (t *Transcoder) AudioDuration(ctx context.Context, path string) (time.Duration, error) {
	return t.Duration(ctx, path)
}

// HasAudioStream reports whether the file carries an audio stream.
func (t *Transcoder) HasAudioStream(ctx context.Context, path string) (bool, error) {
	result, err := t.Probe(ctx, path)
	if err != nil {
		return false, err
	}
	return result.HasAudio(), nil
}

// FrameTimestampsTail returns video frame timestamps within the final tail
// window of the file.
func (t *Transcoder) FrameTimestampsTail(ctx context.Context, path string, tail time.Duration) ([]float64, error) {
	duration, err := t.Duration(ctx, path)
	if err != nil {
		return nil, err
	}
	from := duration - tail
	if from < 0 {
		from = 0
	}
	return probeTimestamps(ctx, t.ffprobeBin, path, from.Seconds())
}

// TrimCopy cuts [start, end) out of src without re-encoding. Fails when no
// keyframe sits near the cut point; callers fall back to TrimReencode.
func (t *Transcoder) TrimCopy(ctx context.Context, src string, start, end time.Duration, dst string) error {
	return t.run(ctx,
		"-ss", seconds(start), "-to", seconds(end),
		"-i", src,
		"-c", "copy", "-avoid_negative_ts", "make_zero",
		dst)
}

// TrimReencode cuts [start, end) out of src with a full re-encode, frame
// accurate at any cut point.
func (t *Transcoder) TrimReencode(ctx context.Context, src string, start, end time.Duration, dst string) error {
	return t.run(ctx,
		"-ss", seconds(start), "-to", seconds(end),
		"-i", src,
		"-c:v", "libx264", "-preset", "veryfast", "-crf", "18",
		"-c:a", "aac", "-b:a", "192k",
		dst)
}

// PadVideo extends src to the target duration by cloning the last frame and
// padding audio with silence.
func (t *Transcoder) PadVideo(ctx context.Context, src string, target time.Duration, dst string) error {
	return t.run(ctx,
		"-i", src,
		"-vf", "tpad=stop_mode=clone:stop=-1",
		"-af", "apad",
		"-t", seconds(target),
		"-c:v", "libx264", "-preset", "veryfast", "-crf", "18",
		"-c:a", "aac", "-b:a", "192k",
		dst)
}

// TrimToDuration shortens src to the target duration with stream copy.
func (t *Transcoder) TrimToDuration(ctx context.Context, src string, target time.Duration, dst string) error {
	return t.run(ctx,
		"-i", src,
		"-t", seconds(target),
		"-c", "copy",
		dst)
}

// Mux combines a video stream and an audio stream, copying video.
func (t *Transcoder) Mux(ctx context.Context, video, audio, dst string) error {
	return t.run(ctx,
		"-i", video, "-i", audio,
		"-map", "0:v:0", "-map", "1:a:0",
		"-c:v", "copy", "-c:a", "aac", "-b:a", "192k",
		"-shortest",
		dst)
}

// MuxSimple retries a failed mux with the most permissive flags: re-encode
// both streams and let ffmpeg pick stream mappings.
func (t *Transcoder) MuxSimple(ctx context.Context, video, audio, dst string) error {
	return t.run(ctx,
		"-i", video, "-i", audio,
		"-c:v", "libx264", "-preset", "veryfast", "-crf", "18",
		"-c:a", "aac", "-b:a", "192k",
		"-shortest",
		dst)
}

// SilentVideoWithAudio synthesizes a black video track of the audio's
// duration and attaches the audio to it. Last-resort substitute when a
// sentence clip cannot be muxed; dropping the clip would desynchronize the
// batch concat.
func (t *Transcoder) SilentVideoWithAudio(ctx context.Context, width, height int, duration time.Duration, audio, dst string) error {
	if width <= 0 || height <= 0 {
		width, height = 1920, 1080
	}
	return t.run(ctx,
		"-f", "lavfi", "-i", fmt.Sprintf("color=black:s=%dx%d:r=30", width, height),
		"-i", audio,
		"-map", "0:v:0", "-map", "1:a:0",
		"-c:v", "libx264", "-preset", "veryfast", "-crf", "18",
		"-c:a", "aac", "-b:a", "192k",
		"-t", seconds(duration),
		dst)
}

// Downscale rescales src to the target height, preserving aspect ratio.
// Callers only invoke this when the source exceeds the target; upscaling is
// never done.
func (t *Transcoder) Downscale(ctx context.Context, src string, height int, dst string) error {
	return t.run(ctx,
		"-i", src,
		"-vf", fmt.Sprintf("scale=-2:%d", height),
		"-c:v", "libx264", "-preset", "veryfast", "-crf", "18",
		"-c:a", "copy",
		dst)
}

// Remux rewrites src into dst's container without touching the streams.
func (t *Transcoder) Remux(ctx context.Context, src, dst string) error {
	return t.run(ctx, "-i", src, "-c", "copy", dst)
}
