package batch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"dubstitch/internal/fileutil"
	"dubstitch/internal/media/ffmpeg"
	"dubstitch/internal/media/ffprobe"
	"dubstitch/internal/subtitles"
)

// DriftWarn is the batch-duration mismatch that triggers a diagnostic
// warning. Batch-level drift is logged, never auto-corrected; per-clip
// correction already happened during assembly.
const DriftWarn = 150 * time.Millisecond

// Transcoder is the slice of the external transcoder the encoder needs.
type Transcoder interface {
	ConcatClips(ctx context.Context, clips []ffmpeg.ConcatClip, dst string) error
	Downscale(ctx context.Context, src string, height int, dst string) error
	HasAudioStream(ctx context.Context, path string) (bool, error)
	Duration(ctx context.Context, path string) (time.Duration, error)
	Probe(ctx context.Context, path string) (ffprobe.Result, error)
}

// Encoder turns one job's assembled clips into a published batch video.
type Encoder struct {
	tc        Transcoder
	renderers []subtitles.Renderer
	height    int
	logger    *slog.Logger
}

// NewEncoder constructs an encoder. height is the output ceiling; 0 disables
// downscaling. renderers receive the batch's scheduled timeline as cues.
func NewEncoder(tc Transcoder, renderers []subtitles.Renderer, height int, logger *slog.Logger) *Encoder {
	return &Encoder{tc: tc, renderers: renderers, height: height, logger: logger}
}

// Encode concatenates the job's clips, conditions the video, renders subtitle
// sidecars, and publishes the result into the manifest. Intermediate clips
// are removed on success and failure alike. A failed job surfaces its error
// without affecting other in-flight batches.
func (e *Encoder) Encode(ctx context.Context, job *Job, manifest *Manifest) error {
	job.State = StateEncoding
	defer fileutil.RemoveQuietly(job.Clips...)

	if err := e.encode(ctx, job); err != nil {
		job.State = StateFailed
		job.Err = err
		fileutil.RemoveQuietly(job.OutputPath)
		return fmt.Errorf("batch %d: %w", job.Index, err)
	}
	job.State = StateValidated

	cues := scheduleCues(job)
	sidecars, err := e.renderSidecars(ctx, job, cues)
	if err != nil {
		job.State = StateFailed
		job.Err = err
		fileutil.RemoveQuietly(job.OutputPath)
		return fmt.Errorf("batch %d: %w", job.Index, err)
	}

	entry := ManifestEntry{
		VideoPath:   job.OutputPath,
		Sidecars:    sidecars,
		SourceStart: job.SourceStart,
		Duration:    job.Schedule.Duration(),
		Cues:        cues,
	}
	if !manifest.Publish(entry) {
		e.logger.Warn("batch already published, skipping duplicate",
			slog.Int("batch", job.Index),
			slog.String("video", job.OutputPath))
	}
	job.State = StatePublished
	return nil
}

func (e *Encoder) encode(ctx context.Context, job *Job) error {
	if len(job.Clips) == 0 {
		return fmt.Errorf("no clips to encode")
	}

	clips := make([]ffmpeg.ConcatClip, 0, len(job.Clips))
	for _, path := range job.Clips {
		hasAudio, err := e.tc.HasAudioStream(ctx, path)
		if err != nil {
			return fmt.Errorf("probe clip %s: %w", path, err)
		}
		if !hasAudio {
			e.logger.Warn("clip missing audio stream, inserting silence",
				slog.Int("batch", job.Index),
				slog.String("clip", path))
		}
		clips = append(clips, ffmpeg.ConcatClip{Path: path, HasAudio: hasAudio})
	}

	if err := e.tc.ConcatClips(ctx, clips, job.OutputPath); err != nil {
		return fmt.Errorf("concat clips: %w", err)
	}
	if err := e.downscaleIfNeeded(ctx, job); err != nil {
		return err
	}

	actual, err := e.tc.Duration(ctx, job.OutputPath)
	if err != nil {
		return fmt.Errorf("probe batch video: %w", err)
	}
	expected := job.Schedule.Duration()
	if drift := (actual - expected).Abs(); drift > DriftWarn {
		e.logger.Warn("batch duration drift",
			slog.Int("batch", job.Index),
			slog.Duration("expected", expected),
			slog.Duration("actual", actual),
			slog.Duration("drift", drift))
	}
	return nil
}

// downscaleIfNeeded rescales the batch video when it exceeds the configured
// output height. Smaller sources are left alone; upscaling is never done.
func (e *Encoder) downscaleIfNeeded(ctx context.Context, job *Job) error {
	if e.height <= 0 {
		return nil
	}
	result, err := e.tc.Probe(ctx, job.OutputPath)
	if err != nil {
		return fmt.Errorf("probe for downscale: %w", err)
	}
	if result.Height() <= e.height {
		return nil
	}

	scaled := job.OutputPath + ".scaled.mp4"
	defer fileutil.RemoveQuietly(scaled)
	if err := e.tc.Downscale(ctx, job.OutputPath, e.height, scaled); err != nil {
		return fmt.Errorf("downscale: %w", err)
	}
	return os.Rename(scaled, job.OutputPath)
}

func (e *Encoder) renderSidecars(ctx context.Context, job *Job, cues []subtitles.Cue) ([]string, error) {
	if len(e.renderers) == 0 || len(cues) == 0 {
		return nil, nil
	}
	base := strings.TrimSuffix(job.OutputPath, ".mp4")
	sidecars := make([]string, 0, len(e.renderers))
	for _, renderer := range e.renderers {
		path, err := renderer.Render(ctx, cues, base)
		if err != nil {
			return nil, fmt.Errorf("render sidecar: %w", err)
		}
		sidecars = append(sidecars, path)
	}
	return sidecars, nil
}

// scheduleCues converts the job's scheduled entries into cues relative to the
// batch's own timeline, so sidecars align with the batch video.
func scheduleCues(job *Job) []subtitles.Cue {
	cues := make([]subtitles.Cue, 0, len(job.Schedule.Entries))
	for _, entry := range job.Schedule.Entries {
		text := entry.Window.TranslatedText
		if strings.TrimSpace(text) == "" {
			continue
		}
		cues = append(cues, subtitles.Cue{
			Start: entry.Start - job.Schedule.Start,
			End:   entry.End - job.Schedule.Start,
			Text:  text,
		})
	}
	return cues
}
