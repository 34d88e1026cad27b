package assembly

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"dubstitch/internal/fileutil"
	"dubstitch/internal/timeline"
)

// DriftTrigger is the probed-duration mismatch that starts corrective
// padding or trimming on an assembled clip.
const DriftTrigger = 50 * time.Millisecond

// DriftTarget is the residual mismatch a corrected clip must reach before
// it is accepted into a batch.
const DriftTarget = 20 * time.Millisecond

const maxDriftPasses = 3

// Transcoder is the slice of the external transcoder the assembler needs.
type Transcoder interface {
	TrimCopy(ctx context.Context, src string, start, end time.Duration, dst string) error
	TrimReencode(ctx context.Context, src string, start, end time.Duration, dst string) error
	PadVideo(ctx context.Context, src string, target time.Duration, dst string) error
	TrimToDuration(ctx context.Context, src string, target time.Duration, dst string) error
	Mux(ctx context.Context, video, audio, dst string) error
	MuxSimple(ctx context.Context, video, audio, dst string) error
	SilentVideoWithAudio(ctx context.Context, width, height int, duration time.Duration, audio, dst string) error
	HasAudioStream(ctx context.Context, path string) (bool, error)
	Duration(ctx context.Context, path string) (time.Duration, error)
}

// Assembler cuts per-sentence and per-gap clips out of the source video and
// marries them to the mixed audio. Every produced clip is duration-verified;
// a clip is never dropped, because a missing clip would desynchronize the
// batch concatenation.
type Assembler struct {
	tc     Transcoder
	width  int
	height int
	logger *slog.Logger
}

// New constructs an assembler. Width and height describe the source video and
// size the black substitute frame used when muxing fails outright.
func New(tc Transcoder, width, height int, logger *slog.Logger) *Assembler {
	return &Assembler{tc: tc, width: width, height: height, logger: logger}
}

// SentenceClip produces one dubbed sentence clip at dst: the source video
// trimmed at the window's original range, fitted to the synthesized duration,
// and muxed with the mixed audio.
func (a *Assembler) SentenceClip(ctx context.Context, source string, entry timeline.Entry, mixedAudio, dst string) error {
	target := entry.Duration()

	video := dst + ".video.mp4"
	defer fileutil.RemoveQuietly(video)
	if err := a.trim(ctx, source, entry.Window.Start, entry.Window.End, video); err != nil {
		return fmt.Errorf("sentence clip: trim %v-%v: %w", entry.Window.Start, entry.Window.End, err)
	}
	if err := a.fitVideo(ctx, video, target); err != nil {
		return fmt.Errorf("sentence clip: fit video: %w", err)
	}
	if err := a.mux(ctx, video, mixedAudio, target, dst); err != nil {
		return fmt.Errorf("sentence clip: mux: %w", err)
	}
	if err := a.repairDrift(ctx, dst, target); err != nil {
		return fmt.Errorf("sentence clip: %w", err)
	}
	return nil
}

// GapClip produces one silent-gap clip at dst: the source video's gap slice
// with the attenuated gap audio attached. Gap video is never stretched; its
// scheduled duration equals its source duration.
func (a *Assembler) GapClip(ctx context.Context, source string, gap timeline.Gap, gapAudio, dst string) error {
	target := gap.Duration()

	video := dst + ".video.mp4"
	defer fileutil.RemoveQuietly(video)
	if err := a.trim(ctx, source, gap.SourceStart, gap.SourceEnd, video); err != nil {
		return fmt.Errorf("gap clip: trim %v-%v: %w", gap.SourceStart, gap.SourceEnd, err)
	}
	if err := a.mux(ctx, video, gapAudio, target, dst); err != nil {
		return fmt.Errorf("gap clip: mux: %w", err)
	}
	if err := a.repairDrift(ctx, dst, target); err != nil {
		return fmt.Errorf("gap clip: %w", err)
	}
	return nil
}

// trim prefers the fast stream-copy cut and falls back to a re-encode when
// the cut point has no usable keyframe.
func (a *Assembler) trim(ctx context.Context, src string, start, end time.Duration, dst string) error {
	if err := a.tc.TrimCopy(ctx, src, start, end, dst); err == nil {
		return nil
	} else {
		a.logger.Debug("stream-copy trim failed, re-encoding",
			slog.Duration("start", start),
			slog.Duration("end", end),
			slog.String("error", err.Error()))
	}
	fileutil.RemoveQuietly(dst)
	return a.tc.TrimReencode(ctx, src, start, end, dst)
}

// fitVideo pads or trims the video-only intermediate so its duration matches
// the synthesized audio before muxing.
func (a *Assembler) fitVideo(ctx context.Context, video string, target time.Duration) error {
	actual, err := a.tc.Duration(ctx, video)
	if err != nil {
		return err
	}
	switch {
	case target-actual > DriftTarget:
		return a.replace(ctx, video, target, a.tc.PadVideo)
	case actual-target > DriftTarget:
		return a.replace(ctx, video, target, a.tc.TrimToDuration)
	default:
		return nil
	}
}

// mux attaches audio to the trimmed video, escalating through a simplified
// mux and finally a synthesized black video carrying the audio.
func (a *Assembler) mux(ctx context.Context, video, audio string, duration time.Duration, dst string) error {
	if err := a.tc.Mux(ctx, video, audio, dst); err == nil {
		if ok, probeErr := a.tc.HasAudioStream(ctx, dst); probeErr == nil && ok {
			return nil
		}
	}

	fileutil.RemoveQuietly(dst)
	a.logger.Warn("mux produced no audio stream, retrying with simplified command", slog.String("clip", dst))
	if err := a.tc.MuxSimple(ctx, video, audio, dst); err == nil {
		if ok, probeErr := a.tc.HasAudioStream(ctx, dst); probeErr == nil && ok {
			return nil
		}
	}

	fileutil.RemoveQuietly(dst)
	a.logger.Warn("simplified mux failed, substituting black video", slog.String("clip", dst))
	return a.tc.SilentVideoWithAudio(ctx, a.width, a.height, duration, audio, dst)
}

// repairDrift verifies the finished clip's duration and pads or trims it
// until the residual drift is inside the acceptance tolerance.
func (a *Assembler) repairDrift(ctx context.Context, path string, expected time.Duration) error {
	for pass := 0; pass < maxDriftPasses; pass++ {
		actual, err := a.tc.Duration(ctx, path)
		if err != nil {
			return fmt.Errorf("drift check: %w", err)
		}
		drift := actual - expected
		if drift < 0 {
			drift = -drift
		}
		if (pass == 0 && drift <= DriftTrigger) || drift <= DriftTarget {
			return nil
		}

		a.logger.Warn("clip duration drift, correcting",
			slog.String("clip", path),
			slog.Duration("expected", expected),
			slog.Duration("actual", actual))
		var err2 error
		if actual < expected {
			err2 = a.replace(ctx, path, expected, a.tc.PadVideo)
		} else {
			err2 = a.replace(ctx, path, expected, a.tc.TrimToDuration)
		}
		if err2 != nil {
			return fmt.Errorf("drift repair: %w", err2)
		}
	}

	actual, err := a.tc.Duration(ctx, path)
	if err != nil {
		return fmt.Errorf("drift check: %w", err)
	}
	if drift := (actual - expected).Abs(); drift > DriftTarget {
		return fmt.Errorf("drift repair: %s still off by %v after %d passes", path, drift, maxDriftPasses)
	}
	return nil
}

// replace rewrites path in place through op, using a sibling temp file.
func (a *Assembler) replace(ctx context.Context, path string, target time.Duration, op func(context.Context, string, time.Duration, string) error) error {
	fixed := path + ".fit.mp4"
	defer fileutil.RemoveQuietly(fixed)
	if err := op(ctx, path, target, fixed); err != nil {
		return err
	}
	return os.Rename(fixed, path)
}
