package stitch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"dubstitch/internal/batch"
	"dubstitch/internal/fileutil"
	"dubstitch/internal/media/ffprobe"
	"dubstitch/internal/subtitles"
)

// ErrNothingToStitch is returned when the manifest holds fewer than two
// batches; a single batch video is already the final artifact.
var ErrNothingToStitch = errors.New("fewer than two batches, nothing to stitch")

// tailWindow is how much of the stitched file's tail is frame-inspected for
// concat defects.
const tailWindow = 15 * time.Second

// frozenStepThreshold is the median inter-frame step below which the tail is
// considered frozen: stream-copy concat with mismatched timestamps produces
// runs of frames crammed into the same instant.
const frozenStepThreshold = time.Millisecond

// Transcoder is the slice of the external transcoder the stitcher needs.
type Transcoder interface {
	ConcatCopy(ctx context.Context, paths []string, dst string) error
	ConcatReencode(ctx context.Context, paths []string, dst string) error
	Remux(ctx context.Context, src, dst string) error
	Probe(ctx context.Context, path string) (ffprobe.Result, error)
	FrameTimestampsTail(ctx context.Context, path string, tail time.Duration) ([]float64, error)
}

// Result names the stitched artifacts.
type Result struct {
	VideoPath string
	Sidecars  []string
}

// Stitcher joins published batch videos into one final file, escalating from
// stream copy through remux to a full re-encode when the cheap tiers produce
// defective output.
type Stitcher struct {
	tc        Transcoder
	renderers []subtitles.Renderer
	logger    *slog.Logger
}

// New constructs a stitcher.
func New(tc Transcoder, renderers []subtitles.Renderer, logger *slog.Logger) *Stitcher {
	return &Stitcher{tc: tc, renderers: renderers, logger: logger}
}

// Stitch joins the manifest's batches, ordered by source start, into dst and
// merges their subtitle cues into sidecars next to it.
func (s *Stitcher) Stitch(ctx context.Context, manifest *batch.Manifest, dst string) (*Result, error) {
	entries := manifest.Sorted()
	if len(entries) < 2 {
		return nil, ErrNothingToStitch
	}

	paths := make([]string, len(entries))
	for i, entry := range entries {
		paths[i] = entry.VideoPath
	}

	if err := s.concat(ctx, paths, dst); err != nil {
		return nil, err
	}

	sidecars, err := s.mergeSidecars(ctx, entries, dst)
	if err != nil {
		return nil, err
	}
	return &Result{VideoPath: dst, Sidecars: sidecars}, nil
}

func (s *Stitcher) concat(ctx context.Context, paths []string, dst string) error {
	if !s.signaturesMatch(ctx, paths) {
		s.logger.Info("batch video signatures differ, re-encoding stitch")
		return s.reencode(ctx, paths, dst)
	}

	healthy, err := s.copyHealthy(ctx, paths, dst)
	if err != nil {
		return err
	}
	if healthy {
		return nil
	}

	s.logger.Warn("stream-copy stitch defective, retrying with remuxed inputs")
	fileutil.RemoveQuietly(dst)
	remuxed, cleanup, err := s.remuxAll(ctx, paths)
	defer cleanup()
	if err == nil {
		healthy, err := s.copyHealthy(ctx, remuxed, dst)
		if err != nil {
			return err
		}
		if healthy {
			return nil
		}
	}

	s.logger.Warn("remux-copy stitch still defective, re-encoding")
	fileutil.RemoveQuietly(dst)
	return s.reencode(ctx, paths, dst)
}

// copyHealthy stream-copies the concat and inspects the tail. A copy failure
// and a frozen tail both report unhealthy so the caller escalates the same
// way; only the tail inspection itself can error.
func (s *Stitcher) copyHealthy(ctx context.Context, paths []string, dst string) (bool, error) {
	if err := s.tc.ConcatCopy(ctx, paths, dst); err != nil {
		s.logger.Warn("stream-copy stitch failed", slog.String("error", err.Error()))
		return false, nil
	}
	frozen, err := s.tailFrozen(ctx, dst)
	if err != nil {
		return false, err
	}
	return !frozen, nil
}

func (s *Stitcher) reencode(ctx context.Context, paths []string, dst string) error {
	if err := s.tc.ConcatReencode(ctx, paths, dst); err != nil {
		return fmt.Errorf("stitch re-encode: %w", err)
	}
	return nil
}

// signaturesMatch reports whether all batch videos share a video signature,
// the precondition for stream-copy concatenation.
func (s *Stitcher) signaturesMatch(ctx context.Context, paths []string) bool {
	var reference ffprobe.Signature
	for i, path := range paths {
		result, err := s.tc.Probe(ctx, path)
		if err != nil {
			return false
		}
		sig, ok := result.VideoSignature()
		if !ok {
			return false
		}
		if i == 0 {
			reference = sig
			continue
		}
		if sig != reference {
			return false
		}
	}
	return true
}

func (s *Stitcher) tailFrozen(ctx context.Context, path string) (bool, error) {
	timestamps, err := s.tc.FrameTimestampsTail(ctx, path, tailWindow)
	if err != nil {
		return false, fmt.Errorf("inspect stitched tail: %w", err)
	}
	return TailFrozen(timestamps, tailWindow), nil
}

// TailFrozen reports whether the tail's frame timestamps indicate a concat
// defect: either the median inter-frame step collapses below a millisecond,
// or the frames cover an implausibly small share of the inspected window.
func TailFrozen(timestamps []float64, window time.Duration) bool {
	if len(timestamps) < 2 {
		return true
	}

	deltas := make([]float64, 0, len(timestamps)-1)
	for i := 1; i < len(timestamps); i++ {
		deltas = append(deltas, timestamps[i]-timestamps[i-1])
	}
	sort.Float64s(deltas)
	median := deltas[len(deltas)/2]
	if median < frozenStepThreshold.Seconds() {
		return true
	}

	span := timestamps[len(timestamps)-1] - timestamps[0]
	return span < window.Seconds()/2
}

// remuxAll rewrites each batch into a fresh container, which normalizes the
// timestamp discontinuities that freeze a stream-copy concat.
func (s *Stitcher) remuxAll(ctx context.Context, paths []string) ([]string, func(), error) {
	remuxed := make([]string, 0, len(paths))
	cleanup := func() { fileutil.RemoveQuietly(remuxed...) }
	for _, path := range paths {
		dst := strings.TrimSuffix(path, ".mp4") + ".remux.mp4"
		if err := s.tc.Remux(ctx, path, dst); err != nil {
			return remuxed, cleanup, fmt.Errorf("remux %s: %w", path, err)
		}
		remuxed = append(remuxed, dst)
	}
	return remuxed, cleanup, nil
}

// mergeSidecars shifts each batch's cues by the cumulative duration of the
// batches before it and renders the merged track next to the stitched video.
func (s *Stitcher) mergeSidecars(ctx context.Context, entries []batch.ManifestEntry, dst string) ([]string, error) {
	if len(s.renderers) == 0 {
		return nil, nil
	}

	batches := make([][]subtitles.Cue, len(entries))
	offsets := make([]time.Duration, len(entries))
	var cursor time.Duration
	for i, entry := range entries {
		batches[i] = entry.Cues
		offsets[i] = cursor
		cursor += entry.Duration
	}
	merged := subtitles.Merge(batches, offsets)
	if len(merged) == 0 {
		return nil, nil
	}

	base := strings.TrimSuffix(dst, ".mp4")
	sidecars := make([]string, 0, len(s.renderers))
	for _, renderer := range s.renderers {
		path, err := renderer.Render(ctx, merged, base)
		if err != nil {
			return nil, fmt.Errorf("render stitched sidecar: %w", err)
		}
		sidecars = append(sidecars, path)
	}
	return sidecars, nil
}
