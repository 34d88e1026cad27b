package stitch

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"dubstitch/internal/batch"
	"dubstitch/internal/media/ffprobe"
	"dubstitch/internal/subtitles"
)

type fakeTranscoder struct {
	// codecs maps batch videos to their codec name; unlisted paths probe as
	// h264 so signatures match by default.
	codecs map[string]string

	// frozenCopies makes the first N concat-copy outputs probe as frozen.
	frozenCopies int

	// failCopies makes the first N concat-copy invocations fail outright.
	failCopies int

	copyCalls     int
	lastFrozen    bool
	reencodeCalls int
	remuxed       []string
}

func (f *fakeTranscoder) ConcatCopy(_ context.Context, _ []string, _ string) error {
	f.copyCalls++
	if f.copyCalls <= f.failCopies {
		return errors.New("non-monotonic dts")
	}
	f.lastFrozen = f.copyCalls <= f.frozenCopies
	return nil
}

func (f *fakeTranscoder) ConcatReencode(_ context.Context, _ []string, _ string) error {
	f.reencodeCalls++
	f.lastFrozen = false
	return nil
}

func (f *fakeTranscoder) Remux(_ context.Context, src, _ string) error {
	f.remuxed = append(f.remuxed, src)
	return nil
}

func (f *fakeTranscoder) Probe(_ context.Context, path string) (ffprobe.Result, error) {
	codec := f.codecs[path]
	if codec == "" {
		codec = "h264"
	}
	return ffprobe.Result{Streams: []ffprobe.Stream{{
		CodecType:  "video",
		CodecName:  codec,
		Profile:    "High",
		PixFmt:     "yuv420p",
		RFrameRate: "30/1",
		TimeBase:   "1/15360",
	}}}, nil
}

func (f *fakeTranscoder) FrameTimestampsTail(_ context.Context, _ string, _ time.Duration) ([]float64, error) {
	if f.lastFrozen {
		return []float64{10.0, 10.0001, 10.0002, 10.0003}, nil
	}
	timestamps := make([]float64, 0, 375)
	for ts := 0.0; ts < 15.0; ts += 0.04 {
		timestamps = append(timestamps, ts)
	}
	return timestamps, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testManifest() *batch.Manifest {
	manifest := batch.NewManifest()
	manifest.Publish(batch.ManifestEntry{
		VideoPath:   "/work/batch-001.mp4",
		SourceStart: 60 * time.Second,
		Duration:    30 * time.Second,
		Cues:        []subtitles.Cue{{Start: time.Second, End: 2 * time.Second, Text: "second batch"}},
	})
	manifest.Publish(batch.ManifestEntry{
		VideoPath:   "/work/batch-000.mp4",
		SourceStart: 0,
		Duration:    time.Minute,
		Cues:        []subtitles.Cue{{Start: 0, End: time.Second, Text: "first batch"}},
	})
	return manifest
}

func TestStitchSingleBatchIsNothingToStitch(t *testing.T) {
	manifest := batch.NewManifest()
	manifest.Publish(batch.ManifestEntry{VideoPath: "only.mp4"})

	s := New(&fakeTranscoder{}, nil, testLogger())
	if _, err := s.Stitch(context.Background(), manifest, "out.mp4"); !errors.Is(err, ErrNothingToStitch) {
		t.Fatalf("err = %v, want ErrNothingToStitch", err)
	}
}

func TestStitchStreamCopyHappyPath(t *testing.T) {
	fake := &fakeTranscoder{}
	dir := t.TempDir()
	dst := filepath.Join(dir, "stitched.mp4")

	s := New(fake, []subtitles.Renderer{subtitles.SRTRenderer{}}, testLogger())
	result, err := s.Stitch(context.Background(), testManifest(), dst)
	if err != nil {
		t.Fatalf("Stitch: %v", err)
	}
	if fake.copyCalls != 1 || fake.reencodeCalls != 0 {
		t.Fatalf("copy=%d reencode=%d", fake.copyCalls, fake.reencodeCalls)
	}
	if result.VideoPath != dst {
		t.Fatalf("video = %s", result.VideoPath)
	}

	// The second batch's cue must be shifted by the first batch's duration.
	if len(result.Sidecars) != 1 {
		t.Fatalf("sidecars = %v", result.Sidecars)
	}
	cues, err := subtitles.ReadFile(result.Sidecars[0])
	if err != nil {
		t.Fatalf("read merged sidecar: %v", err)
	}
	if len(cues) != 2 {
		t.Fatalf("got %d cues", len(cues))
	}
	if cues[0].Text != "first batch" || cues[0].Start != 0 {
		t.Fatalf("cue 0 = %+v", cues[0])
	}
	if cues[1].Start != 61*time.Second {
		t.Fatalf("cue 1 start = %v, want shifted by first batch duration", cues[1].Start)
	}
}

func TestStitchSignatureMismatchReencodes(t *testing.T) {
	fake := &fakeTranscoder{codecs: map[string]string{"/work/batch-001.mp4": "hevc"}}
	s := New(fake, nil, testLogger())

	if _, err := s.Stitch(context.Background(), testManifest(), t.TempDir()+"/out.mp4"); err != nil {
		t.Fatalf("Stitch: %v", err)
	}
	if fake.copyCalls != 0 || fake.reencodeCalls != 1 {
		t.Fatalf("copy=%d reencode=%d", fake.copyCalls, fake.reencodeCalls)
	}
}

func TestStitchFrozenTailRemuxRecovers(t *testing.T) {
	fake := &fakeTranscoder{frozenCopies: 1}
	s := New(fake, nil, testLogger())

	if _, err := s.Stitch(context.Background(), testManifest(), t.TempDir()+"/out.mp4"); err != nil {
		t.Fatalf("Stitch: %v", err)
	}
	if fake.copyCalls != 2 {
		t.Fatalf("copy calls = %d, want retry after remux", fake.copyCalls)
	}
	if len(fake.remuxed) != 2 {
		t.Fatalf("remuxed = %v, want both batches", fake.remuxed)
	}
	if fake.reencodeCalls != 0 {
		t.Fatal("remux recovery must not re-encode")
	}
}

func TestStitchCopyFailureRemuxRecovers(t *testing.T) {
	fake := &fakeTranscoder{failCopies: 1}
	s := New(fake, nil, testLogger())

	if _, err := s.Stitch(context.Background(), testManifest(), t.TempDir()+"/out.mp4"); err != nil {
		t.Fatalf("Stitch: %v", err)
	}
	if fake.copyCalls != 2 {
		t.Fatalf("copy calls = %d, want retry after remux", fake.copyCalls)
	}
	if len(fake.remuxed) != 2 {
		t.Fatalf("remuxed = %v, want both batches", fake.remuxed)
	}
	if fake.reencodeCalls != 0 {
		t.Fatal("a copy failure must route through remux before re-encoding")
	}
}

func TestStitchCopyFailurePersistsToReencode(t *testing.T) {
	fake := &fakeTranscoder{failCopies: 99}
	s := New(fake, nil, testLogger())

	if _, err := s.Stitch(context.Background(), testManifest(), t.TempDir()+"/out.mp4"); err != nil {
		t.Fatalf("Stitch: %v", err)
	}
	if fake.copyCalls != 2 {
		t.Fatalf("copy calls = %d", fake.copyCalls)
	}
	if fake.reencodeCalls != 1 {
		t.Fatalf("reencode calls = %d", fake.reencodeCalls)
	}
}

func TestStitchFrozenTailFallsThroughToReencode(t *testing.T) {
	fake := &fakeTranscoder{frozenCopies: 99}
	s := New(fake, nil, testLogger())

	if _, err := s.Stitch(context.Background(), testManifest(), t.TempDir()+"/out.mp4"); err != nil {
		t.Fatalf("Stitch: %v", err)
	}
	if fake.reencodeCalls != 1 {
		t.Fatalf("reencode calls = %d", fake.reencodeCalls)
	}
}

func TestTailFrozen(t *testing.T) {
	healthy := make([]float64, 0, 300)
	for ts := 0.0; ts < 12.0; ts += 0.04 {
		healthy = append(healthy, ts)
	}
	if TailFrozen(healthy, tailWindow) {
		t.Fatal("healthy 25fps tail flagged as frozen")
	}

	crammed := []float64{5.0, 5.0001, 5.0002, 5.0003, 5.0004}
	if !TailFrozen(crammed, tailWindow) {
		t.Fatal("sub-millisecond median step must be frozen")
	}

	tiny := []float64{5.0, 5.5, 6.0}
	if !TailFrozen(tiny, tailWindow) {
		t.Fatal("one-second span in a 15s window must be implausible")
	}

	if !TailFrozen([]float64{5.0}, tailWindow) {
		t.Fatal("a single frame in the tail must be implausible")
	}
}
