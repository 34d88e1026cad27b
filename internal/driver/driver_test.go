package driver

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"dubstitch/internal/batch"
	"dubstitch/internal/config"
	"dubstitch/internal/dialogue"
	"dubstitch/internal/media/ffprobe"
	"dubstitch/internal/stitch"
	"dubstitch/internal/subtitles"
	"dubstitch/internal/synth"
	"dubstitch/internal/timeline"
)

type fakeTranscoder struct {
	mu        sync.Mutex
	extracted int
	silences  []time.Duration
}

func (f *fakeTranscoder) Probe(_ context.Context, _ string) (ffprobe.Result, error) {
	return ffprobe.Result{
		Streams: []ffprobe.Stream{{CodecType: "video", Width: 1920, Height: 1080}},
		Format:  ffprobe.Format{Duration: "120.0"},
	}, nil
}

func (f *fakeTranscoder) ExtractAudio(_ context.Context, _ string, _, _ time.Duration, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.extracted++
	return nil
}

func (f *fakeTranscoder) GenerateSilence(_ context.Context, d time.Duration, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.silences = append(f.silences, d)
	return nil
}

func (f *fakeTranscoder) AudioDuration(_ context.Context, _ string) (time.Duration, error) {
	return 1200 * time.Millisecond, nil
}

func (f *fakeTranscoder) MeasureRMS(_ context.Context, _ string) (float64, error) {
	return 0.1, nil
}

type fakeMixer struct {
	mu        sync.Mutex
	dialogues int
	gaps      int
}

func (f *fakeMixer) MixDialogue(_ context.Context, _, _ string, _ float64, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dialogues++
	return nil
}

func (f *fakeMixer) MixGap(_ context.Context, _ string, _ float64, _ time.Duration, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gaps++
	return nil
}

type fakeAssembler struct {
	mu        sync.Mutex
	sentences int
	gaps      int
}

func (f *fakeAssembler) SentenceClip(_ context.Context, _ string, _ timeline.Entry, _, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sentences++
	return nil
}

func (f *fakeAssembler) GapClip(_ context.Context, _ string, _ timeline.Gap, _, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gaps++
	return nil
}

type fakeSynth struct {
	mu       sync.Mutex
	texts    []string
	failText string
}

func (f *fakeSynth) Synthesize(_ context.Context, req synth.Request, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failText != "" && req.Text == f.failText {
		return fmt.Errorf("voice model rejected line")
	}
	f.texts = append(f.texts, req.Text)
	return nil
}

type fakeEncoder struct {
	mu        sync.Mutex
	failIndex int
	jobs      []*batch.Job
}

func newFakeEncoder() *fakeEncoder {
	return &fakeEncoder{failIndex: -1}
}

func (f *fakeEncoder) Encode(_ context.Context, job *batch.Job, manifest *batch.Manifest) error {
	f.mu.Lock()
	f.jobs = append(f.jobs, job)
	f.mu.Unlock()
	if job.Index == f.failIndex {
		job.State = batch.StateFailed
		return fmt.Errorf("encode exploded")
	}

	if err := os.WriteFile(job.OutputPath, []byte("video"), 0o644); err != nil {
		return err
	}
	sidecar := strings.TrimSuffix(job.OutputPath, ".mp4") + ".srt"
	if err := os.WriteFile(sidecar, []byte("1\n"), 0o644); err != nil {
		return err
	}
	manifest.Publish(batch.ManifestEntry{
		VideoPath:   job.OutputPath,
		Sidecars:    []string{sidecar},
		SourceStart: job.SourceStart,
		Duration:    job.Schedule.Duration(),
	})
	job.State = batch.StatePublished
	return nil
}

type fakeStitcher struct {
	stitched bool
	fail     bool
}

func (f *fakeStitcher) Stitch(_ context.Context, manifest *batch.Manifest, dst string) (*stitch.Result, error) {
	if f.fail {
		return nil, fmt.Errorf("container mismatch")
	}
	if manifest.Len() < 2 {
		return nil, stitch.ErrNothingToStitch
	}
	f.stitched = true
	if err := os.WriteFile(dst, []byte("stitched"), 0o644); err != nil {
		return nil, err
	}
	return &stitch.Result{VideoPath: dst}, nil
}

type fakeNotifier struct {
	mu      sync.Mutex
	stages  []string
	batches int
	done    bool
	failed  bool
}

func (f *fakeNotifier) JobStarted(string) {}

func (f *fakeNotifier) StageChanged(_, stage string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stages = append(f.stages, stage)
}

func (f *fakeNotifier) BatchEncoded(int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches++
}

func (f *fakeNotifier) JobCompleted(string, string) { f.done = true }
func (f *fakeNotifier) JobFailed(string, string)    { f.failed = true }

type harness struct {
	driver    *Driver
	transcode *fakeTranscoder
	mixer     *fakeMixer
	assembler *fakeAssembler
	synth     *fakeSynth
	encoder   *fakeEncoder
	stitcher  *fakeStitcher
	notifier  *fakeNotifier
	outputDir string
	request   Request
}

func newHarness(t *testing.T, flushSize int, cues []subtitles.Cue) *harness {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.Paths.StagingDir = filepath.Join(dir, "staging")
	cfg.Paths.OutputDir = filepath.Join(dir, "output")
	cfg.Paths.LogDir = filepath.Join(dir, "logs")
	cfg.Batch.FlushSize = flushSize
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}

	subtitlePath := filepath.Join(dir, "episode.srt")
	if err := subtitles.WriteFile(subtitlePath, cues); err != nil {
		t.Fatalf("write subtitles: %v", err)
	}

	h := &harness{
		transcode: &fakeTranscoder{},
		mixer:     &fakeMixer{},
		assembler: &fakeAssembler{},
		synth:     &fakeSynth{},
		encoder:   newFakeEncoder(),
		stitcher:  &fakeStitcher{},
		notifier:  &fakeNotifier{},
		outputDir: cfg.Paths.OutputDir,
		request: Request{
			SourceVideo:  filepath.Join(dir, "episode.mkv"),
			SubtitlePath: subtitlePath,
		},
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	h.driver = New(&cfg, Deps{
		Transcoder:   h.transcode,
		Mixer:        h.mixer,
		NewAssembler: func(_, _ int) Assembler { return h.assembler },
		Encoder:      h.encoder,
		Stitcher:     h.stitcher,
		Synthesizer:  h.synth,
		Notifier:     h.notifier,
	}, logger)
	return h
}

func testCues() []subtitles.Cue {
	return []subtitles.Cue{
		{Start: time.Second, End: 3 * time.Second, Text: "first line"},
		{Start: 4 * time.Second, End: 6 * time.Second, Text: "second line"},
		{Start: 7 * time.Second, End: 9 * time.Second, Text: "third line"},
	}
}

func TestRunStitchesMultipleBatches(t *testing.T) {
	h := newHarness(t, 2, testCues())

	outcome, err := h.driver.Run(context.Background(), h.request)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcome.Batches != 2 || outcome.FailedBatches != 0 {
		t.Fatalf("outcome = %+v", outcome)
	}
	if !h.stitcher.stitched {
		t.Fatal("two batches must be stitched")
	}
	if filepath.Base(outcome.OutputPath) != "episode-dubbed.mp4" {
		t.Fatalf("output = %s", outcome.OutputPath)
	}
	if _, err := os.Stat(outcome.OutputPath); err != nil {
		t.Fatalf("stitched file missing: %v", err)
	}

	if h.assembler.sentences != 3 {
		t.Fatalf("sentence clips = %d", h.assembler.sentences)
	}
	if h.mixer.dialogues != 3 {
		t.Fatalf("dialogue mixes = %d", h.mixer.dialogues)
	}
	if h.synth.texts == nil || len(h.synth.texts) != 3 {
		t.Fatalf("synthesized lines = %v", h.synth.texts)
	}
}

func TestRunPromotesSingleBatch(t *testing.T) {
	h := newHarness(t, 10, testCues())

	outcome, err := h.driver.Run(context.Background(), h.request)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcome.Batches != 1 {
		t.Fatalf("batches = %d", outcome.Batches)
	}
	if h.stitcher.stitched {
		t.Fatal("single batch must not be stitched")
	}
	if _, err := os.Stat(outcome.OutputPath); err != nil {
		t.Fatalf("promoted batch missing: %v", err)
	}
	if len(outcome.Sidecars) != 1 || !strings.HasSuffix(outcome.Sidecars[0], ".srt") {
		t.Fatalf("sidecars = %v", outcome.Sidecars)
	}
}

func TestRunKeepsPublishedBatchesWhenStitchFails(t *testing.T) {
	h := newHarness(t, 2, testCues())
	h.stitcher.fail = true

	if _, err := h.driver.Run(context.Background(), h.request); err == nil {
		t.Fatal("expected stitch error to surface")
	}

	// Published batch videos are artifacts named by source offset; a failed
	// stitch must leave them in the output directory.
	for _, name := range []string{"episode-00000000ms.mp4", "episode-00007000ms.mp4"} {
		if _, err := os.Stat(filepath.Join(h.outputDir, name)); err != nil {
			t.Fatalf("batch artifact %s missing after stitch failure: %v", name, err)
		}
	}
}

func TestRunReportsStageTransitions(t *testing.T) {
	h := newHarness(t, 10, testCues())

	if _, err := h.driver.Run(context.Background(), h.request); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []string{StageTranslation, StageSynthesis, StageMux, StageStitch}
	if len(h.notifier.stages) != len(want) {
		t.Fatalf("stages = %v", h.notifier.stages)
	}
	for i, stage := range want {
		if h.notifier.stages[i] != stage {
			t.Fatalf("stage %d = %s, want %s", i, h.notifier.stages[i], stage)
		}
	}
	if !h.notifier.done {
		t.Fatal("completion event not delivered")
	}
}

func TestRunFailsOnlyWhenAllBatchesFail(t *testing.T) {
	h := newHarness(t, 2, testCues())
	h.encoder.failIndex = 0

	outcome, err := h.driver.Run(context.Background(), h.request)
	if err != nil {
		t.Fatalf("Run with one failed batch: %v", err)
	}
	if outcome.Batches != 1 || outcome.FailedBatches != 1 {
		t.Fatalf("outcome = %+v", outcome)
	}
}

func TestRunAllBatchesFailed(t *testing.T) {
	h := newHarness(t, 10, testCues())
	h.encoder.failIndex = 0

	if _, err := h.driver.Run(context.Background(), h.request); err == nil {
		t.Fatal("expected error when every batch fails")
	}
}

func TestRunSubstitutesSilenceForFailedLine(t *testing.T) {
	h := newHarness(t, 10, testCues())
	h.synth.failText = "second line"

	outcome, err := h.driver.Run(context.Background(), h.request)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcome.Batches != 1 {
		t.Fatalf("batches = %d", outcome.Batches)
	}
	if len(h.transcode.silences) != 1 {
		t.Fatalf("silence substitutions = %v", h.transcode.silences)
	}
	if h.transcode.silences[0] != 2*time.Second {
		t.Fatalf("silence duration = %v, want the original window span", h.transcode.silences[0])
	}
}

func TestRunCancelled(t *testing.T) {
	h := newHarness(t, 2, testCues())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := h.driver.Run(ctx, h.request); err == nil {
		t.Fatal("expected cancellation error")
	}
}

func TestRunRejectsEmptySubtitles(t *testing.T) {
	h := newHarness(t, 2, nil)
	if _, err := h.driver.Run(context.Background(), h.request); err == nil {
		t.Fatal("expected error for empty subtitle file")
	}
}

func TestSplitBlocksBoundaries(t *testing.T) {
	windows := []dialogue.Window{
		{Start: time.Second, End: 2 * time.Second},
		{Start: 3 * time.Second, End: 4 * time.Second},
		{Start: 10 * time.Second, End: 11 * time.Second},
	}
	blocks := splitBlocks(windows, 2, 20*time.Second)

	if len(blocks) != 2 {
		t.Fatalf("blocks = %d", len(blocks))
	}
	// The gap between blocks belongs to the earlier block.
	if blocks[0].start != 0 || blocks[0].end != 10*time.Second {
		t.Fatalf("block 0 = [%v, %v]", blocks[0].start, blocks[0].end)
	}
	if blocks[1].start != 10*time.Second || blocks[1].end != 20*time.Second {
		t.Fatalf("block 1 = [%v, %v]", blocks[1].start, blocks[1].end)
	}
	if len(blocks[0].windows) != 2 || len(blocks[1].windows) != 1 {
		t.Fatalf("window split = %d/%d", len(blocks[0].windows), len(blocks[1].windows))
	}
}
