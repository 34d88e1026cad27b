package driver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"dubstitch/internal/audiomix"
	"dubstitch/internal/batch"
	"dubstitch/internal/dialogue"
	"dubstitch/internal/fileutil"
	"dubstitch/internal/stitch"
	"dubstitch/internal/subtitles"
	"dubstitch/internal/synth"
	"dubstitch/internal/textutil"
	"dubstitch/internal/timeline"
)

// Request names one dubbing job's inputs.
type Request struct {
	SourceVideo  string
	SubtitlePath string
	// Title labels notifications and the output file. Defaults to the source
	// video's base name.
	Title string
}

// Outcome summarizes a finished job.
type Outcome struct {
	OutputPath    string
	Sidecars      []string
	Batches       int
	FailedBatches int
}

// block is one flush group of dialogue windows with its source boundaries.
// A block's end boundary is the next block's first window start, so every
// inter-block source gap belongs to exactly one block.
type block struct {
	windows []dialogue.Window
	start   time.Duration
	end     time.Duration
}

// Run executes one dubbing job end to end. Blocks are prepared sequentially
// (translation and synthesis parallelized inside each block) and their
// encodes dispatched to a bounded pool; the job fails only when every batch
// fails.
func (d *Driver) Run(ctx context.Context, req Request) (*Outcome, error) {
	title := req.Title
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(req.SourceVideo), filepath.Ext(req.SourceVideo))
	}
	d.deps.Notifier.JobStarted(title)

	outcome, err := d.run(ctx, req, title)
	if err != nil {
		d.deps.Notifier.JobFailed(title, err.Error())
		return nil, err
	}
	d.deps.Notifier.JobCompleted(title, outcome.OutputPath)
	return outcome, nil
}

func (d *Driver) run(ctx context.Context, req Request, title string) (*Outcome, error) {
	cues, err := subtitles.ReadFile(req.SubtitlePath)
	if err != nil {
		return nil, fmt.Errorf("read subtitles: %w", err)
	}
	windows := dialogue.Normalize(dialogue.FromCues(cues), dialogue.OptionsFromConfig(d.cfg.Dialogue))
	if len(windows) == 0 {
		return nil, fmt.Errorf("no usable dialogue windows in %s", req.SubtitlePath)
	}

	source, err := d.deps.Transcoder.Probe(ctx, req.SourceVideo)
	if err != nil {
		return nil, fmt.Errorf("probe source: %w", err)
	}
	video, ok := source.VideoStream()
	if !ok {
		return nil, fmt.Errorf("source %s has no video stream", req.SourceVideo)
	}
	sourceEnd := time.Duration(source.DurationSeconds() * float64(time.Second))
	if last := windows[len(windows)-1].End; sourceEnd < last {
		return nil, fmt.Errorf("source ends at %v but dialogue runs to %v", sourceEnd, last)
	}

	workspace, err := fileutil.NewWorkspace(d.cfg.Paths.StagingDir, "dub-")
	if err != nil {
		return nil, err
	}
	defer workspace.Cleanup()

	assembler := d.deps.NewAssembler(video.Width, video.Height)
	blocks := splitBlocks(windows, d.cfg.Batch.FlushSize, sourceEnd)
	d.logger.Info("job planned",
		slog.String("title", title),
		slog.Int("dialogues", len(windows)),
		slog.Int("batches", len(blocks)))

	base := textutil.SanitizeFileName(title)
	manifest := batch.NewManifest()
	var failed atomic.Int32
	var wg sync.WaitGroup
	sem := make(chan struct{}, d.encodeWorkers())

	for index, blk := range blocks {
		if ctx.Err() != nil {
			break
		}

		// Batch videos are persisted artifacts named by source offset; they
		// must outlive the staging workspace so partial output survives a
		// failed stitch.
		batchOut := filepath.Join(d.cfg.Paths.OutputDir, batchFileName(base, blk.start))
		job, err := d.prepareBatch(ctx, req.SourceVideo, title, assembler, workspace, index, blk, batchOut)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				break
			}
			failed.Add(1)
			d.logger.Error("batch preparation failed",
				slog.Int("batch", index),
				slog.String("error", err.Error()))
			continue
		}

		wg.Add(1)
		go func(job *batch.Job) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			if err := d.deps.Encoder.Encode(ctx, job, manifest); err != nil {
				failed.Add(1)
				d.logger.Error("batch encode failed",
					slog.Int("batch", job.Index),
					slog.String("error", err.Error()))
				return
			}
			d.deps.Notifier.BatchEncoded(job.Index, manifest.Len())
		}(job)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	published := manifest.Len()
	if published == 0 {
		return nil, fmt.Errorf("all %d batches failed", len(blocks))
	}

	outputPath := filepath.Join(d.cfg.Paths.OutputDir, base+d.cfg.Output.StitchedSuffix+".mp4")
	d.deps.Notifier.StageChanged(title, StageStitch)
	sidecars, err := d.finalize(ctx, manifest, outputPath)
	if err != nil {
		return nil, err
	}

	return &Outcome{
		OutputPath:    outputPath,
		Sidecars:      sidecars,
		Batches:       published,
		FailedBatches: int(failed.Load()),
	}, nil
}

// finalize stitches multi-batch jobs; a lone batch is already the final
// video and is promoted as-is with its sidecars.
func (d *Driver) finalize(ctx context.Context, manifest *batch.Manifest, outputPath string) ([]string, error) {
	result, err := d.deps.Stitcher.Stitch(ctx, manifest, outputPath)
	if err == nil {
		return result.Sidecars, nil
	}
	if !errors.Is(err, stitch.ErrNothingToStitch) {
		return nil, fmt.Errorf("stitch: %w", err)
	}

	entry := manifest.Sorted()[0]
	if err := fileutil.CopyFile(entry.VideoPath, outputPath); err != nil {
		return nil, fmt.Errorf("promote single batch: %w", err)
	}
	base := strings.TrimSuffix(outputPath, ".mp4")
	batchBase := strings.TrimSuffix(entry.VideoPath, ".mp4")
	sidecars := make([]string, 0, len(entry.Sidecars))
	for _, sidecar := range entry.Sidecars {
		// Preserve multi-part suffixes such as ".words.srt".
		dst := base + strings.TrimPrefix(sidecar, batchBase)
		if err := fileutil.CopyFile(sidecar, dst); err != nil {
			return nil, fmt.Errorf("promote sidecar: %w", err)
		}
		sidecars = append(sidecars, dst)
	}
	return sidecars, nil
}

// prepareBatch runs one block through translation, synthesis, scheduling,
// mixing, and assembly, returning a job ready for the encoding pool.
func (d *Driver) prepareBatch(ctx context.Context, source, title string, assembler Assembler, workspace *fileutil.Workspace, index int, blk block, outputPath string) (*batch.Job, error) {
	dubs, err := d.synthesizeBlock(ctx, workspace, title, index, blk.windows)
	if err != nil {
		return nil, err
	}

	durations := make([]time.Duration, len(dubs))
	rmsValues := make([]float64, len(dubs))
	for i, dub := range dubs {
		if durations[i], err = d.deps.Transcoder.AudioDuration(ctx, dub); err != nil {
			return nil, fmt.Errorf("measure dub %d: %w", i, err)
		}
		if rmsValues[i], err = d.deps.Transcoder.MeasureRMS(ctx, dub); err != nil {
			return nil, fmt.Errorf("measure dub loudness %d: %w", i, err)
		}
	}

	sched, err := timeline.Build(blk.windows, durations, blk.start, blk.end)
	if err != nil {
		return nil, err
	}
	referenceRMS := audiomix.ReferenceRMS(rmsValues)

	d.deps.Notifier.StageChanged(title, StageMux)
	clips, err := d.assembleBlock(ctx, source, assembler, workspace, index, sched, dubs, referenceRMS)
	if err != nil {
		return nil, err
	}

	job := batch.NewJob(index, blk.windows, sched, blk.start, blk.end, workspace.Dir, outputPath)
	job.Clips = clips
	return job, nil
}

// batchFileName names a persisted batch video by its source-time offset.
func batchFileName(base string, start time.Duration) string {
	return fmt.Sprintf("%s-%08dms.mp4", base, start.Milliseconds())
}

// synthesizeBlock translates a block's lines, then synthesizes them, each
// phase parallelized with results reassembled into source order. A line whose
// translation or synthesis fails is substituted with silence of the original
// window's duration rather than failing the batch.
func (d *Driver) synthesizeBlock(ctx context.Context, workspace *fileutil.Workspace, title string, index int, windows []dialogue.Window) ([]string, error) {
	workers := d.cfg.Workers.Synthesis
	if workers < 1 {
		workers = 1
	}
	if workers > len(windows) {
		workers = len(windows)
	}

	dubs := make([]string, len(windows))
	lineErrs := make([]error, len(windows))
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	d.deps.Notifier.StageChanged(title, StageTranslation)
	for i := range windows {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			if err := ctx.Err(); err != nil {
				lineErrs[i] = err
				return
			}

			text, err := d.deps.Translator.Translate(ctx, windows[i])
			if err != nil {
				lineErrs[i] = fmt.Errorf("translate: %w", err)
				return
			}
			windows[i].TranslatedText = text
		}(i)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.deps.Notifier.StageChanged(title, StageSynthesis)
	for i := range windows {
		if lineErrs[i] != nil {
			continue
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			if err := ctx.Err(); err != nil {
				lineErrs[i] = err
				return
			}

			dst := workspace.Path(fmt.Sprintf("dub-%03d-%03d.wav", index, i))
			if err := d.deps.Synthesizer.Synthesize(ctx, synth.Request{
				Text:     windows[i].TranslatedText,
				Language: d.cfg.Synthesis.Language,
				Voice:    d.cfg.Synthesis.Voice,
			}, dst); err != nil {
				lineErrs[i] = fmt.Errorf("synthesize: %w", err)
				return
			}
			dubs[i] = dst
		}(i)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for i, lineErr := range lineErrs {
		if lineErr == nil {
			continue
		}
		d.logger.Warn("line failed, substituting silence",
			slog.Int("batch", index),
			slog.Int("line", i),
			slog.Duration("window", windows[i].Duration()),
			slog.String("error", lineErr.Error()))
		dst := workspace.Path(fmt.Sprintf("dub-%03d-%03d-silence.wav", index, i))
		if err := d.deps.Transcoder.GenerateSilence(ctx, windows[i].Duration(), dst); err != nil {
			return nil, fmt.Errorf("substitute silence for line %d: %w", i, err)
		}
		dubs[i] = dst
	}
	return dubs, nil
}

// assembleBlock extracts, mixes, and assembles each scheduled segment into a
// clip, in output-timeline order. Per-segment intermediates are removed as
// soon as their clip exists.
func (d *Driver) assembleBlock(ctx context.Context, source string, assembler Assembler, workspace *fileutil.Workspace, index int, sched timeline.Schedule, dubs []string, referenceRMS float64) ([]string, error) {
	clips := make([]string, 0, len(sched.Entries)+len(sched.Gaps))
	entryIdx := 0
	for si, segment := range sched.Ordered() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		clip := workspace.Path(fmt.Sprintf("clip-%03d-%03d.mp4", index, si))
		original := workspace.Path(fmt.Sprintf("orig-%03d-%03d.wav", index, si))
		mixed := workspace.Path(fmt.Sprintf("mixed-%03d-%03d.wav", index, si))

		switch {
		case segment.Entry != nil:
			entry := segment.Entry
			dub := dubs[entryIdx]
			entryIdx++
			if err := d.deps.Transcoder.ExtractAudio(ctx, source, entry.Window.Start, entry.Window.End, original); err != nil {
				return nil, fmt.Errorf("extract original audio: %w", err)
			}
			if err := d.deps.Mixer.MixDialogue(ctx, dub, original, referenceRMS, mixed); err != nil {
				return nil, err
			}
			if err := assembler.SentenceClip(ctx, source, *entry, mixed, clip); err != nil {
				return nil, err
			}
			fileutil.RemoveQuietly(original, mixed, dub)

		case segment.Gap != nil:
			gap := segment.Gap
			if err := d.deps.Transcoder.ExtractAudio(ctx, source, gap.SourceStart, gap.SourceEnd, original); err != nil {
				return nil, fmt.Errorf("extract gap audio: %w", err)
			}
			if err := d.deps.Mixer.MixGap(ctx, original, referenceRMS, gap.Duration(), mixed); err != nil {
				return nil, err
			}
			if err := assembler.GapClip(ctx, source, *gap, mixed, clip); err != nil {
				return nil, err
			}
			fileutil.RemoveQuietly(original, mixed)
		}
		clips = append(clips, clip)
	}
	return clips, nil
}

func (d *Driver) encodeWorkers() int {
	workers := d.cfg.Workers.Encoding
	if workers < 1 {
		workers = 1
	}
	if workers > maxEncodeWorkers {
		workers = maxEncodeWorkers
	}
	return workers
}

// splitBlocks groups windows into flush blocks and assigns each block its
// source boundaries.
func splitBlocks(windows []dialogue.Window, size int, sourceEnd time.Duration) []block {
	if size < 1 {
		size = 1
	}
	blocks := make([]block, 0, (len(windows)+size-1)/size)
	start := time.Duration(0)
	for i := 0; i < len(windows); i += size {
		j := i + size
		if j > len(windows) {
			j = len(windows)
		}
		end := sourceEnd
		if j < len(windows) {
			end = windows[j].Start
		}
		blocks = append(blocks, block{windows: windows[i:j], start: start, end: end})
		start = end
	}
	return blocks
}
