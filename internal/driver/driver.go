package driver

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"dubstitch/internal/assembly"
	"dubstitch/internal/audiomix"
	"dubstitch/internal/batch"
	"dubstitch/internal/config"
	"dubstitch/internal/dialogue"
	"dubstitch/internal/media/ffmpeg"
	"dubstitch/internal/media/ffprobe"
	"dubstitch/internal/stitch"
	"dubstitch/internal/subtitles"
	"dubstitch/internal/synth"
	"dubstitch/internal/timeline"
)

// maxEncodeWorkers caps the encoding pool regardless of configuration; batch
// encodes are the heaviest transcoder invocations in the pipeline.
const maxEncodeWorkers = 10

// Transcoder is the slice of the external transcoder the driver itself needs;
// the mixer and assembler carry their own slices.
type Transcoder interface {
	Probe(ctx context.Context, path string) (ffprobe.Result, error)
	ExtractAudio(ctx context.Context, src string, start, end time.Duration, dst string) error
	GenerateSilence(ctx context.Context, duration time.Duration, dst string) error
	AudioDuration(ctx context.Context, path string) (time.Duration, error)
	MeasureRMS(ctx context.Context, path string) (float64, error)
}

// Mixer blends original audio beneath dubbed lines and gaps.
type Mixer interface {
	MixDialogue(ctx context.Context, dubPath, originalPath string, referenceRMS float64, dst string) error
	MixGap(ctx context.Context, originalPath string, referenceRMS float64, target time.Duration, dst string) error
}

// Assembler produces sentence and gap clips.
type Assembler interface {
	SentenceClip(ctx context.Context, source string, entry timeline.Entry, mixedAudio, dst string) error
	GapClip(ctx context.Context, source string, gap timeline.Gap, gapAudio, dst string) error
}

// Encoder turns one job into a published batch video.
type Encoder interface {
	Encode(ctx context.Context, job *batch.Job, manifest *batch.Manifest) error
}

// Stitcher joins published batches into the final file.
type Stitcher interface {
	Stitch(ctx context.Context, manifest *batch.Manifest, dst string) (*stitch.Result, error)
}

// Translator turns a dialogue window's text into the target language.
type Translator interface {
	Translate(ctx context.Context, window dialogue.Window) (string, error)
}

// PassthroughTranslator uses the translation already present on the window,
// falling back to the original text. Used when the subtitle file is already
// in the target language.
type PassthroughTranslator struct{}

func (PassthroughTranslator) Translate(_ context.Context, window dialogue.Window) (string, error) {
	if strings.TrimSpace(window.TranslatedText) != "" {
		return window.TranslatedText, nil
	}
	return window.OriginalText, nil
}

// Pipeline stages reported through the Notifier as work moves along.
const (
	StageTranslation = "translation"
	StageSynthesis   = "synthesis"
	StageMux         = "mux"
	StageStitch      = "stitch"
)

// Notifier receives pipeline progress events. Implementations must not block
// the pipeline; failures to deliver are swallowed.
type Notifier interface {
	JobStarted(title string)
	StageChanged(title, stage string)
	BatchEncoded(index, published int)
	JobCompleted(title, outputPath string)
	JobFailed(title, reason string)
}

type noopNotifier struct{}

func (noopNotifier) JobStarted(string)           {}
func (noopNotifier) StageChanged(string, string) {}
func (noopNotifier) BatchEncoded(int, int)       {}
func (noopNotifier) JobCompleted(string, string) {}
func (noopNotifier) JobFailed(string, string)    {}

// Deps bundles the driver's collaborators. NewAssembler is a factory because
// the assembler is sized to the source video's dimensions, which are only
// known once the job's source is probed.
type Deps struct {
	Transcoder   Transcoder
	Mixer        Mixer
	NewAssembler func(width, height int) Assembler
	Encoder      Encoder
	Stitcher     Stitcher
	Synthesizer  synth.Synthesizer
	Translator   Translator
	Notifier     Notifier
}

// Driver orchestrates the dub pipeline: translation and synthesis feed the
// scheduler, the scheduler feeds assembly, assembled batches flow through the
// encoding pool into the manifest, and the manifest is stitched.
type Driver struct {
	cfg    *config.Config
	deps   Deps
	logger *slog.Logger
}

// New constructs a driver from explicit collaborators.
func New(cfg *config.Config, deps Deps, logger *slog.Logger) *Driver {
	if deps.Translator == nil {
		deps.Translator = PassthroughTranslator{}
	}
	if deps.Notifier == nil {
		deps.Notifier = noopNotifier{}
	}
	return &Driver{cfg: cfg, deps: deps, logger: logger}
}

// NewFromConfig wires the production stack: the ffmpeg transcoder shared by
// mixer, assembler, encoder, and stitcher, the command synthesizer, and the
// built-in SRT sidecar renderer.
func NewFromConfig(cfg *config.Config, translator Translator, notifier Notifier, logger *slog.Logger) (*Driver, error) {
	tc := ffmpeg.New(ffmpeg.NewRunner(), cfg.FFmpegBinary(), cfg.FFprobeBinary(), logger)

	synthesizer, err := synth.NewCommandSynthesizer(cfg.Synthesis, logger)
	if err != nil {
		return nil, err
	}

	params := audiomix.Params{
		DialoguePercent: cfg.Mix.DialoguePercent,
		GapFraction:     cfg.Mix.GapFraction,
		GapCapPercent:   cfg.Mix.GapCapPercent,
		DubHeadroomDB:   cfg.Mix.DubHeadroomDB,
	}
	renderers := []subtitles.Renderer{subtitles.SRTRenderer{}}
	if cfg.Output.WordTimedSidecar {
		renderers = append(renderers, subtitles.WordPacedSRTRenderer{})
	}

	deps := Deps{
		Transcoder: tc,
		Mixer:      audiomix.NewMixer(tc, params, logger),
		NewAssembler: func(width, height int) Assembler {
			return assembly.New(tc, width, height, logger)
		},
		Encoder:     batch.NewEncoder(tc, renderers, cfg.Output.Height, logger),
		Stitcher:    stitch.New(tc, renderers, logger),
		Synthesizer: synthesizer,
		Translator:  translator,
		Notifier:    notifier,
	}
	return New(cfg, deps, logger), nil
}
