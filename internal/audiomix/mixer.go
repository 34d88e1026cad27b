package audiomix

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"dubstitch/internal/fileutil"
)

// Transcoder is the slice of the external transcoder the mixer needs.
type Transcoder interface {
	AudioDuration(ctx context.Context, path string) (time.Duration, error)
	MeasureRMS(ctx context.Context, path string) (float64, error)
	StretchAudio(ctx context.Context, src string, target time.Duration, dst string) error
	TrimPadAudio(ctx context.Context, src string, target time.Duration, dst string) error
	OverlayAudio(ctx context.Context, dub, underlay string, underlayGainDB, dubHeadroomDB float64, dst string) error
	AdjustVolume(ctx context.Context, src string, gainDB float64, dst string) error
}

// Mixer blends original audio beneath dubbed audio at a calibrated loudness.
type Mixer struct {
	tc     Transcoder
	params Params
	logger *slog.Logger
}

// NewMixer constructs a mixer with the given calibration parameters.
func NewMixer(tc Transcoder, params Params, logger *slog.Logger) *Mixer {
	return &Mixer{tc: tc, params: params, logger: logger}
}

// MixDialogue lays the original audio slice beneath the dubbed line. The
// original is pitch-preserving stretched to the dubbed duration, gained to
// sit at the dialogue mix percentage of referenceRMS, and overlaid under the
// headroom-attenuated dub.
func (m *Mixer) MixDialogue(ctx context.Context, dubPath, originalPath string, referenceRMS float64, dst string) error {
	dubDuration, err := m.tc.AudioDuration(ctx, dubPath)
	if err != nil {
		return fmt.Errorf("mix dialogue: probe dub: %w", err)
	}

	stretched := dst + ".underlay.wav"
	defer fileutil.RemoveQuietly(stretched)
	if err := m.tc.StretchAudio(ctx, originalPath, dubDuration, stretched); err != nil {
		return fmt.Errorf("mix dialogue: stretch original: %w", err)
	}

	originalRMS, err := m.tc.MeasureRMS(ctx, stretched)
	if err != nil {
		return fmt.Errorf("mix dialogue: measure original: %w", err)
	}

	gain := GainDB(m.params.DialoguePercent, referenceRMS, originalRMS)
	m.logger.Debug("underlay gain computed",
		slog.Float64("gain_db", gain),
		slog.Float64("reference_rms", referenceRMS),
		slog.Float64("original_rms", originalRMS))

	if err := m.tc.OverlayAudio(ctx, dubPath, stretched, gain, m.params.DubHeadroomDB, dst); err != nil {
		return fmt.Errorf("mix dialogue: overlay: %w", err)
	}
	return nil
}

// MixGap attenuates the original audio of a silent gap. Gaps use the more
// conservative gap mix percentage against the same batch reference loudness,
// so the underlay level cannot jump at gap boundaries. Gap ambience is
// trimmed or silence-padded to the scheduled duration, never tempo-stretched.
func (m *Mixer) MixGap(ctx context.Context, originalPath string, referenceRMS float64, target time.Duration, dst string) error {
	fitted := dst + ".fit.wav"
	defer fileutil.RemoveQuietly(fitted)
	if err := m.tc.TrimPadAudio(ctx, originalPath, target, fitted); err != nil {
		return fmt.Errorf("mix gap: fit original: %w", err)
	}

	originalRMS, err := m.tc.MeasureRMS(ctx, fitted)
	if err != nil {
		return fmt.Errorf("mix gap: measure original: %w", err)
	}

	gain := GainDB(m.params.GapPercent(), referenceRMS, originalRMS)
	if err := m.tc.AdjustVolume(ctx, fitted, gain, dst); err != nil {
		return fmt.Errorf("mix gap: attenuate: %w", err)
	}
	return nil
}
