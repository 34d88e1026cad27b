package audiomix

import "math"

// DefaultGapMixFraction scales the dialogue mix percentage for silent-gap
// segments so the underlay never jumps louder between a line and the pause
// after it. Tuned value, overridable through config.
const DefaultGapMixFraction = 0.5

// DefaultGapMixCapPercent is the hard ceiling on the gap mix percentage.
const DefaultGapMixCapPercent = 30.0

// DefaultDubHeadroomDB is the attenuation applied to the dubbed track before
// the underlay is added, leaving headroom for the sum.
const DefaultDubHeadroomDB = 1.0

// Params carries the underlay calibration knobs.
type Params struct {
	DialoguePercent float64
	GapFraction     float64
	GapCapPercent   float64
	DubHeadroomDB   float64
}

// DefaultParams returns the tuned defaults.
func DefaultParams() Params {
	return Params{
		DialoguePercent: 10,
		GapFraction:     DefaultGapMixFraction,
		GapCapPercent:   DefaultGapMixCapPercent,
		DubHeadroomDB:   DefaultDubHeadroomDB,
	}
}

// GapPercent returns the mix percentage used for gap segments.
func (p Params) GapPercent() float64 {
	percent := p.DialoguePercent * p.GapFraction
	if percent > p.GapCapPercent {
		percent = p.GapCapPercent
	}
	return percent
}

// GainDB computes the gain applied to the original audio so that it sits at
// mixPercent of the dubbed track's reference loudness. The result is clamped
// so the underlay is never boosted above the dubbed track's natural loudness.
// Both loudness arguments are linear RMS values. Deterministic: identical
// inputs always yield the identical gain.
func GainDB(mixPercent, referenceRMS, originalRMS float64) float64 {
	if mixPercent <= 0 || referenceRMS <= 0 || originalRMS <= 0 {
		return 0
	}
	gain := 20 * math.Log10(mixPercent/100*referenceRMS/originalRMS)
	ceiling := 20 * math.Log10(referenceRMS/originalRMS)
	if gain > ceiling {
		gain = ceiling
	}
	return gain
}

// ReferenceRMS aggregates per-segment RMS values into the batch reference
// loudness: the quadratic mean, so louder lines dominate the way they do in
// the mixed result. Computed once per batch and reused for every gap in it.
func ReferenceRMS(segments []float64) float64 {
	var sum float64
	var count int
	for _, rms := range segments {
		if rms <= 0 {
			continue
		}
		sum += rms * rms
		count++
	}
	if count == 0 {
		return 0
	}
	return math.Sqrt(sum / float64(count))
}
