package dialogue

import (
	"sort"
	"time"

	"dubstitch/internal/config"
	"dubstitch/internal/textutil"
)

// NormalizeOptions controls window normalization.
type NormalizeOptions struct {
	// MinGap is the minimum silence enforced between consecutive windows.
	MinGap time.Duration
	// MinDuration is the floor below which a window's end is extended.
	MinDuration time.Duration
	// MergeSimilarity and MergeContainment are the thresholds above which
	// consecutive near-duplicate cues collapse into one window.
	MergeSimilarity  float64
	MergeContainment float64
}

// OptionsFromConfig maps the config section onto normalization options.
func OptionsFromConfig(cfg config.Dialogue) NormalizeOptions {
	return NormalizeOptions{
		MinGap:           time.Duration(cfg.MinGapMS) * time.Millisecond,
		MinDuration:      time.Duration(cfg.MinDurationMS) * time.Millisecond,
		MergeSimilarity:  cfg.MergeSimilarity,
		MergeContainment: cfg.MergeContainment,
	}
}

// Normalize turns raw cues into a sorted, non-overlapping window sequence.
// Near-duplicate consecutive cues (rolling-caption noise) are merged first;
// then overlaps are resolved by shifting windows forward, and short windows
// are extended to the duration floor.
func Normalize(cues []Window, opts NormalizeOptions) []Window {
	windows := make([]Window, 0, len(cues))
	for _, w := range cues {
		if w.End <= w.Start {
			continue
		}
		windows = append(windows, w)
	}
	sort.SliceStable(windows, func(a, b int) bool { return windows[a].Start < windows[b].Start })

	windows = mergeNearDuplicates(windows, opts)

	for i := range windows {
		if i > 0 {
			minStart := windows[i-1].End + opts.MinGap
			if windows[i].Start < minStart {
				shift := minStart - windows[i].Start
				windows[i].Start += shift
				windows[i].End += shift
			}
		}
		if windows[i].Duration() < opts.MinDuration {
			windows[i].End = windows[i].Start + opts.MinDuration
		}
	}
	return windows
}

// mergeNearDuplicates repeatedly collapses consecutive windows whose text is
// near-duplicate into one window spanning their union, so one spoken line
// does not flicker across several cues.
func mergeNearDuplicates(windows []Window, opts NormalizeOptions) []Window {
	if len(windows) < 2 {
		return windows
	}
	merged := make([]Window, 0, len(windows))
	merged = append(merged, windows[0])
	for _, next := range windows[1:] {
		last := &merged[len(merged)-1]
		if nearDuplicate(*last, next, opts) {
			if next.End > last.End {
				last.End = next.End
			}
			last.OriginalText = longerText(last.OriginalText, next.OriginalText)
			last.TranslatedText = longerText(last.TranslatedText, next.TranslatedText)
			continue
		}
		merged = append(merged, next)
	}
	return merged
}

func nearDuplicate(a, b Window, opts NormalizeOptions) bool {
	if opts.MergeSimilarity <= 0 && opts.MergeContainment <= 0 {
		return false
	}
	fa := textutil.NewFingerprint(a.OriginalText)
	fb := textutil.NewFingerprint(b.OriginalText)
	if fa == nil || fb == nil {
		return false
	}
	if opts.MergeSimilarity > 0 && textutil.CosineSimilarity(fa, fb) >= opts.MergeSimilarity {
		return true
	}
	return opts.MergeContainment > 0 && textutil.Containment(fa, fb) >= opts.MergeContainment
}

func longerText(a, b string) string {
	if len(b) > len(a) {
		return b
	}
	return a
}

// Clip re-zeroes the sequence at start and drops or truncates windows against
// the [start, end) range. A non-positive end means unbounded. Windows that
// collapse to zero length are dropped.
func Clip(windows []Window, start, end time.Duration) []Window {
	clipped := make([]Window, 0, len(windows))
	for _, w := range windows {
		if w.End <= start {
			continue
		}
		if end > 0 && w.Start >= end {
			continue
		}
		out := w
		if out.Start < start {
			out.Start = start
		}
		if end > 0 && out.End > end {
			out.End = end
		}
		out.Start -= start
		out.End -= start
		if out.End <= out.Start {
			continue
		}
		clipped = append(clipped, out)
	}
	return clipped
}
