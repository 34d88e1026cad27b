package dialogue

import (
	"testing"
	"time"
)

func testOptions() NormalizeOptions {
	return NormalizeOptions{
		MinGap:           80 * time.Millisecond,
		MinDuration:      300 * time.Millisecond,
		MergeSimilarity:  0.90,
		MergeContainment: 0.95,
	}
}

func sec(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

func TestNormalizeSortsAndEnforcesGap(t *testing.T) {
	cues := []Window{
		{Start: sec(2.0), End: sec(3.0), OriginalText: "second"},
		{Start: sec(0.0), End: sec(2.0), OriginalText: "first"},
	}

	got := Normalize(cues, testOptions())
	if len(got) != 2 {
		t.Fatalf("got %d windows, want 2", len(got))
	}
	if got[0].OriginalText != "first" {
		t.Fatal("windows not sorted by start")
	}
	// Second window started exactly at the first's end; it must shift
	// forward by the minimum gap.
	if got[1].Start != sec(2.0)+80*time.Millisecond {
		t.Fatalf("second start = %v, want %v", got[1].Start, sec(2.0)+80*time.Millisecond)
	}
	if got[1].Duration() != sec(1.0) {
		t.Fatalf("shift must preserve duration, got %v", got[1].Duration())
	}
}

func TestNormalizeProperties(t *testing.T) {
	opts := testOptions()
	cues := []Window{
		{Start: sec(0.0), End: sec(0.1), OriginalText: "too short"},
		{Start: sec(0.05), End: sec(1.0), OriginalText: "overlapping"},
		{Start: sec(0.9), End: sec(1.4), OriginalText: "another overlap"},
		{Start: sec(5.0), End: sec(6.0), OriginalText: "far away"},
	}

	got := Normalize(cues, opts)
	for i, w := range got {
		if w.Duration() < opts.MinDuration {
			t.Errorf("window %d duration %v below floor", i, w.Duration())
		}
		if i > 0 && w.Start < got[i-1].End+opts.MinGap {
			t.Errorf("window %d overlaps previous (start %v, prev end %v)", i, w.Start, got[i-1].End)
		}
	}
}

func TestNormalizeMergesNearDuplicates(t *testing.T) {
	cues := []Window{
		{Start: sec(0.0), End: sec(1.0), OriginalText: "We leave at"},
		{Start: sec(1.0), End: sec(2.0), OriginalText: "We leave at dawn"},
		{Start: sec(3.0), End: sec(4.0), OriginalText: "Completely different words"},
	}

	got := Normalize(cues, testOptions())
	if len(got) != 2 {
		t.Fatalf("got %d windows, want 2 after merge", len(got))
	}
	if got[0].Start != sec(0.0) || got[0].End != sec(2.0) {
		t.Fatalf("merged window spans [%v, %v], want union", got[0].Start, got[0].End)
	}
	if got[0].OriginalText != "We leave at dawn" {
		t.Fatalf("merged text = %q, want the longer cue", got[0].OriginalText)
	}
}

func TestNormalizeDropsInvalidWindows(t *testing.T) {
	cues := []Window{
		{Start: sec(1.0), End: sec(1.0), OriginalText: "zero length"},
		{Start: sec(2.0), End: sec(1.5), OriginalText: "inverted"},
		{Start: sec(0.0), End: sec(1.0), OriginalText: "good"},
	}
	got := Normalize(cues, testOptions())
	if len(got) != 1 || got[0].OriginalText != "good" {
		t.Fatalf("unexpected windows: %+v", got)
	}
}

func TestClipShiftsAndTruncates(t *testing.T) {
	windows := []Window{
		{Start: sec(0.0), End: sec(1.0), OriginalText: "before"},
		{Start: sec(1.5), End: sec(3.0), OriginalText: "crosses start"},
		{Start: sec(4.0), End: sec(5.0), OriginalText: "inside"},
		{Start: sec(5.5), End: sec(7.0), OriginalText: "crosses end"},
		{Start: sec(8.0), End: sec(9.0), OriginalText: "after"},
	}

	got := Clip(windows, sec(2.0), sec(6.0))
	if len(got) != 3 {
		t.Fatalf("got %d windows, want 3: %+v", len(got), got)
	}
	if got[0].Start != 0 || got[0].End != sec(1.0) {
		t.Fatalf("truncated head window = [%v, %v]", got[0].Start, got[0].End)
	}
	if got[1].Start != sec(2.0) || got[1].End != sec(3.0) {
		t.Fatalf("inside window = [%v, %v]", got[1].Start, got[1].End)
	}
	if got[2].End != sec(4.0) {
		t.Fatalf("tail window end = %v, want clip boundary", got[2].End)
	}
}

func TestClipDropsZeroLength(t *testing.T) {
	windows := []Window{{Start: sec(1.0), End: sec(2.0), OriginalText: "edge"}}
	if got := Clip(windows, sec(2.0), sec(4.0)); len(got) != 0 {
		t.Fatalf("window ending at clip start should drop, got %+v", got)
	}
}

func TestClipRoundTrip(t *testing.T) {
	normalized := Normalize([]Window{
		{Start: sec(0.0), End: sec(1.0), OriginalText: "one"},
		{Start: sec(2.0), End: sec(3.0), OriginalText: "two"},
	}, testOptions())

	got := Clip(normalized, 0, sec(10.0))
	if len(got) != len(normalized) {
		t.Fatalf("round trip changed count: %d vs %d", len(got), len(normalized))
	}
	for i := range got {
		if got[i] != normalized[i] {
			t.Errorf("window %d changed: %+v vs %+v", i, got[i], normalized[i])
		}
	}
}
