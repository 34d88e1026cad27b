package timeline

import (
	"testing"
	"time"

	"dubstitch/internal/dialogue"
)

func sec(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

func TestBuildPreservesSourceGaps(t *testing.T) {
	// Two lines at [0.0,1.0] and [1.5,2.5] with synthesized durations 1.2s
	// and 0.8s: the 0.5s source gap survives even though both windows change.
	windows := []dialogue.Window{
		{Start: 0, End: sec(1.0), TranslatedText: "one"},
		{Start: sec(1.5), End: sec(2.5), TranslatedText: "two"},
	}
	durations := []time.Duration{sec(1.2), sec(0.8)}

	sched, err := Build(windows, durations, 0, sec(2.5))
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if len(sched.Entries) != 2 {
		t.Fatalf("got %d entries", len(sched.Entries))
	}
	if sched.Entries[0].Start != 0 || sched.Entries[0].End != sec(1.2) {
		t.Fatalf("first entry [%v, %v], want [0, 1.2s]", sched.Entries[0].Start, sched.Entries[0].End)
	}
	if sched.Entries[1].Start != sec(1.7) || sched.Entries[1].End != sec(2.5) {
		t.Fatalf("second entry [%v, %v], want [1.7s, 2.5s]", sched.Entries[1].Start, sched.Entries[1].End)
	}
	if len(sched.Gaps) != 1 || sched.Gaps[0].Duration() != sec(0.5) {
		t.Fatalf("unexpected gaps: %+v", sched.Gaps)
	}
	if sched.End != sec(2.5) {
		t.Fatalf("schedule end = %v", sched.End)
	}
}

func TestBuildAccountingProperty(t *testing.T) {
	windows := []dialogue.Window{
		{Start: sec(10.0), End: sec(11.0)},
		{Start: sec(12.0), End: sec(13.5)},
		{Start: sec(13.5), End: sec(14.0)},
	}
	durations := []time.Duration{sec(0.7), sec(2.1), sec(0.4)}

	sched, err := Build(windows, durations, sec(10.0), sec(15.0))
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	var total time.Duration
	for _, entry := range sched.Entries {
		total += entry.Duration()
	}
	for _, gap := range sched.Gaps {
		total += gap.Duration()
	}
	if got := sched.End - sched.Start; got != total {
		t.Fatalf("duration accounting broken: span %v, parts %v", got, total)
	}

	// Entries are strictly ordered and contiguous modulo inserted gaps.
	segments := sched.Ordered()
	cursor := sched.Start
	for i, seg := range segments {
		var start, end time.Duration
		if seg.Entry != nil {
			start, end = seg.Entry.Start, seg.Entry.End
		} else {
			start, end = seg.Gap.Start, seg.Gap.End()
		}
		if start != cursor {
			t.Fatalf("segment %d starts at %v, cursor %v", i, start, cursor)
		}
		cursor = end
	}
	if cursor != sched.End {
		t.Fatalf("segments end at %v, schedule end %v", cursor, sched.End)
	}
}

func TestBuildFloorsNearZeroDurations(t *testing.T) {
	windows := []dialogue.Window{{Start: 0, End: sec(1.0)}}
	sched, err := Build(windows, []time.Duration{0}, 0, sec(1.0))
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if sched.Entries[0].Duration() != MinSegmentDuration {
		t.Fatalf("zero duration not floored: %v", sched.Entries[0].Duration())
	}
}

func TestBuildTrailingGap(t *testing.T) {
	windows := []dialogue.Window{{Start: 0, End: sec(1.0)}}
	sched, err := Build(windows, []time.Duration{sec(1.0)}, 0, sec(3.0))
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if len(sched.Gaps) != 1 {
		t.Fatalf("expected trailing gap, got %+v", sched.Gaps)
	}
	gap := sched.Gaps[0]
	if gap.SourceStart != sec(1.0) || gap.SourceEnd != sec(3.0) {
		t.Fatalf("trailing gap source span [%v, %v]", gap.SourceStart, gap.SourceEnd)
	}
	if sched.End != sec(3.0) {
		t.Fatalf("schedule end = %v", sched.End)
	}
}

func TestBuildRejectsMismatchedInput(t *testing.T) {
	windows := []dialogue.Window{{Start: 0, End: sec(1.0)}}
	if _, err := Build(windows, nil, 0, sec(1.0)); err == nil {
		t.Fatal("expected error for mismatched lengths")
	}
}

func TestBuildRejectsDisorderedWindows(t *testing.T) {
	windows := []dialogue.Window{
		{Start: sec(2.0), End: sec(3.0)},
		{Start: sec(1.0), End: sec(1.5)},
	}
	if _, err := Build(windows, []time.Duration{sec(1.0), sec(0.5)}, 0, sec(3.0)); err == nil {
		t.Fatal("expected error for disordered windows")
	}
}
