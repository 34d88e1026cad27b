package timeline

import (
	"fmt"
	"time"

	"dubstitch/internal/dialogue"
)

// MinSegmentDuration floors near-zero synthesized durations so muxing never
// receives a zero-length segment.
const MinSegmentDuration = 200 * time.Millisecond

// Entry is a dialogue window re-timed onto the output timeline. Its duration
// always equals the measured synthesized-audio duration, never the original
// window's span.
type Entry struct {
	Window dialogue.Window
	Start  time.Duration
	End    time.Duration
}

// Duration returns the entry's span on the output timeline.
func (e Entry) Duration() time.Duration {
	return e.End - e.Start
}

// Gap is a silent span carried over from the source timeline. Its scheduled
// duration equals its source duration; gaps are never stretched.
type Gap struct {
	// Start is the gap's position on the output timeline.
	Start time.Duration
	// SourceStart and SourceEnd locate the gap on the source timeline, used
	// to trim the matching video slice.
	SourceStart time.Duration
	SourceEnd   time.Duration
}

// Duration returns the gap's span.
func (g Gap) Duration() time.Duration {
	return g.SourceEnd - g.SourceStart
}

// End returns the gap's end on the output timeline.
func (g Gap) End() time.Duration {
	return g.Start + g.Duration()
}

// Schedule is one batch's output timeline: entries and gaps in source order,
// contiguous from Start to End.
type Schedule struct {
	Entries []Entry
	Gaps    []Gap
	Start   time.Duration
	End     time.Duration
}

// Duration returns the full scheduled span, sum of synthesized durations plus
// preserved source gaps.
func (s Schedule) Duration() time.Duration {
	return s.End - s.Start
}

// Build computes the output timeline for one batch. For each window in order
// it first inserts the source gap since the previous window unmodified (this
// preserves ambient pauses), then places the entry sized to its synthesized
// duration; the window adapts to the audio, never the other way around. The
// trailing source gap up to blockEnd is appended last.
func Build(windows []dialogue.Window, synthesized []time.Duration, blockStart, blockEnd time.Duration) (Schedule, error) {
	if len(windows) != len(synthesized) {
		return Schedule{}, fmt.Errorf("schedule: %d windows but %d synthesized durations", len(windows), len(synthesized))
	}

	sched := Schedule{Start: blockStart}
	cursor := blockStart
	lastSourceEnd := blockStart

	for i, window := range windows {
		if err := window.Validate(); err != nil {
			return Schedule{}, fmt.Errorf("schedule window %d: %w", i, err)
		}
		if window.Start < lastSourceEnd {
			return Schedule{}, fmt.Errorf("schedule window %d: start %v precedes previous end %v", i, window.Start, lastSourceEnd)
		}

		if gap := window.Start - lastSourceEnd; gap > 0 {
			sched.Gaps = append(sched.Gaps, Gap{
				Start:       cursor,
				SourceStart: lastSourceEnd,
				SourceEnd:   window.Start,
			})
			cursor += gap
		}

		duration := synthesized[i]
		if duration < MinSegmentDuration {
			duration = MinSegmentDuration
		}
		sched.Entries = append(sched.Entries, Entry{
			Window: window,
			Start:  cursor,
			End:    cursor + duration,
		})
		cursor += duration
		lastSourceEnd = window.End
	}

	if blockEnd > lastSourceEnd {
		sched.Gaps = append(sched.Gaps, Gap{
			Start:       cursor,
			SourceStart: lastSourceEnd,
			SourceEnd:   blockEnd,
		})
		cursor += blockEnd - lastSourceEnd
	}

	sched.End = cursor
	return sched, nil
}

// Segments interleaves entries and gaps back into output-timeline order.
type Segment struct {
	Entry *Entry
	Gap   *Gap
}

// Ordered returns the schedule's segments sorted by output start time.
func (s Schedule) Ordered() []Segment {
	segments := make([]Segment, 0, len(s.Entries)+len(s.Gaps))
	e, g := 0, 0
	for e < len(s.Entries) || g < len(s.Gaps) {
		switch {
		case e >= len(s.Entries):
			segments = append(segments, Segment{Gap: &s.Gaps[g]})
			g++
		case g >= len(s.Gaps):
			segments = append(segments, Segment{Entry: &s.Entries[e]})
			e++
		case s.Gaps[g].Start < s.Entries[e].Start:
			segments = append(segments, Segment{Gap: &s.Gaps[g]})
			g++
		default:
			segments = append(segments, Segment{Entry: &s.Entries[e]})
			e++
		}
	}
	return segments
}
