package subtitles

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Cue is a time-stamped span of subtitle text.
type Cue struct {
	Start time.Duration
	End   time.Duration
	Text  string
}

// ParseSRT reads SubRip cues. Index lines are optional; malformed blocks are
// skipped rather than failing the whole file, since scraped subtitle sources
// are routinely noisy.
func ParseSRT(r io.Reader) ([]Cue, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var cues []Cue
	var block []string
	flush := func() {
		if cue, ok := parseBlock(block); ok {
			cues = append(cues, cue)
		}
		block = block[:0]
	}

	for scanner.Scan() {
		line := strings.TrimSpace(strings.TrimPrefix(scanner.Text(), "\uFEFF"))
		if line == "" {
			flush()
			continue
		}
		block = append(block, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read subtitles: %w", err)
	}
	flush()
	return cues, nil
}

func parseBlock(lines []string) (Cue, bool) {
	timingIdx := -1
	for i, line := range lines {
		if strings.Contains(line, "-->") {
			timingIdx = i
			break
		}
	}
	if timingIdx < 0 || timingIdx+1 > len(lines) {
		return Cue{}, false
	}

	parts := strings.SplitN(lines[timingIdx], "-->", 2)
	if len(parts) != 2 {
		return Cue{}, false
	}
	start, err := parseTimestamp(strings.TrimSpace(parts[0]))
	if err != nil {
		return Cue{}, false
	}
	endField := strings.Fields(strings.TrimSpace(parts[1]))
	if len(endField) == 0 {
		return Cue{}, false
	}
	end, err := parseTimestamp(endField[0])
	if err != nil || end <= start {
		return Cue{}, false
	}

	text := strings.TrimSpace(strings.Join(lines[timingIdx+1:], "\n"))
	if text == "" {
		return Cue{}, false
	}
	return Cue{Start: start, End: end, Text: text}, true
}

// parseTimestamp accepts HH:MM:SS,mmm and HH:MM:SS.mmm.
func parseTimestamp(value string) (time.Duration, error) {
	value = strings.ReplaceAll(value, ",", ".")
	fields := strings.Split(value, ":")
	if len(fields) != 3 {
		return 0, fmt.Errorf("timestamp %q: expected HH:MM:SS", value)
	}
	hours, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, fmt.Errorf("timestamp %q: %w", value, err)
	}
	minutes, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, fmt.Errorf("timestamp %q: %w", value, err)
	}
	seconds, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return 0, fmt.Errorf("timestamp %q: %w", value, err)
	}
	total := time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute
	total += time.Duration(seconds * float64(time.Second))
	return total, nil
}

// WriteSRT serializes cues in SubRip format.
func WriteSRT(w io.Writer, cues []Cue) error {
	for i, cue := range cues {
		if _, err := fmt.Fprintf(w, "%d\n%s --> %s\n%s\n\n",
			i+1, formatTimestamp(cue.Start), formatTimestamp(cue.End), cue.Text); err != nil {
			return fmt.Errorf("write cue %d: %w", i+1, err)
		}
	}
	return nil
}

func formatTimestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	millis := d.Milliseconds()
	hours := millis / 3_600_000
	millis -= hours * 3_600_000
	minutes := millis / 60_000
	millis -= minutes * 60_000
	seconds := millis / 1_000
	millis -= seconds * 1_000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, seconds, millis)
}

// ReadFile parses an SRT file from disk.
func ReadFile(path string) ([]Cue, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open subtitles: %w", err)
	}
	defer file.Close()
	return ParseSRT(file)
}

// WriteFile serializes cues to an SRT file.
func WriteFile(path string, cues []Cue) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create subtitles: %w", err)
	}
	defer file.Close()
	if err := WriteSRT(file, cues); err != nil {
		return err
	}
	return file.Close()
}

// Shift returns a copy of cues with all timestamps offset.
func Shift(cues []Cue, offset time.Duration) []Cue {
	shifted := make([]Cue, len(cues))
	for i, cue := range cues {
		shifted[i] = Cue{Start: cue.Start + offset, End: cue.End + offset, Text: cue.Text}
	}
	return shifted
}

// Merge combines per-batch sidecars into one track. offsets[i] is batch i's
// cumulative start on the stitched timeline.
func Merge(batches [][]Cue, offsets []time.Duration) []Cue {
	var merged []Cue
	for i, cues := range batches {
		var offset time.Duration
		if i < len(offsets) {
			offset = offsets[i]
		}
		merged = append(merged, Shift(cues, offset)...)
	}
	sort.SliceStable(merged, func(a, b int) bool { return merged[a].Start < merged[b].Start })
	return merged
}
