package subtitles

import (
	"context"
	"strings"
	"time"
)

// Renderer consumes a finished output timeline and produces sidecar subtitle
// files next to basePath. Richer formats (ASS/VTT with highlight styling) are
// external collaborators implementing this same contract; the built-in
// renderer emits plain SRT.
type Renderer interface {
	Render(ctx context.Context, cues []Cue, basePath string) (sidecarPath string, err error)
}

// SRTRenderer writes a plain SubRip sidecar with the ".srt" extension.
type SRTRenderer struct{}

func (SRTRenderer) Render(_ context.Context, cues []Cue, basePath string) (string, error) {
	path := basePath + ".srt"
	if err := WriteFile(path, cues); err != nil {
		return "", err
	}
	return path, nil
}

// WordPacedSRTRenderer writes a ".words.srt" sidecar with one cue per word,
// pacing each cue's span across its words. Players that highlight the active
// word consume this track; the plain SRT sidecar stays untouched.
type WordPacedSRTRenderer struct{}

func (WordPacedSRTRenderer) Render(_ context.Context, cues []Cue, basePath string) (string, error) {
	paced := make([]Cue, 0, len(cues))
	for _, cue := range cues {
		paced = append(paced, PaceWords(cue.Text, cue.Start, cue.End)...)
	}
	path := basePath + ".words.srt"
	if err := WriteFile(path, paced); err != nil {
		return "", err
	}
	return path, nil
}

// Word pacing weights for renderers that need per-word timing when the
// synthesizer reports none. Character count dominates; the uniform share
// keeps very short words visible. Tuned values, kept overridable.
const (
	WordPacingCharWeight    = 0.85
	WordPacingUniformWeight = 0.15
)

// PaceWords distributes a cue's span across its words, weighting each word's
// share by WordPacingCharWeight on character length and
// WordPacingUniformWeight uniformly.
func PaceWords(text string, start, end time.Duration) []Cue {
	words := strings.Fields(text)
	if len(words) == 0 || end <= start {
		return nil
	}

	total := 0
	for _, word := range words {
		total += len([]rune(word))
	}
	span := float64(end - start)
	uniform := 1.0 / float64(len(words))

	cues := make([]Cue, 0, len(words))
	cursor := start
	for i, word := range words {
		charShare := float64(len([]rune(word))) / float64(total)
		share := WordPacingCharWeight*charShare + WordPacingUniformWeight*uniform
		wordEnd := cursor + time.Duration(span*share)
		if i == len(words)-1 || wordEnd > end {
			wordEnd = end
		}
		cues = append(cues, Cue{Start: cursor, End: wordEnd, Text: word})
		cursor = wordEnd
	}
	return cues
}
