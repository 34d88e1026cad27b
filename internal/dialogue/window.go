package dialogue

import (
	"fmt"
	"time"

	"dubstitch/internal/subtitles"
)

// Window is a time-stamped span of dialogue on the source timeline. Windows
// are immutable once normalized; later pipeline stages produce new windows
// with recomputed bounds instead of mutating these.
type Window struct {
	Start           time.Duration
	End             time.Duration
	OriginalText    string
	TranslatedText  string
	Transliteration string

	// SpeechOffset and SpeechDuration locate the synthesized speech inside
	// the window when the synthesizer reports them. Zero means unset.
	SpeechOffset   time.Duration
	SpeechDuration time.Duration
}

// Duration returns the window's span.
func (w Window) Duration() time.Duration {
	return w.End - w.Start
}

// Validate checks the construction invariant.
func (w Window) Validate() error {
	if w.End <= w.Start {
		return fmt.Errorf("dialogue window [%v, %v]: end must be after start", w.Start, w.End)
	}
	return nil
}

// FromCues converts parsed subtitle cues into dialogue windows. The cue text
// becomes the original text; translation fills TranslatedText later.
func FromCues(cues []subtitles.Cue) []Window {
	windows := make([]Window, 0, len(cues))
	for _, cue := range cues {
		windows = append(windows, Window{
			Start:        cue.Start,
			End:          cue.End,
			OriginalText: cue.Text,
		})
	}
	return windows
}
