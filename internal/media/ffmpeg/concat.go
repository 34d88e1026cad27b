package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"dubstitch/internal/fileutil"
)

// ConcatClip names one input for a filtergraph concatenation.
type ConcatClip struct {
	Path     string
	HasAudio bool
}

// ConcatClips joins clips with the concat filter, re-encoding the result.
// Clips without an audio stream get silent audio synthesized in place, so the
// concat filter always sees matched video+audio pairs.
func (t *Transcoder) ConcatClips(ctx context.Context, clips []ConcatClip, dst string) error {
	if len(clips) == 0 {
		return errors.New("concat clips: no inputs")
	}

	args := make([]string, 0, len(clips)*2+10)
	for _, clip := range clips {
		args = append(args, "-i", clip.Path)
	}
	args = append(args, "-f", "lavfi", "-i", "anullsrc=channel_layout=stereo:sample_rate=48000")
	silenceIndex := len(clips)

	var graph strings.Builder
	for i, clip := range clips {
		fmt.Fprintf(&graph, "[%d:v:0]", i)
		if clip.HasAudio {
			fmt.Fprintf(&graph, "[%d:a:0]", i)
		} else {
			fmt.Fprintf(&graph, "[%d:a:0]", silenceIndex)
		}
	}
	fmt.Fprintf(&graph, "concat=n=%d:v=1:a=1[v][a]", len(clips))

	args = append(args,
		"-filter_complex", graph.String(),
		"-map", "[v]", "-map", "[a]",
		"-c:v", "libx264", "-preset", "veryfast", "-crf", "18",
		"-c:a", "aac", "-b:a", "192k",
		dst)
	return t.run(ctx, args...)
}

// ConcatCopy joins files with the concat demuxer and stream copy. All inputs
// must share a video signature; mismatches produce broken output rather than
// an error, which is why callers validate the result.
func (t *Transcoder) ConcatCopy(ctx context.Context, paths []string, dst string) error {
	if len(paths) == 0 {
		return errors.New("concat copy: no inputs")
	}
	listPath, err := writeConcatList(paths, dst)
	if err != nil {
		return err
	}
	defer fileutil.RemoveQuietly(listPath)

	return t.run(ctx,
		"-f", "concat", "-safe", "0",
		"-i", listPath,
		"-c", "copy",
		dst)
}

// ConcatReencode joins files with the concat demuxer and a full re-encode.
// Slowest tier, tolerant of any input mix.
func (t *Transcoder) ConcatReencode(ctx context.Context, paths []string, dst string) error {
	if len(paths) == 0 {
		return errors.New("concat reencode: no inputs")
	}
	listPath, err := writeConcatList(paths, dst)
	if err != nil {
		return err
	}
	defer fileutil.RemoveQuietly(listPath)

	return t.run(ctx,
		"-f", "concat", "-safe", "0",
		"-i", listPath,
		"-c:v", "libx264", "-preset", "veryfast", "-crf", "18",
		"-c:a", "aac", "-b:a", "192k",
		dst)
}

func writeConcatList(paths []string, dst string) (string, error) {
	var list strings.Builder
	for _, path := range paths {
		abs, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("concat list: resolve %s: %w", path, err)
		}
		fmt.Fprintf(&list, "file '%s'\n", strings.ReplaceAll(abs, "'", `'\''`))
	}
	listPath := dst + ".concat.txt"
	if err := os.WriteFile(listPath, []byte(list.String()), 0o644); err != nil {
		return "", fmt.Errorf("concat list: %w", err)
	}
	return listPath, nil
}
