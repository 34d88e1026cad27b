package ffprobe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// Result represents the parsed output from an ffprobe inspection.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream describes a single stream in the media container.
type Stream struct {
	Index      int    `json:"index"`
	CodecName  string `json:"codec_name"`
	CodecType  string `json:"codec_type"`
	Profile    string `json:"profile"`
	PixFmt     string `json:"pix_fmt"`
	RFrameRate string `json:"r_frame_rate"`
	TimeBase   string `json:"time_base"`
	Duration   string `json:"duration"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	SampleRate string `json:"sample_rate"`
	Channels   int    `json:"channels"`
}

// Format captures container-level metadata extracted by ffprobe.
type Format struct {
	Filename   string `json:"filename"`
	NBStreams  int    `json:"nb_streams"`
	Duration   string `json:"duration"`
	FormatName string `json:"format_name"`
}

// Inspect executes ffprobe against the provided path and decodes the JSON response.
func Inspect(ctx context.Context, binary string, path string) (Result, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{}, errors.New("ffprobe inspect: empty path")
	}

	cmd := exec.CommandContext(ctx, binary, "-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return Result{}, fmt.Errorf("ffprobe inspect: %w: %s", err, strings.TrimSpace(string(output)))
	}

	var result Result
	if err := json.Unmarshal(output, &result); err != nil {
		return Result{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	return result, nil
}

// VideoStream returns the first video stream, if any.
func (r Result) VideoStream() (Stream, bool) {
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, "video") {
			return stream, true
		}
	}
	return Stream{}, false
}

// HasAudio reports whether any audio stream is present.
func (r Result) HasAudio() bool {
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, "audio") {
			return true
		}
	}
	return false
}

// DurationSeconds returns the container duration in seconds, or 0 when unavailable.
func (r Result) DurationSeconds() float64 {
	value := parseFloat(r.Format.Duration)
	if math.IsNaN(value) {
		return 0
	}
	return value
}

// Height returns the primary video stream height, or 0 when no video exists.
func (r Result) Height() int {
	if stream, ok := r.VideoStream(); ok {
		return stream.Height
	}
	return 0
}

// Signature identifies the encoder settings relevant to stream-copy
// concatenation. Two files with equal signatures can usually be concatenated
// without re-encoding.
type Signature struct {
	Codec     string
	Profile   string
	PixFmt    string
	FrameRate string
	TimeBase  string
}

// VideoSignature extracts the primary video stream's signature.
func (r Result) VideoSignature() (Signature, bool) {
	stream, ok := r.VideoStream()
	if !ok {
		return Signature{}, false
	}
	return Signature{
		Codec:     stream.CodecName,
		Profile:   stream.Profile,
		PixFmt:    stream.PixFmt,
		FrameRate: stream.RFrameRate,
		TimeBase:  stream.TimeBase,
	}, true
}

// frameEnvelope matches ffprobe's -show_entries frame output.
type frameEnvelope struct {
	Frames []struct {
		PTSTime        string `json:"pts_time"`
		BestEffortTime string `json:"best_effort_timestamp_time"`
	} `json:"frames"`
}

// FrameTimestamps returns video frame timestamps (seconds) starting at the
// given offset. Used to detect concat defects in the stitched tail.
func FrameTimestamps(ctx context.Context, binary string, path string, fromSeconds float64) ([]float64, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	if fromSeconds < 0 {
		fromSeconds = 0
	}

	cmd := exec.CommandContext(ctx, binary,
		"-v", "error", "-hide_banner",
		"-select_streams", "v:0",
		"-show_entries", "frame=pts_time,best_effort_timestamp_time",
		"-read_intervals", fmt.Sprintf("%.3f%%", fromSeconds),
		"-of", "json", "--", path)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("ffprobe frames: %w: %s", err, strings.TrimSpace(string(output)))
	}

	var envelope frameEnvelope
	if err := json.Unmarshal(output, &envelope); err != nil {
		return nil, fmt.Errorf("ffprobe frames parse: %w", err)
	}

	timestamps := make([]float64, 0, len(envelope.Frames))
	for _, frame := range envelope.Frames {
		value := parseFloat(frame.PTSTime)
		if math.IsNaN(value) {
			value = parseFloat(frame.BestEffortTime)
		}
		if math.IsNaN(value) {
			continue
		}
		timestamps = append(timestamps, value)
	}
	return timestamps, nil
}

func parseFloat(value string) float64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return math.NaN()
	}
	if parsed, err := strconv.ParseFloat(cleaned, 64); err == nil {
		return parsed
	}
	return math.NaN()
}
