// Package ffprobe wraps the ffprobe CLI for container, stream-signature, and
// frame-timestamp inspection.
package ffprobe
