// Package ffmpeg wraps the external ffmpeg CLI as a set of narrow transcoding
// operations. Every operation is one synchronous subprocess invocation;
// callers compose fallback chains from the pieces.
package ffmpeg
