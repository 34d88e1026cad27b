// Package batch encodes flush blocks of assembled clips into standalone
// batch videos and publishes them, with sidecar subtitles, into the stitch
// manifest.
package batch
