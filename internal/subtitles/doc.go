// Package subtitles reads and writes SubRip cue tracks, shifts and merges
// per-batch sidecars onto the stitched timeline, and defines the renderer
// contract fed by the scheduled output timeline.
package subtitles
