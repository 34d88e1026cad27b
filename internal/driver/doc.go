// Package driver orchestrates the dub pipeline end to end: dialogue
// normalization, parallel translation and synthesis, timeline scheduling,
// underlay mixing, clip assembly, pooled batch encoding, and final stitching.
package driver
