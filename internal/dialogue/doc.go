// Package dialogue parses and normalizes raw subtitle cues into
// non-overlapping, minimum-duration dialogue windows on the source timeline.
package dialogue
