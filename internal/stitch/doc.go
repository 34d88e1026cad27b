// Package stitch joins published batch videos into the final dubbed file,
// validating the cheap concat tiers for frozen-frame defects before falling
// back to a re-encode.
package stitch
