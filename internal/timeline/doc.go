// Package timeline computes gap-preserving output timelines sized to
// measured synthesized-audio durations.
package timeline
