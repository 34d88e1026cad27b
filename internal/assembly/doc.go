// Package assembly cuts the source video into per-sentence and per-gap clips
// and attaches the mixed dubbed audio, with escalating fallbacks against
// transcoder failures.
package assembly
