// Package synth invokes the external speech synthesis helper that renders
// translated dialogue lines as audio.
package synth
