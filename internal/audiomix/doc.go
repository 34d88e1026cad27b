// Package audiomix calibrates and applies the original-audio underlay
// beneath dubbed speech, including the conservative gap path.
package audiomix
