// Package textutil provides text fingerprinting and similarity scoring used
// to merge near-duplicate dialogue cues, plus filename sanitizing helpers.
package textutil
