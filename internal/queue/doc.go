// Package queue persists dubbing jobs in SQLite so the CLI can enqueue work
// and the runner can claim, track, and retry it across restarts.
package queue
