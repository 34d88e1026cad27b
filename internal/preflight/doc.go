// Package preflight validates workspace directories and external binaries
// before the pipeline starts work.
package preflight
