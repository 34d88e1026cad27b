// Package logging provides slog handlers for console and JSON output with a
// component-prefix convention shared by all subsystems.
package logging
