// Package config loads, normalizes, and validates dubstitch configuration
// from TOML files.
package config
