// Package notifications delivers pipeline events via ntfy.
//
// The default implementation publishes to the topic configured in config.toml
// and gracefully degrades to a no-op when notifications are disabled. The
// Progress adapter delivers events fire-and-forget so a slow or unreachable
// ntfy server can never stall the pipeline.
package notifications
