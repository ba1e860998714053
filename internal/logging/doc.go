// Package logging wires log/slog into the daemon with console and JSON
// handlers, multi-destination output, and helpers that keep attribute keys
// consistent across components.
package logging
