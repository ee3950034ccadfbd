// Package logging wraps log/slog with the level names the rest of this
// module's configuration uses.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

var global *slog.Logger

// Init configures the global logger at the given level ("debug", "info",
// "warn", "error") writing to w. Pass nil for w to use os.Stderr.
func Init(level string, w io.Writer) error {
	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "info":
		slogLevel = slog.LevelInfo
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		return fmt.Errorf("logging: invalid level %q", level)
	}
	if w == nil {
		w = os.Stderr
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: slogLevel})
	global = slog.New(handler)
	slog.SetDefault(global)
	return nil
}

// Get returns the global logger, falling back to slog.Default if Init was
// never called.
func Get() *slog.Logger {
	if global == nil {
		return slog.Default()
	}
	return global
}

// For returns a logger scoped to a component name, e.g. "recorder" or
// "metronome", via a "component" attribute.
func For(component string) *slog.Logger {
	return Get().With("component", component)
}
