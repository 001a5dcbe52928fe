// Package xlog sets up the structured logger shared by the loader
// pipeline, cmd/loaderbench, and tests. Grounded on the
// slog.New(slog.NewJSONHandler(...)) + slog.SetDefault setup in
// orion-prototipe's cmd/oriond/main.go — the only structured logging
// pattern present anywhere in the retrieval pack.
package xlog

import (
	"io"
	"log/slog"
	"os"
)

// New builds a JSON slog.Logger writing to w (os.Stdout by default when w
// is nil), at debug level iff debug is true.
func New(w io.Writer, debug bool) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// Nop returns a logger that discards all output, used as the default for
// components that don't receive an explicit logger (e.g. in unit tests).
func Nop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
