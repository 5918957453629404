package main

import (
	"log/slog"
	"os"
)

// newLogger return a text logger on stderr. Verbose switches the
// bring-up and protocol details on.
func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
