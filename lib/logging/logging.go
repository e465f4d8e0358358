// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package logging builds the slog loggers used by pypiserver binaries.
//
// Format "auto" writes coloured, human-readable lines (via tint) when
// the output is a terminal and JSON otherwise, so a server started by
// hand is readable and the same server under systemd produces lines a
// log shipper can parse. "text" and "json" force one or the other.
//
// Library packages never build loggers; they accept a *slog.Logger in
// their Config and fall back to discarding output when it is nil.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"golang.org/x/term"
)

// Options selects the logger's level and format.
type Options struct {
	// Level is debug, info, warn or error. Empty means info.
	Level string

	// Format is auto, text or json. Empty means auto.
	Format string
}

// ParseLevel converts a level name to a slog.Level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q", name)
}

// New returns a logger writing to w. Terminal detection for "auto"
// only succeeds when w is an *os.File attached to a terminal.
func New(w io.Writer, options Options) (*slog.Logger, error) {
	level, err := ParseLevel(options.Level)
	if err != nil {
		return nil, err
	}

	format := options.Format
	if format == "" || format == "auto" {
		format = "json"
		if isTerminal(w) {
			format = "text"
		}
	}

	var handler slog.Handler
	switch format {
	case "text":
		handler = tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.TimeOnly,
			NoColor:    !isTerminal(w),
		})
	case "json":
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	default:
		return nil, fmt.Errorf("unknown log format %q", options.Format)
	}
	return slog.New(handler), nil
}

// NewCommandLogger returns an info-level logger on stderr in the auto
// format, for CLI commands that run before configuration is loaded.
func NewCommandLogger() *slog.Logger {
	logger, _ := New(os.Stderr, Options{})
	return logger
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	return ok && term.IsTerminal(int(file.Fd()))
}
