// Copyright (C) 2025 Petr Malik
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at <https://mozilla.org/MPL/2.0/>.

// Package logging provides a structured logging interface compatible with slog
// levels and the log level names accepted on the LwLLTrial command line.
package logging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Common logging levels for structured logging.
const (
	LevelTrace = slog.Level(-8) // most verbose
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError // least verbose
)

// UnknownLogValue is the placeholder text used when logging nil or unknown values.
const UnknownLogValue = "<unknown>"

// ErrUnknownLevel is returned when a log level name is not recognized.
var ErrUnknownLevel = errors.New("unknown log level")

// levelNames lists the accepted level names in order of decreasing verbosity.
var levelNames = []struct {
	name  string
	level slog.Level
}{
	{"DEBUG", LevelDebug},
	{"INFO", LevelInfo},
	{"WARNING", LevelWarn},
	{"ERROR", LevelError},
}

// Logger defines a generic logging interface following slog style with log levels.
type Logger interface {
	// Message logs a message at the specified level with optional format arguments.
	Message(ctx context.Context, level slog.Level, msg string, args ...any)

	// Error logs an error at the specified level with optional format arguments.
	Error(ctx context.Context, level slog.Level, err error, msg string, args ...any)

	// WithContext returns a new Logger that appends the specified context to the existing prefix.
	// The original logger is left untouched, so components can scope their messages
	// (e.g. "sample: object_detection: ") without affecting their callers.
	WithContext(context string) Logger
}

// LevelNames returns the level names accepted by ParseLevel.
func LevelNames() []string {
	names := make([]string, 0, len(levelNames))
	for _, l := range levelNames {
		names = append(names, l.name)
	}
	return names
}

// ParseLevel converts a command line level name (DEBUG, INFO, WARNING, ERROR) into a slog level.
// Names are matched exactly; anything else yields ErrUnknownLevel.
func ParseLevel(name string) (slog.Level, error) {
	for _, l := range levelNames {
		if l.name == name {
			return l.level, nil
		}
	}
	return LevelInfo, fmt.Errorf("%w: expected one of [%s], but got %q", ErrUnknownLevel, strings.Join(LevelNames(), " "), name)
}

// FormatLogText formats a slice of strings for logging with
// tab indentation and newline separation.
// If the slice is empty, it returns a tab-indented placeholder value.
func FormatLogText(lines []string) string {
	if len(lines) > 0 {
		return "\t" + strings.Join(lines, "\n\t")
	}
	return "\t" + UnknownLogValue
}
