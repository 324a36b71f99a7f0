// Copyright (C) 2025 Petr Malik
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at <https://mozilla.org/MPL/2.0/>.

package testutils

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/petmal/lwlltrial/pkg/logging"
	"github.com/rs/zerolog"
)

// TestLogger is a logging.Logger for tests. Messages go through the test writer
// so they show up next to the failing test, and are also kept in memory so tests
// can assert on what was logged.
type TestLogger struct {
	logger   zerolog.Logger
	prefix   string
	messages *messageLog
}

type messageLog struct {
	mu    sync.Mutex
	lines []string
}

func (l *messageLog) add(line string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, line)
}

// NewTestLogger creates a new TestLogger that outputs to the test framework.
// Log messages will be properly associated with the test and displayed in test output.
func NewTestLogger(t *testing.T) *TestLogger {
	return &TestLogger{
		logger:   zerolog.New(zerolog.NewTestWriter(t)).Level(zerolog.TraceLevel),
		messages: &messageLog{},
	}
}

// getEvent maps slog levels to zerolog events.
func (tl *TestLogger) getEvent(level slog.Level) *zerolog.Event {
	switch {
	case level < slog.LevelDebug:
		return tl.logger.Trace()
	case level < slog.LevelInfo:
		return tl.logger.Debug()
	case level < slog.LevelWarn:
		return tl.logger.Info()
	case level < slog.LevelError:
		return tl.logger.Warn()
	default:
		return tl.logger.Error()
	}
}

// Message logs a message at the specified level with optional formatting arguments.
func (tl *TestLogger) Message(ctx context.Context, level slog.Level, msg string, args ...any) {
	formattedMsg := fmt.Sprintf(msg, args...)
	formattedMsg = tl.prefix + formattedMsg
	tl.getEvent(level).Msg(formattedMsg)
	tl.messages.add(formattedMsg)
}

// Error logs an error message at the specified level with optional formatting arguments.
func (tl *TestLogger) Error(ctx context.Context, level slog.Level, err error, msg string, args ...any) {
	formattedMsg := fmt.Sprintf(msg, args...)
	formattedMsg = tl.prefix + formattedMsg
	tl.getEvent(level).Err(err).Msg(formattedMsg)
	tl.messages.add(formattedMsg)
}

// WithContext returns a new logger with additional context.
// The context string will be prepended to all log messages from the returned logger.
func (tl *TestLogger) WithContext(context string) logging.Logger {
	newPrefix := tl.prefix + context
	return &TestLogger{
		logger:   tl.logger,
		prefix:   newPrefix,
		messages: tl.messages,
	}
}

// Messages returns every message logged so far, including messages of derived loggers.
func (tl *TestLogger) Messages() []string {
	tl.messages.mu.Lock()
	defer tl.messages.mu.Unlock()
	return append([]string(nil), tl.messages.lines...)
}
