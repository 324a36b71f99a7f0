// Copyright (C) 2025 Petr Malik
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at <https://mozilla.org/MPL/2.0/>.

package runners

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/petmal/lwlltrial/pkg/logging"
	"github.com/rs/zerolog"
)

// ZerologLogger implements the logging.Logger interface on top of a zerolog.Logger.
type ZerologLogger struct {
	logger zerolog.Logger
	prefix string
}

// NewZerologLogger creates a new logging.Logger writing to logger.
func NewZerologLogger(logger zerolog.Logger) logging.Logger {
	return &ZerologLogger{
		logger: logger,
	}
}

// Message logs a message at the specified level with optional format arguments.
func (l *ZerologLogger) Message(ctx context.Context, level slog.Level, msg string, args ...any) {
	formattedMsg := fmt.Sprintf(msg, args...)
	formattedMsg = l.prefix + formattedMsg
	l.getEvent(level).Msg(formattedMsg)
}

// Error logs an error at the specified level with optional format arguments.
func (l *ZerologLogger) Error(ctx context.Context, level slog.Level, err error, msg string, args ...any) {
	formattedMsg := fmt.Sprintf(msg, args...)
	formattedMsg = l.prefix + formattedMsg
	l.getEvent(level).Err(err).Msg(formattedMsg)
}

// WithContext returns a new Logger that appends the specified context to the existing prefix.
func (l *ZerologLogger) WithContext(context string) logging.Logger {
	return &ZerologLogger{
		logger: l.logger,
		prefix: l.prefix + context,
	}
}

// getEvent returns a zerolog event for the given slog level.
func (l *ZerologLogger) getEvent(level slog.Level) *zerolog.Event {
	switch {
	case level < logging.LevelDebug:
		return l.logger.Trace()
	case level < logging.LevelInfo:
		return l.logger.Debug()
	case level < logging.LevelWarn:
		return l.logger.Info()
	case level < logging.LevelError:
		return l.logger.Warn()
	default:
		return l.logger.Error()
	}
}
