// © 2024 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package logger provides a context-aware logger built on [slog].
package logger

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/lmittmann/tint"
)

type ctxKey string

const loggerKey ctxKey = "logger"

// Logger is an [slog.Logger] with an adjustable level.
type Logger struct {
	*slog.Logger
	// Level controls which records are written. It starts at LevelInfo.
	Level *slog.LevelVar
}

// NewConsole creates a Logger that writes human-readable records to w.
// Colors are emitted only when color is true.
func NewConsole(w io.Writer, color bool) *Logger {
	level := new(slog.LevelVar)
	return &Logger{
		Logger: slog.New(tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.TimeOnly,
			NoColor:    !color,
		})),
		Level: level,
	}
}

// Err returns an attribute for err, rendered in red on color terminals.
func Err(err error) slog.Attr { return tint.Err(err) }

var defaultLogger = &Logger{
	Logger: slog.New(slog.DiscardHandler),
	Level:  new(slog.LevelVar),
}

// Put returns a new context with the provided [Logger].
func Put(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// Get retrieves the [Logger] from the context.
//
// If the context has no [Logger], it returns a default [Logger] that discards all
// messages.
func Get(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerKey).(*Logger); ok {
		return l
	}
	return defaultLogger
}

// LevelVar retrieves the [slog.LevelVar] of the [Logger] in the context.
func LevelVar(ctx context.Context) *slog.LevelVar { return Get(ctx).Level }

// Debug logs a debug message.
func Debug(ctx context.Context, msg string, attrs ...slog.Attr) {
	Get(ctx).LogAttrs(ctx, slog.LevelDebug, msg, attrs...)
}

// Info logs an info message.
func Info(ctx context.Context, msg string, attrs ...slog.Attr) {
	Get(ctx).LogAttrs(ctx, slog.LevelInfo, msg, attrs...)
}

// Warn logs a warning message.
func Warn(ctx context.Context, msg string, attrs ...slog.Attr) {
	Get(ctx).LogAttrs(ctx, slog.LevelWarn, msg, attrs...)
}

// Error logs an error message.
func Error(ctx context.Context, msg string, attrs ...slog.Attr) {
	Get(ctx).LogAttrs(ctx, slog.LevelError, msg, attrs...)
}
