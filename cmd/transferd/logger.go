// logger.go - Structured logging for the transfer daemon
package main

import (
	"context"
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger builds the daemon's slog logger. Console output is text, the
// rotating log file gets JSON. An empty logFile disables file output.
func NewLogger(level string, logFile string) (*slog.Logger, io.Closer) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	console := slog.NewTextHandler(os.Stdout, opts)

	if logFile == "" {
		return slog.New(console), nil
	}

	rotator := &lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    50, // megabytes
		MaxBackups: 5,
		MaxAge:     30, // days
		Compress:   true,
	}
	file := slog.NewJSONHandler(rotator, opts)

	return slog.New(teeHandler{console: console, file: file}), rotator
}

// teeHandler fans every record out to the console and file handlers.
type teeHandler struct {
	console slog.Handler
	file    slog.Handler
}

func (t teeHandler) Enabled(ctx context.Context, lvl slog.Level) bool {
	return t.console.Enabled(ctx, lvl) || t.file.Enabled(ctx, lvl)
}

func (t teeHandler) Handle(ctx context.Context, rec slog.Record) error {
	if err := t.console.Handle(ctx, rec.Clone()); err != nil {
		return err
	}
	return t.file.Handle(ctx, rec)
}

func (t teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return teeHandler{console: t.console.WithAttrs(attrs), file: t.file.WithAttrs(attrs)}
}

func (t teeHandler) WithGroup(name string) slog.Handler {
	return teeHandler{console: t.console.WithGroup(name), file: t.file.WithGroup(name)}
}
