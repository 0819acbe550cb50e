// Package logging builds the slog loggers used across winpilot.
package logging

import (
	"io"
	"log/slog"
	"strings"
)

// Options selects the log destination. An empty File logs text to the
// fallback writer (normally stderr); otherwise JSON goes to a rotating file.
type Options struct {
	Level     string
	File      string
	MaxSizeMB int
	MaxFiles  int
}

// Logger is a configured logger plus the function that releases its file.
type Logger struct {
	*slog.Logger
	Close func() error
	Path  string
}

// Nop discards everything.
func Nop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

// New builds a logger from opts. The returned Close is never nil.
func New(opts Options, fallback io.Writer) (Logger, error) {
	level := ParseLevel(opts.Level)
	if strings.TrimSpace(opts.File) == "" {
		if fallback == nil {
			fallback = io.Discard
		}
		handler := slog.NewTextHandler(fallback, &slog.HandlerOptions{Level: level})
		return Logger{Logger: slog.New(handler), Close: func() error { return nil }}, nil
	}

	maxSize := opts.MaxSizeMB
	if maxSize <= 0 {
		maxSize = 10
	}
	file, err := OpenRotatingFile(opts.File, maxSize, opts.MaxFiles)
	if err != nil {
		return Logger{Logger: Nop(), Close: func() error { return nil }}, err
	}
	handler := slog.NewJSONHandler(file, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: redactAttr,
	})
	return Logger{Logger: slog.New(handler), Close: file.Close, Path: opts.File}, nil
}

// ParseLevel maps a config level name to a slog level. Unknown names mean
// info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func redactAttr(_ []string, a slog.Attr) slog.Attr {
	if isSecretKey(a.Key) && a.Value.Kind() == slog.KindString {
		return slog.String(a.Key, RedactValue(a.Value.String()))
	}
	return a
}
