// Package logging builds the process logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options select the log destination and level.
type Options struct {
	// File enables JSON logs in a size-rotated file. Empty logs text to stderr.
	File  string
	Level string
	// MaxSizeMB, MaxBackups and MaxAgeDays tune rotation; zero keeps defaults.
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// New returns the logger and a closer for its output.
func New(o Options) (*slog.Logger, io.Closer) {
	hopts := &slog.HandlerOptions{Level: ParseLevel(o.Level)}
	if o.File == "" {
		return slog.New(slog.NewTextHandler(os.Stderr, hopts)), io.NopCloser(nil)
	}
	lj := &lumberjack.Logger{
		Filename:   o.File,
		MaxSize:    orDefault(o.MaxSizeMB, 20),
		MaxBackups: orDefault(o.MaxBackups, 5),
		MaxAge:     orDefault(o.MaxAgeDays, 28),
		Compress:   true,
	}
	return slog.New(slog.NewJSONHandler(lj, hopts)), lj
}

func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func orDefault(v, d int) int {
	if v <= 0 {
		return d
	}
	return v
}
