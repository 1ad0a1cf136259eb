package logger

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Default logging configuration constants
const (
	DefaultMaxSizeMB  = 10 // MB
	DefaultMaxBackups = 3  // number of backup files
	DefaultMaxAgeDays = 7  // days
)

const (
	FormatText = "text"
	FormatJSON = "json"
)

// FileConfig enables a rotating log file next to the console output.
// Rotation parameters follow lumberjack semantics.
type FileConfig struct {
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`  // megabytes before rotation (default 10)
	MaxBackups int    `mapstructure:"max_backups"`  // number of backups to keep (default 3)
	MaxAgeDays int    `mapstructure:"max_age_days"` // days to keep (default 7)
	Compress   bool   `mapstructure:"compress"`     // Gzip rotated files
}

// Config describes how diagnostics are emitted.
type Config struct {
	Level  string     `mapstructure:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Format string     `mapstructure:"format" validate:"omitempty,oneof=text json"`
	Color  bool       `mapstructure:"color"`
	File   FileConfig `mapstructure:"file"`
}

// ParseLevel maps a level name to a slog.Level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// Writer returns the rotating file writer, or nil when no path is set.
func (c FileConfig) Writer() io.WriteCloser {
	if c.Path == "" {
		return nil
	}
	return &lj.Logger{
		Filename:   c.Path,
		MaxSize:    valOr(c.MaxSizeMB, DefaultMaxSizeMB),
		MaxBackups: valOr(c.MaxBackups, DefaultMaxBackups),
		MaxAge:     valOr(c.MaxAgeDays, DefaultMaxAgeDays),
		Compress:   c.Compress,
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New builds a logger writing to console and, when configured, to the
// rotating file as well. The returned closer releases the file.
func New(cfg Config, console io.Writer) (*slog.Logger, io.Closer, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}
	opts := &slog.HandlerOptions{Level: level}

	var closer io.Closer = nopCloser{}
	out := console
	if fw := cfg.File.Writer(); fw != nil {
		closer = fw
		if console == nil {
			out = fw
		} else {
			out = io.MultiWriter(console, fw)
		}
	}
	if out == nil {
		out = io.Discard
	}

	var h slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "", FormatText:
		// escape codes only make sense on a console without a file copy
		if cfg.Color && cfg.File.Path == "" {
			h = NewColorTextHandler(out, opts, false)
		} else {
			h = slog.NewTextHandler(out, opts)
		}
	case FormatJSON:
		h = slog.NewJSONHandler(out, opts)
	default:
		_ = closer.Close()
		return nil, nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
	return slog.New(h), closer, nil
}

func valOr(v int, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
