package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Rotation defaults, lumberjack semantics.
const (
	DefaultMaxSizeMB  = 10
	DefaultMaxBackups = 3
	DefaultMaxAgeDays = 7
)

// Config describes the daemon's own log output. When File is set, log lines
// go to a rotating file; otherwise to stderr (with color when enabled).
type Config struct {
	Level      string `mapstructure:"level"`       // debug|info|warn|error (default info)
	Color      bool   `mapstructure:"color"`       // ANSI colors for terminal output
	File       string `mapstructure:"file"`        // path of the log file; empty = stderr
	MaxSizeMB  int    `mapstructure:"max_size_mb"` // megabytes before rotation
	MaxBackups int    `mapstructure:"max_backups"` // rotated files to keep
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"` // gzip rotated files
}

// ParseLevel maps a config string to a slog level, defaulting to Info.
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

// Writer returns the destination for log output. The returned closer is nil
// when logging to stderr.
func (c Config) Writer() (io.Writer, io.Closer) {
	if c.File == "" {
		return os.Stderr, nil
	}
	w := &lj.Logger{
		Filename:   c.File,
		MaxSize:    valOr(c.MaxSizeMB, DefaultMaxSizeMB),
		MaxBackups: valOr(c.MaxBackups, DefaultMaxBackups),
		MaxAge:     valOr(c.MaxAgeDays, DefaultMaxAgeDays),
		Compress:   c.Compress,
	}
	return w, w
}

// NewSlogger builds a slog.Logger per the config. File output always uses
// the plain text handler; color is terminal-only.
func (c Config) NewSlogger() (*slog.Logger, io.Closer) {
	w, closer := c.Writer()
	opts := &slog.HandlerOptions{Level: ParseLevel(c.Level)}
	var h slog.Handler
	if c.Color && c.File == "" {
		h = NewColorTextHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h), closer
}

func valOr(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
