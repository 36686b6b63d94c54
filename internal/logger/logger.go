package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Rotation defaults for per-stage process logs.
const (
	DefaultMaxSizeMB  = 10 // MB
	DefaultMaxBackups = 3  // number of backup files
	DefaultMaxAgeDays = 7  // days
)

// Config describes logging destinations for a supervised pipeline
// stage. When Dir is set, a stage named "xvfb" in session "ab12..." logs
// to Dir/ab12.xvfb.log. Rotation parameters follow lumberjack semantics.
type Config struct {
	Dir        string `mapstructure:"dir"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// Writer returns a rotating io.WriteCloser for the given session and
// stage, or nil when no log directory is configured (stage output then
// goes to /dev/null).
func (c Config) Writer(sessionID, stage string) io.WriteCloser {
	if c.Dir == "" {
		return nil
	}
	// Session IDs are long random tokens; a short prefix keeps file
	// names readable while staying unique in practice.
	short := sessionID
	if len(short) > 8 {
		short = short[:8]
	}
	return &lj.Logger{
		Filename:   filepath.Join(c.Dir, fmt.Sprintf("%s.%s.log", short, stage)),
		MaxSize:    valOr(c.MaxSizeMB, DefaultMaxSizeMB),
		MaxBackups: valOr(c.MaxBackups, DefaultMaxBackups),
		MaxAge:     valOr(c.MaxAgeDays, DefaultMaxAgeDays),
		Compress:   c.Compress,
	}
}

func valOr(v int, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// Setup installs the process-wide slog default. Level is one of
// debug/info/warn/error (case-insensitive); anything else means info.
func Setup(level string, color bool) {
	var lv slog.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		lv = slog.LevelDebug
	case "warn", "warning":
		lv = slog.LevelWarn
	case "error":
		lv = slog.LevelError
	default:
		lv = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lv}
	var h slog.Handler
	if color {
		h = NewColorTextHandler(os.Stderr, opts, true)
	} else {
		h = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(h))
}
