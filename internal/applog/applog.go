// Package applog wires up the supervisor's own diagnostic logger: the
// slog-based stream the CLI and HTTP layer emit operational lines to,
// distinct from the per-entry Log Writer that captures child process
// output.
package applog

import (
	"io"
	"log/slog"
	"os"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Default rotation parameters, mirrored from the teacher's per-process log
// config since the supervisor's own diagnostics deserve the same treatment.
const (
	DefaultMaxSizeMB  = 10
	DefaultMaxBackups = 3
	DefaultMaxAgeDays = 7
)

// Config describes where diagnostic logging goes. FilePath is optional; if
// empty, only the colored stderr stream is used.
type Config struct {
	Level      slog.Level
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// New builds the diagnostics logger described by cfg. Terminal output is
// colorized; the optional rotating file sink is plain text so rotated
// files stay greppable.
func New(cfg Config) (*slog.Logger, io.Closer, error) {
	opts := &slog.HandlerOptions{Level: cfg.Level}
	stderrHandler := newColorTextHandler(os.Stderr, opts)

	if cfg.FilePath == "" {
		return slog.New(stderrHandler), noopCloser{}, nil
	}

	fileSink := &lj.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    valOr(cfg.MaxSizeMB, DefaultMaxSizeMB),
		MaxBackups: valOr(cfg.MaxBackups, DefaultMaxBackups),
		MaxAge:     valOr(cfg.MaxAgeDays, DefaultMaxAgeDays),
		Compress:   cfg.Compress,
	}
	fileHandler := slog.NewTextHandler(fileSink, opts)

	handler := newMultiHandler(stderrHandler, fileHandler)
	return slog.New(handler), fileSink, nil
}

func valOr(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

type noopCloser struct{}

func (noopCloser) Close() error { return nil }
