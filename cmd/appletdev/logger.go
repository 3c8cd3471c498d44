package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/jpalmerr/appletdev/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

// newLogger creates the CLI logger described by cfg. Output goes to stderr,
// or to a rotated file when cfg.File is set. The returned close function
// flushes and closes that file.
func newLogger(cfg config.LogConfig) (*slog.Logger, func() error) {
	var out io.Writer = os.Stderr
	closeFn := func() error { return nil }

	if cfg.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		}
		out = rotator
		closeFn = rotator.Close
	}

	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(out, opts)), closeFn
	}
	return slog.New(slog.NewJSONHandler(out, opts)), closeFn
}
