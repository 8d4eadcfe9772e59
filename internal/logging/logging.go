package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures the log file.
type Options struct {
	// Path is the log file; empty means mixtape.log in StateDir.
	Path       string
	Level      slog.Level
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
	// Console also receives records at Warn and above; nil disables it.
	Console io.Writer
}

// Setup creates a slog.Logger that writes to a size-rotated log file. The
// caller is responsible for closing the returned writer.
func Setup(opts Options) (*slog.Logger, io.Closer, error) {
	path := opts.Path
	if path == "" {
		stateDir, err := StateDir()
		if err != nil {
			return nil, nil, fmt.Errorf("state dir: %w", err)
		}
		path = filepath.Join(stateDir, "mixtape.log")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log dir: %w", err)
	}
	w := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   opts.Compress,
	}
	var handler slog.Handler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: opts.Level})
	if opts.Console != nil {
		handler = fanout{handler, slog.NewTextHandler(opts.Console, &slog.HandlerOptions{Level: slog.LevelWarn})}
	}
	return slog.New(handler), w, nil
}

// StateDir returns the path to the mixtape state directory (~/.config/mixtape/state)
func StateDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "mixtape", "state"), nil
}

// Discard returns a logger that drops everything, for tests and quiet runs.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}
