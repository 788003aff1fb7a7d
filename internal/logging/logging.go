// Package logging builds the slog loggers used across the tool. Stdout is
// reserved for command output; logs go to stderr and, when configured, to
// a log file as well.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Env vars controlling the default setup.
const (
	// LevelVar selects the stderr log level (debug|info|warn|error).
	LevelVar = "CARGO_FOR_EACH_LOG"
	// DirVar, when set, enables an additional file sink in that directory.
	DirVar = "CARGO_FOR_EACH_LOG_DIR"
	// FileVar overrides the log file name inside DirVar.
	FileVar = "CARGO_FOR_EACH_LOG_FILE"

	defaultLogFile = "cargo_for_each.log"
)

// Options configures a logger.
type Options struct {
	Level     string
	Writer    io.Writer
	Component string
}

// New returns a text-handler slog logger. A non-empty component is added
// as a fixed attribute.
func New(opts Options) *slog.Logger {
	writer := opts.Writer
	if writer == nil {
		writer = os.Stderr
	}
	h := slog.NewTextHandler(writer, &slog.HandlerOptions{Level: ParseLevel(opts.Level)})
	lg := slog.New(h)
	if strings.TrimSpace(opts.Component) != "" {
		lg = lg.With("component", strings.TrimSpace(opts.Component))
	}
	return lg
}

// Setup builds the process-wide root logger from the environment. The
// returned closer releases the optional log file and is safe to call when
// no file sink was opened.
func Setup() (*slog.Logger, func() error, error) {
	level := os.Getenv(LevelVar)
	if level == "" {
		level = "warn"
	}

	writer := io.Writer(os.Stderr)
	closer := func() error { return nil }

	if dir := os.Getenv(DirVar); dir != "" {
		name := os.Getenv(FileVar)
		if name == "" {
			name = defaultLogFile
		}
		f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file: %w", err)
		}
		writer = io.MultiWriter(os.Stderr, f)
		closer = f.Close
	}

	return New(Options{Level: level, Writer: writer}), closer, nil
}

// ParseLevel maps a level name to a slog level, defaulting to warn.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}
