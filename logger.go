package supers

import (
	"log/slog"
	"os"
	"time"

	"github.com/iwanowww/supers/table"
)

// Logger wraps slog.Logger with build-tracing helpers.
//
// Logging happens only on the build path; subtype checks never log.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a Logger with the given handler.
// If handler is nil, a text handler to stderr at Info level is used.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{Logger: slog.New(handler)}
}

// NewTextLogger creates a Logger with human-readable output at the given level.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewJSONLogger creates a Logger with JSON output at the given level.
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NoopLogger creates a Logger that discards all output.
func NoopLogger() *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // unreachable level
	}))
}

// WithType adds a type name field to the logger.
func (l *Logger) WithType(name string) *Logger {
	return &Logger{Logger: l.Logger.With("type", name)}
}

// LogBuild logs the outcome of one table build.
func (l *Logger) LogBuild(name string, secondaries int, res table.BuildResult, elapsed time.Duration) {
	l.Debug("secondary supertype table built",
		"type", name,
		"secondaries", secondaries,
		"table_size", res.Stats.Size,
		"tail", res.Stats.Tail,
		"attempts", res.Attempts,
		"elapsed", elapsed,
	)
}

// LogArchiveSave logs the outcome of an archive export.
func (l *Logger) LogArchiveSave(name string, types int, bytes int64, err error) {
	if err != nil {
		l.Error("archive save failed", "archive", name, "error", err)
		return
	}
	l.Info("archive saved", "archive", name, "types", types, "bytes", bytes)
}

// LogArchiveLoad logs the outcome of an archive import.
func (l *Logger) LogArchiveLoad(name string, types int, err error) {
	if err != nil {
		l.Error("archive load failed", "archive", name, "error", err)
		return
	}
	l.Info("archive loaded", "archive", name, "types", types)
}
