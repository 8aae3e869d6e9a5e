package regionmap

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/hupe1980/regionmap/filemap"
)

// Logger wraps slog.Logger with regionmap-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithPath adds the backing file path to the logger.
func (l *Logger) WithPath(path string) *Logger {
	return &Logger{
		Logger: l.Logger.With("path", path),
	}
}

// WithRegionSize adds the region size to the logger.
func (l *Logger) WithRegionSize(size int64) *Logger {
	return &Logger{
		Logger: l.Logger.With("region_size", size),
	}
}

// LogMap logs a region map. It runs on whichever goroutine performs the map.
// Regions a writer has not reached yet are logged at debug level only.
func (l *Logger) LogMap(position int64, length int, d time.Duration, err error) {
	switch {
	case err == nil:
		l.Debug("region mapped",
			"position", position,
			"length", length,
			"duration", d,
		)
	case filemap.IsRetryable(err):
		l.Debug("region not readable yet",
			"position", position,
			"length", length,
			"missing", filemap.IsMissing(err),
			"error", err,
		)
	default:
		l.Warn("map failed",
			"position", position,
			"length", length,
			"error", err,
		)
	}
}

// LogUnmap logs a region unmap.
func (l *Logger) LogUnmap(position int64, length int) {
	l.Debug("region unmapped",
		"position", position,
		"length", length,
	)
}

// LogTimeout logs a caller giving up on an asynchronous map.
func (l *Logger) LogTimeout(position int64, state SlotState, maxWait time.Duration) {
	l.Warn("map timed out",
		"position", position,
		"state", state.String(),
		"max_wait", maxWait,
	)
}

// LogSeal logs a rolled file that will receive no more writes.
func (l *Logger) LogSeal(index int64, path string) {
	l.Info("file sealed",
		"index", index,
		"path", path,
	)
}

// LogArchive logs the upload of a sealed file.
func (l *Logger) LogArchive(ctx context.Context, name string, size int64, d time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "archive failed",
			"name", name,
			"size", size,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "file archived",
			"name", name,
			"size", size,
			"duration", d,
		)
	}
}
