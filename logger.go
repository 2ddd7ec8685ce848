package vecforest

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with index-specific context.
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
	return &Logger{
		Logger: slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return &Logger{
		Logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})),
	}
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
			Level: slog.Level(1000), // Unreachable level
		})),
	}
}

// WithPath adds a path field to the logger.
func (l *Logger) WithPath(path string) *Logger {
	return &Logger{Logger: l.Logger.With("path", path)}
}

// WithDimension adds a dimension field to the logger.
func (l *Logger) WithDimension(dim int) *Logger {
	return &Logger{Logger: l.Logger.With("dimension", dim)}
}

// WithMetric adds a metric field to the logger.
func (l *Logger) WithMetric(metric string) *Logger {
	return &Logger{Logger: l.Logger.With("metric", metric)}
}

// LogAdd logs an add operation.
func (l *Logger) LogAdd(ctx context.Context, id int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "add failed",
			"id", id,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "add completed",
			"id", id,
		)
	}
}

// LogTree logs a finished tree. Verbose builds log at info level.
func (l *Logger) LogTree(ctx context.Context, verbose bool, slot, nodes int) {
	level := slog.LevelDebug
	if verbose {
		level = slog.LevelInfo
	}
	l.Log(ctx, level, "tree built",
		"tree", slot,
		"nodes", nodes,
	)
}

// LogBuild logs a build operation.
func (l *Logger) LogBuild(ctx context.Context, trees, nodes int, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "build failed",
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "build completed",
			"trees", trees,
			"nodes", nodes,
			"duration", duration,
		)
	}
}

// LogUnbuild logs the removal of all trees.
func (l *Logger) LogUnbuild(ctx context.Context, items int) {
	l.DebugContext(ctx, "index unbuilt",
		"items", items,
	)
}

// LogSearch logs a search operation.
func (l *Logger) LogSearch(ctx context.Context, k, resultsFound, visited int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "search failed",
			"k", k,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "search completed",
			"k", k,
			"results", resultsFound,
			"visited", visited,
		)
	}
}

// LogSave logs a save operation.
func (l *Logger) LogSave(ctx context.Context, path string, bytes int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "save failed",
			"path", path,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "index saved",
			"path", path,
			"bytes", bytes,
		)
	}
}

// LogLoad logs a load operation.
func (l *Logger) LogLoad(ctx context.Context, path string, nodes int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "load failed",
			"path", path,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "index loaded",
			"path", path,
			"nodes", nodes,
		)
	}
}

// LogPublish logs a publish or fetch of an index object.
func (l *Logger) LogPublish(ctx context.Context, op, name string, bytes int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, op+" failed",
			"name", name,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, op+" completed",
			"name", name,
			"bytes", bytes,
		)
	}
}
