package clam

import (
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with clam-specific context.
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
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithCluster adds a cluster name field to the logger. The root cluster has
// the empty name and is logged as "root".
func (l *Logger) WithCluster(name string) *Logger {
	if name == "" {
		name = "root"
	}
	return &Logger{
		Logger: l.Logger.With("cluster", name),
	}
}

// WithDepth adds a tree depth field to the logger.
func (l *Logger) WithDepth(depth int) *Logger {
	return &Logger{
		Logger: l.Logger.With("depth", depth),
	}
}

// WithCardinality adds a point count field to the logger.
func (l *Logger) WithCardinality(n int) *Logger {
	return &Logger{
		Logger: l.Logger.With("cardinality", n),
	}
}

// LogBuild logs the outcome of a manifold build.
func (l *Logger) LogBuild(points, clusters int, err error) {
	if err != nil {
		l.Error("build failed",
			"points", points,
			"error", err,
		)
	} else {
		l.Info("build completed",
			"points", points,
			"clusters", clusters,
		)
	}
}

// LogPartition logs a single partition step.
func (l *Logger) LogPartition(name string, depth, children int) {
	if name == "" {
		name = "root"
	}
	l.Debug("cluster partitioned",
		"cluster", name,
		"depth", depth,
		"children", children,
	)
}

// LogSearch logs a search operation.
func (l *Logger) LogSearch(k, resultsFound int, err error) {
	if err != nil {
		l.Error("search failed",
			"k", k,
			"error", err,
		)
	} else {
		l.Debug("search completed",
			"k", k,
			"results", resultsFound,
		)
	}
}
