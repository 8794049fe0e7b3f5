package romper

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with romper-specific field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses a text handler to stderr at info level.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{Logger: slog.New(handler)}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return &Logger{Logger: slog.New(slog.DiscardHandler)}
}

// WithBucket adds kit and voice fields.
func (l *Logger) WithBucket(b BucketKey) *Logger {
	return &Logger{Logger: l.Logger.With("kit", b.Kit, "voice", b.Voice)}
}

// WithOp adds an op field.
func (l *Logger) WithOp(op string) *Logger {
	return &Logger{Logger: l.Logger.With("op", op)}
}

// WithStore adds the store id.
func (l *Logger) WithStore(id string) *Logger {
	return &Logger{Logger: l.Logger.With("store", id)}
}

// LogOperation logs the outcome of a mutation.
func (l *Logger) LogOperation(ctx context.Context, op string, res *Result, err error) {
	if err != nil {
		l.ErrorContext(ctx, "operation failed",
			"op", op,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "operation completed",
		"op", op,
		"repositioned", len(res.Repositioned),
		"redistributed", len(res.Redistributed),
		"noop", res.NoOp,
	)
}

// LogHistory logs an undo or redo step.
func (l *Logger) LogHistory(ctx context.Context, action, op string, err error) {
	if err != nil {
		l.WarnContext(ctx, action+" failed",
			"op", op,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, action+" completed", "op", op)
}

// LogBackup logs a backup or restore-from-backup.
func (l *Logger) LogBackup(ctx context.Context, action string, id uint64, records int, err error) {
	if err != nil {
		l.ErrorContext(ctx, action+" failed",
			"id", id,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, action+" completed",
		"id", id,
		"records", records,
	)
}
