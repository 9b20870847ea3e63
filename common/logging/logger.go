package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
)

type ctxKey int

const (
	partitionKey ctxKey = iota
	batchKey
)

// Logger wraps slog.Logger to provide context-aware structured logging.
// It adds the partition and batch ids stored in the context.
type Logger struct {
	*slog.Logger
}

// New creates a new Logger with the specified log level and format.
// format can be "json" or "text" (default is json).
func New(level slog.Level, format string) *Logger {
	return NewWriter(os.Stdout, level, format)
}

// NewWriter is New writing to w. The CLI logs to stderr so command output
// stays parseable.
func NewWriter(w io.Writer, level slog.Level, format string) *Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: level,
		// Add source location for errors and above
		AddSource: level <= slog.LevelError,
	}

	switch format {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
	}
}

// Default returns the default logger (uses slog.Default).
func Default() *Logger {
	return &Logger{Logger: slog.Default()}
}

// WithPartition stores the partition id being processed.
func WithPartition(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, partitionKey, id)
}

// PartitionFrom returns the partition id stored by WithPartition.
func PartitionFrom(ctx context.Context) string {
	id, _ := ctx.Value(partitionKey).(string)
	return id
}

// WithBatch stores the id of the batch being processed.
func WithBatch(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, batchKey, id)
}

// BatchFrom returns the batch id stored by WithBatch.
func BatchFrom(ctx context.Context) string {
	id, _ := ctx.Value(batchKey).(string)
	return id
}

// WithContext returns a logger carrying the partition and batch ids found
// in ctx.
func (l *Logger) WithContext(ctx context.Context) *slog.Logger {
	logger := l.Logger
	if id := PartitionFrom(ctx); id != "" {
		logger = logger.With(Partition(id))
	}
	if id := BatchFrom(ctx); id != "" {
		logger = logger.With(slog.String(FieldBatch, id))
	}
	return logger
}

// InfoContext logs at Info level with context-aware fields.
func (l *Logger) InfoContext(ctx context.Context, msg string, args ...any) {
	l.WithContext(ctx).InfoContext(ctx, msg, args...)
}

// WarnContext logs at Warn level with context-aware fields.
func (l *Logger) WarnContext(ctx context.Context, msg string, args ...any) {
	l.WithContext(ctx).WarnContext(ctx, msg, args...)
}

// ErrorContext logs at Error level with context-aware fields.
func (l *Logger) ErrorContext(ctx context.Context, msg string, args ...any) {
	l.WithContext(ctx).ErrorContext(ctx, msg, args...)
}

// DebugContext logs at Debug level with context-aware fields.
func (l *Logger) DebugContext(ctx context.Context, msg string, args ...any) {
	l.WithContext(ctx).DebugContext(ctx, msg, args...)
}

// With returns a new logger with the given attributes added.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// WithGroup returns a new logger with the given group name.
func (l *Logger) WithGroup(name string) *Logger {
	return &Logger{Logger: l.Logger.WithGroup(name)}
}

// ParseLevel converts a string log level to slog.Level.
// Valid values: "debug", "info", "warn", "error".
// Returns slog.LevelInfo for invalid values.
func ParseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetDefault sets the default logger for the application.
// This affects both slog.Default() and log package functions.
func SetDefault(l *Logger) {
	slog.SetDefault(l.Logger)
}
