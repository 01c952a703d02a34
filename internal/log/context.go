package log

import (
	"context"
	"log/slog"
	"time"
)

// ContextKey type for context keys
type ContextKey string

// LoggerContextKey is the context key for the logger
const LoggerContextKey ContextKey = "logger"

// NewContext returns a copy of ctx carrying logger.
func NewContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, LoggerContextKey, logger)
}

// FromContext extracts a logger from ctx, falling back to the slog default.
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(LoggerContextKey).(*Logger); ok {
		return logger
	}
	return &Logger{
		Logger:    slog.Default(),
		component: "unknown",
	}
}

// StructuredLogger provides run-level logging helpers
type StructuredLogger struct {
	logger *Logger
}

func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{logger: logger}
}

// LogRunStart logs the start of a report run
func (sl *StructuredLogger) LogRunStart(ctx context.Context, runID, kind, today string) {
	fields := NewFields().
		WithRun(runID, kind).
		WithOperation(OpStartup)
	fields[FieldToday] = today
	sl.logger.InfoContext(ctx, "Report run started", fields.ToSlice()...)
}

// LogRunEnd logs the outcome of a report run. Failed runs log at error level.
func (sl *StructuredLogger) LogRunEnd(ctx context.Context, runID, kind string, summaryRows, trendRows int, elapsed time.Duration, err error) {
	level := slog.LevelInfo
	if err != nil {
		level = slog.LevelError
	}
	fields := NewFields().
		WithRun(runID, kind).
		WithError(err)
	fields[FieldDuration] = elapsed.Milliseconds()
	fields[FieldSuccess] = err == nil
	fields["summary_rows"] = summaryRows
	fields["trend_rows"] = trendRows

	sl.logger.Logger.Log(ctx, level, "Report run completed", fields.ToSlice()...)
}

// LogError logs an error with structured context
func (sl *StructuredLogger) LogError(ctx context.Context, msg string, err error, component string, operation string, fields LogFields) {
	if fields == nil {
		fields = NewFields()
	}
	allFields := fields.
		WithError(err).
		WithOperation(operation)

	logger := sl.logger
	if component != "" && component != logger.Component() {
		logger = logger.WithComponent(component)
	}
	logger.ErrorContext(ctx, msg, allFields.ToSlice()...)
}
