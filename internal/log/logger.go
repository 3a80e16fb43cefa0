// Package log provides structured logging on top of log/slog.
package log

import (
	"context"
	stderrors "errors"
	"log/slog"

	"github.com/nauru-yvy/nauru/internal/errors"
)

// Logger wraps a slog.Logger together with the Config that built it.
type Logger struct {
	slog   *slog.Logger
	config Config
}

// attrError is implemented by errors that carry their own log attributes.
type attrError interface {
	LogAttrs() []any
}

// New creates a Logger from config.
func New(config Config) *Logger {
	opts := &slog.HandlerOptions{
		Level:     config.Level.ToSlogLevel(),
		AddSource: config.AddSource,
	}

	var handler slog.Handler
	if config.Format == FormatText {
		handler = slog.NewTextHandler(config.Output, opts)
	} else {
		handler = slog.NewJSONHandler(config.Output, opts)
	}

	l := slog.New(handler)
	if config.ServiceName != "" {
		l = l.With("service", config.ServiceName)
	}
	if config.ServiceVersion != "" {
		l = l.With("version", config.ServiceVersion)
	}

	return &Logger{slog: l, config: config}
}

// Nop returns a Logger that discards everything.
func Nop() *Logger {
	return New(Discard())
}

// FromSlog wraps an existing slog.Logger. A nil l yields Nop.
func FromSlog(l *slog.Logger) *Logger {
	if l == nil {
		return Nop()
	}
	return &Logger{slog: l}
}

// With returns a Logger that adds args to every record.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{slog: l.slog.With(args...), config: l.config}
}

// WithGroup returns a Logger that nests subsequent attributes under name.
func (l *Logger) WithGroup(name string) *Logger {
	return &Logger{slog: l.slog.WithGroup(name), config: l.config}
}

// WithError attaches err. Coded errors contribute error_code and suggestions;
// errors implementing LogAttrs contribute their own attributes.
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}

	var coded *errors.Error
	if stderrors.As(err, &coded) {
		args := []any{"error", coded.Message, "error_code", string(coded.Code)}
		if len(coded.Suggestions) > 0 {
			args = append(args, "suggestions", coded.Suggestions)
		}
		if coded.Cause != nil {
			args = append(args, "cause", coded.Cause.Error())
		}
		return l.With(args...)
	}

	var ae attrError
	if stderrors.As(err, &ae) {
		return l.With(append([]any{"error", err.Error()}, ae.LogAttrs()...)...)
	}

	return l.With("error", err.Error())
}

func (l *Logger) Debug(msg string, args ...any) { l.slog.Debug(msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.slog.Info(msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.slog.Warn(msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.slog.Error(msg, args...) }

func (l *Logger) DebugContext(ctx context.Context, msg string, args ...any) {
	l.slog.DebugContext(ctx, msg, args...)
}

func (l *Logger) InfoContext(ctx context.Context, msg string, args ...any) {
	l.slog.InfoContext(ctx, msg, args...)
}

func (l *Logger) WarnContext(ctx context.Context, msg string, args ...any) {
	l.slog.WarnContext(ctx, msg, args...)
}

func (l *Logger) ErrorContext(ctx context.Context, msg string, args ...any) {
	l.slog.ErrorContext(ctx, msg, args...)
}

// LogError logs err at error level with WithError's attributes.
func (l *Logger) LogError(ctx context.Context, err error) {
	if err == nil {
		return
	}
	l.WithError(err).ErrorContext(ctx, "operation failed")
}

// Enabled reports whether records at level would be emitted.
func (l *Logger) Enabled(ctx context.Context, level Level) bool {
	return l.slog.Enabled(ctx, level.ToSlogLevel())
}

// Config returns the configuration the logger was built from.
func (l *Logger) Config() Config {
	return l.config
}
