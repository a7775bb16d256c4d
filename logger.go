package termdict

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"
)

// Logger wraps slog.Logger with termdict-specific helpers.
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

// WithPath adds a path field to the logger.
func (l *Logger) WithPath(path string) *Logger {
	return &Logger{
		Logger: l.Logger.With("path", path),
	}
}

// LogBuildPhase logs the end of one build phase.
func (l *Logger) LogBuildPhase(ctx context.Context, phase string, entries uint64, duration time.Duration) {
	l.InfoContext(ctx, "build phase completed",
		"phase", phase,
		"entries", humanize.Comma(int64(entries)),
		"duration", duration,
	)
}

// LogBuild logs a finished build.
func (l *Logger) LogBuild(ctx context.Context, res BuildResult, err error) {
	if err != nil {
		l.ErrorContext(ctx, "build failed",
			"path", res.Path,
			"error", err,
		)
		return
	}
	attrs := []any{
		"path", res.Path,
		"terms", humanize.Comma(int64(res.Count)),
		"flags", res.Flags.String(),
		"duration", res.Duration,
	}
	if res.SharedPath != "" {
		attrs = append(attrs, "shared", humanize.Comma(int64(res.SharedCount)))
	}
	if res.Overflowed > 0 {
		l.WarnContext(ctx, "build completed with shared-id overflow",
			append(attrs, "overflowed", res.Overflowed)...)
		return
	}
	l.InfoContext(ctx, "build completed", attrs...)
}

// LogOpen logs a dictionary open.
func (l *Logger) LogOpen(ctx context.Context, path string, kind Kind, count int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "open failed",
			"path", path,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "dictionary opened",
			"path", path,
			"kind", kind.String(),
			"count", count,
		)
	}
}
