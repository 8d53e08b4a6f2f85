// Package ctxlog carries a *slog.Logger through a context.Context and
// picks between two renderings: a colorized, human-readable form on an
// interactive terminal, and newline-delimited JSON otherwise. The log
// level is read once at startup from an environment variable derived
// from the running executable's name (e.g. "seqpipe" yields
// SEQPIPE_LOG_LEVEL), which can be DEBUG, INFO, WARN, or ERROR;
// anything else, including unset, is WARN.
package ctxlog

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/term"
)

type loggerKey struct{}

// LevelVar is the process-wide log level. It is set from the
// environment at init time; callers may change it afterward with
// LevelVar.Set.
var LevelVar = &slog.LevelVar{}

// DefaultLogger renders to stderr: colorized when stderr is a
// terminal, plain JSON otherwise.
var DefaultLogger = slog.New(newDefaultHandler(os.Stderr))

// JSONLogger always renders newline-delimited JSON, regardless of
// whether stderr is a terminal; useful for machine consumption.
var JSONLogger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
	Level: LevelVar,
}))

func init() {
	LevelVar.Set(logLevelFromEnv())
}

func newDefaultHandler(w *os.File) slog.Handler {
	opts := &slog.HandlerOptions{Level: LevelVar}

	if term.IsTerminal(int(w.Fd())) {
		return NewPretty(opts, WithColor(), WithDestinationWriter(w))
	}

	return slog.NewJSONHandler(w, opts)
}

// New returns a context carrying logger. A nil logger falls back to
// DefaultLogger.
func New(ctx context.Context, logger *slog.Logger) context.Context {
	if logger == nil {
		logger = DefaultLogger
	}

	return context.WithValue(ctx, loggerKey{}, logger)
}

// Logger returns the logger carried by ctx, or DefaultLogger if none
// was attached.
func Logger(ctx context.Context) *slog.Logger {
	logger, ok := ctx.Value(loggerKey{}).(*slog.Logger)
	if !ok || logger == nil {
		return DefaultLogger
	}

	return logger
}

// Info logs msg at info level using ctx's logger.
func Info(ctx context.Context, msg string, args ...any) {
	Logger(ctx).Info(msg, args...)
}

// Debug logs msg at debug level using ctx's logger.
func Debug(ctx context.Context, msg string, args ...any) {
	Logger(ctx).Debug(msg, args...)
}

// Warn logs msg at warn level using ctx's logger.
func Warn(ctx context.Context, msg string, args ...any) {
	Logger(ctx).Warn(msg, args...)
}

// Error logs msg at error level using ctx's logger.
func Error(ctx context.Context, msg string, args ...any) {
	Logger(ctx).Error(msg, args...)
}

func logLevelFromEnv() slog.Level {
	exec, _ := os.Executable()
	exec = filepath.Base(exec)

	if ext := filepath.Ext(exec); ext == ".exe" {
		exec = exec[:len(exec)-len(ext)]
	}

	envName := strings.ToUpper(exec) + "_LOG_LEVEL"

	switch os.Getenv(envName) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}
