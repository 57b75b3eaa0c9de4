package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/nerrad567/catenis-emulator/internal/infrastructure/config"
)

// Sink is the single logging interface every emulator component logs
// through. Components never import log/slog directly and store a Sink;
// wsnotify.NewServer accepts any Sink, while apiserver.Deps and
// cmdserver.Deps take the concrete *Logger.
type Sink interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopSink discards everything. Used as the zero-value default so components
// never need a nil check before logging.
type noopSink struct{}

func (noopSink) Debug(string, ...any) {}
func (noopSink) Info(string, ...any)  {}
func (noopSink) Warn(string, ...any)  {}
func (noopSink) Error(string, ...any) {}

// NoopSink is a Sink that discards every call.
func NoopSink() Sink { return noopSink{} }

// Logger wraps slog.Logger with emulator-specific defaults and satisfies Sink.
//
// Thread Safety: all methods are safe for concurrent use from multiple goroutines.
type Logger struct {
	*slog.Logger
}

// New creates a new Logger with the specified configuration.
//
// It configures:
//   - Output format (JSON for production, text for development)
//   - Log level filtering
//   - Default fields (service name, version)
//   - Output destination
func New(cfg config.LoggingConfig, version string) *Logger {
	var output io.Writer
	switch strings.ToLower(cfg.Output) {
	case "stderr":
		output = os.Stderr
	default:
		output = os.Stdout
	}

	level := parseLevel(cfg.Level)

	var handler slog.Handler
	opts := &slog.HandlerOptions{
		Level: level,
	}

	switch strings.ToLower(cfg.Format) {
	case "text":
		handler = slog.NewTextHandler(output, opts)
	default:
		handler = slog.NewJSONHandler(output, opts)
	}

	handler = handler.WithAttrs([]slog.Attr{
		slog.String("service", "catenis-emulator"),
		slog.String("version", version),
	})

	return &Logger{
		Logger: slog.New(handler),
	}
}

// parseLevel converts a string log level to slog.Level.
//
// Supported levels: debug, info, warn, error
// Defaults to info if unrecognised.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With returns a new Logger with additional default attributes.
//
// Example:
//
//	wsLogger := logger.With("component", "wsnotify")
//	wsLogger.Info("channel authenticated") // Includes component=wsnotify
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		Logger: l.Logger.With(args...),
	}
}

// Default creates a default logger for use before configuration is loaded.
//
// This logger outputs to stdout in JSON format at info level. It should
// only be used during early startup before config is available.
func Default() *Logger {
	return New(config.LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}, "dev")
}
