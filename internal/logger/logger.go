package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"storage-sync/internal/config"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// Global logger instance
var log zerolog.Logger

// Init initializes the global logger with the provided configuration.
// Supported levels: trace, debug, info, warn, error, fatal, panic
func Init(cfg config.LoggerConfig) {
	// Use console writer for development, JSON for production
	var output io.Writer
	if cfg.Environment == "production" {
		output = os.Stdout
	} else {
		output = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
	}
	SetOutput(output, cfg.Level)
}

// SetOutput replaces the global logger with one writing to w at the given
// level.
func SetOutput(w io.Writer, level string) {
	log = zerolog.New(w).
		Level(parseLogLevel(level)).
		With().
		Timestamp().
		Caller().
		Logger()
}

// parseLogLevel converts string log level to zerolog.Level
func parseLogLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "panic":
		return zerolog.PanicLevel
	default:
		return zerolog.InfoLevel
	}
}

// Get returns the global logger instance
func Get() *zerolog.Logger {
	return &log
}

// Debug returns a debug level event
func Debug() *zerolog.Event {
	return log.Debug()
}

// Info returns an info level event
func Info() *zerolog.Event {
	return log.Info()
}

// Warn returns a warn level event
func Warn() *zerolog.Event {
	return log.Warn()
}

// Error returns an error level event
func Error() *zerolog.Event {
	return log.Error()
}

// Fatal returns a fatal level event
func Fatal() *zerolog.Event {
	return log.Fatal()
}

// With creates a child logger with additional context
func With() zerolog.Context {
	return log.With()
}

// Component returns a child logger tagged with the component name.
func Component(name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}

// FromContext returns the global logger carrying the trace and span ids of
// the span in ctx, if any.
func FromContext(ctx context.Context) zerolog.Logger {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return log
	}
	return log.With().
		Str("trace_id", sc.TraceID().String()).
		Str("span_id", sc.SpanID().String()).
		Logger()
}

// CronAdapter exposes a zerolog logger through the Info/Error pair the cron
// scheduler logs with.
type CronAdapter struct {
	l zerolog.Logger
}

// NewCronAdapter wraps the global logger tagged as the scheduler.
func NewCronAdapter() CronAdapter {
	return CronAdapter{l: Component("scheduler")}
}

func (a CronAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.l.Debug().Fields(keysAndValues).Msg(msg)
}

func (a CronAdapter) Error(err error, msg string, keysAndValues ...interface{}) {
	a.l.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
