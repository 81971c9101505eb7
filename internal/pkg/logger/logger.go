// Package logger exposes a global, sugared Zap logger with optional
// OpenTelemetry log forwarding. Logs are emitted as JSON to stdout; the
// minimum level is set through a functional option. Before Init is called the
// package falls back to a no-op logger so library code can log unconditionally.
package logger

import (
	"context"
	"os"
	"sync"

	"github.com/gabapcia/ledgerwatch/internal/pkg/telemetry"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// logger is the global SugaredLogger. It defaults to a no-op logger and
	// is replaced once by Init.
	logger = zap.NewNop().Sugar()

	// initOnce guards the one-time setup performed by Init.
	initOnce sync.Once
)

// config holds the logger settings prior to initialization.
type config struct {
	level string // minimum level: debug, info, warn, error, panic, fatal
}

// Option customizes the logger before initialization.
type Option func(*config)

// WithLevel sets the minimum log level. Accepted values are the standard zap
// level names ("debug", "info", "warn", "error", "panic", "fatal").
func WithLevel(l string) Option {
	return func(c *config) {
		c.level = l
	}
}

// Init configures the global logger. By default it writes JSON to stdout at
// the "info" level. When an OpenTelemetry LoggerProvider has been registered
// through telemetry.Init, an OTEL bridge core is added so log records are
// also exported. Calls after the first successful one have no effect.
func Init(opts ...Option) error {
	cfg := config{level: "info"}
	for _, opt := range opts {
		opt(&cfg)
	}

	level, err := zapcore.ParseLevel(cfg.level)
	if err != nil {
		return err
	}

	initOnce.Do(func() {
		cores := []zapcore.Core{
			zapcore.NewCore(
				zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
				zapcore.AddSync(os.Stdout),
				level,
			),
		}

		if lp := telemetry.LoggerProvider(); lp != nil {
			cores = append(cores, otelzap.NewCore("", otelzap.WithLoggerProvider(lp)))
		}

		logger = zap.New(zapcore.NewTee(cores...)).Sugar()
	})

	return nil
}

// Sync flushes buffered log entries. Call it on shutdown.
func Sync() error {
	return logger.Sync()
}

// Debug logs a debug-level message with optional key/value context.
func Debug(ctx context.Context, msg string, keysAndValues ...any) {
	logger.Debugw(msg, keysAndValues...)
}

// Info logs an info-level message with optional key/value context.
func Info(ctx context.Context, msg string, keysAndValues ...any) {
	logger.Infow(msg, keysAndValues...)
}

// Warn logs a warn-level message with optional key/value context.
func Warn(ctx context.Context, msg string, keysAndValues ...any) {
	logger.Warnw(msg, keysAndValues...)
}

// Error logs an error-level message with optional key/value context.
func Error(ctx context.Context, msg string, keysAndValues ...any) {
	logger.Errorw(msg, keysAndValues...)
}

// Fatal logs a fatal-level message (and then exits) with optional key/value context.
func Fatal(ctx context.Context, msg string, keysAndValues ...any) {
	logger.Fatalw(msg, keysAndValues...)
}
