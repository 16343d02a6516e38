package logger

import (
	"log/slog"
	"os"
	"strings"

	"github.com/getsentry/sentry-go"
	slogmulti "github.com/samber/slog-multi"
	slogsentry "github.com/samber/slog-sentry/v2"
)

var defaultLogger *slog.Logger

// Options controls how Setup builds the process logger.
type Options struct {
	Env       string
	Level     string
	Format    string
	SentryDSN string
}

func Init(env string) {
	Setup(Options{Env: env})
}

// Setup builds the default logger. Errors are fanned out to Sentry when a DSN is configured.
func Setup(opts Options) {
	level := parseLevel(opts.Level, opts.Env)
	handlerOpts := &slog.HandlerOptions{Level: level}

	var base slog.Handler
	if opts.Format == "json" || (opts.Format == "" && opts.Env == "production") {
		base = slog.NewJSONHandler(os.Stdout, handlerOpts)
	} else {
		base = slog.NewTextHandler(os.Stdout, handlerOpts)
	}

	handler := base
	if opts.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:         opts.SentryDSN,
			Environment: opts.Env,
		})
		if err == nil {
			handler = slogmulti.Fanout(base, slogsentry.Option{Level: slog.LevelError}.NewSentryHandler())
		}
	}

	defaultLogger = slog.New(handler)
	slog.SetDefault(defaultLogger)
}

func LoggerWrapper() *slog.Logger {
	if defaultLogger == nil {
		// lazy initialize a development logger to avoid nil pointer panics
		Init("development")
	}
	return defaultLogger
}

// L is a short alias of LoggerWrapper.
func L() *slog.Logger {
	return LoggerWrapper()
}

func parseLevel(level, env string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	if env == "production" {
		return slog.LevelInfo
	}
	return slog.LevelDebug
}
