// Package logging adapts the option logger interfaces to zerolog.
package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	opts "github.com/goliatone/go-datastore-options"
	"github.com/goliatone/go-datastore-options/pkg/activity"
)

// Level represents log levels.
type Level = zerolog.Level

// Log levels exposed for convenience.
const (
	DebugLevel = zerolog.DebugLevel
	InfoLevel  = zerolog.InfoLevel
	WarnLevel  = zerolog.WarnLevel
	ErrorLevel = zerolog.ErrorLevel
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level Level
	// Output is where logs are written. Defaults to os.Stderr.
	Output io.Writer
	// Pretty enables human-readable console output.
	Pretty bool
	// TimeFormat is used by the console writer. Defaults to RFC3339.
	TimeFormat string
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		Level:      InfoLevel,
		Output:     os.Stderr,
		TimeFormat: time.RFC3339,
	}
}

// New builds a logger tagged with component=datastore-options.
func New(cfg Config) zerolog.Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	if cfg.TimeFormat == "" {
		cfg.TimeFormat = time.RFC3339
	}
	output := cfg.Output
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: cfg.Output, TimeFormat: cfg.TimeFormat}
	}
	return zerolog.New(output).
		Level(cfg.Level).
		With().
		Timestamp().
		Str("component", "datastore-options").
		Logger()
}

// ParseLevel parses a log level string (case-insensitive). Unknown values
// map to InfoLevel.
func ParseLevel(level string) Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return DebugLevel
	case "WARN", "WARNING":
		return WarnLevel
	case "ERROR":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// NewConfigurationLogger logs declarations at debug level and rejected
// declarations at warn level.
func NewConfigurationLogger(logger zerolog.Logger) opts.ConfigurationLogger {
	return opts.ConfigurationLoggerFunc(func(event opts.ConfigurationLogEvent) {
		entry := logger.Debug()
		if event.Err != nil {
			entry = logger.Warn().Err(event.Err)
		}
		entry = entry.
			Str("scope", event.Scope).
			Str("source", event.Source).
			Str("option", event.Option)
		if event.Element != "" {
			entry = entry.Str("element", event.Element)
		}
		if event.Key != nil {
			entry = entry.Interface("key", event.Key)
		}
		if event.Value != nil {
			entry = entry.Interface("value", event.Value)
		}
		if event.Err != nil {
			entry.Msg("option declaration rejected")
			return
		}
		entry.Msg("option declared")
	})
}

// NewEvaluatorLogger logs rule evaluations at debug level and failures at
// error level.
func NewEvaluatorLogger(logger zerolog.Logger) opts.EvaluatorLogger {
	return opts.EvaluatorLoggerFunc(func(event opts.EvaluatorLogEvent) {
		entry := logger.Debug().Interface("result", event.Result)
		if event.Err != nil {
			entry = logger.Error().Err(event.Err)
		}
		entry.
			Str("engine", event.Engine).
			Str("expr", event.Expr).
			Str("scope", event.Scope).
			Dur("duration", event.Duration).
			Msg("rule evaluated")
	})
}

// NewActivityHook writes activity events to logger at info level.
func NewActivityHook(logger zerolog.Logger) activity.ActivityHook {
	return activity.HookFunc(func(_ context.Context, event activity.Event) error {
		logger.Info().
			Str("verb", event.Verb).
			Str("object_type", event.ObjectType).
			Str("object_id", event.ObjectID).
			Str("channel", event.Channel).
			Fields(event.Metadata).
			Time("occurred_at", event.OccurredAt).
			Msg("options activity")
		return nil
	})
}
