// Package logging sets up the process-wide zerolog logger.
package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Options controls the logger constructed by New.
type Options struct {
	Level string // trace, debug, info, warn, error, fatal
	Debug bool   // pretty console output with caller info instead of JSON
}

// New builds a zerolog.Logger writing to stderr, reserving stdout for
// JSON-RPC response frames.
func New(opts Options) zerolog.Logger {
	level := parseLevel(opts.Level)
	zerolog.SetGlobalLevel(level)

	var logger zerolog.Logger
	if opts.Debug {
		logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Caller().Logger()
	} else {
		logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	return logger
}

func parseLevel(level string) zerolog.Level {
	switch level {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// Component returns a child logger tagged with the given component name, the
// convention every subsystem uses so log lines can be filtered by origin.
func Component(l zerolog.Logger, name string) zerolog.Logger {
	return l.With().Str("component", name).Logger()
}
