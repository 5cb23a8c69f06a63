package logger

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Log is the root logger for the library. Component loggers are derived
// from it via For.
var Log zerolog.Logger

func init() {
	Log = zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}).With().Timestamp().Logger()

	zerolog.SetGlobalLevel(levelFromEnv())
}

// For returns a child logger tagged with the given component name.
func For(component string) zerolog.Logger {
	return Log.With().Str("component", component).Logger()
}

// SetLevel sets the global log level.
func SetLevel(level zerolog.Level) {
	zerolog.SetGlobalLevel(level)
}

func levelFromEnv() zerolog.Level {
	switch strings.ToLower(os.Getenv("QTTWITCH_LOG")) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
