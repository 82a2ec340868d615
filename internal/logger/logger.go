package logger

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Setup builds the process-wide logger. format "pretty" renders
// human-readable console output for local development; anything else
// emits JSON lines. Unknown levels fall back to info.
func Setup(level, format string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	var out = os.Stdout
	var log zerolog.Logger
	if format == "pretty" {
		log = zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen})
	} else {
		log = zerolog.New(out)
	}

	return log.With().
		Timestamp().
		Caller().
		Str("service", "quizdrill").
		Logger()
}
