package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// ServiceName tags every log line.
const ServiceName = "exstem-proctor"

// Setup builds the process logger on stdout.
//   - level: trace, debug, info, warn, error, fatal or panic (info when unknown)
//   - format: "json" in production, "pretty" for a console during development
func Setup(level, format string) zerolog.Logger {
	return New(os.Stdout, level, format)
}

// New builds the service logger writing to w. Lines carry the instance name
// because sessions and media leases are pinned to one instance.
func New(w io.Writer, level, format string) zerolog.Logger {
	if format == "pretty" {
		w = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339,
		}
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.DurationFieldUnit = time.Millisecond

	ctx := zerolog.New(w).With().
		Timestamp().
		Str("service", ServiceName)
	if host, err := os.Hostname(); err == nil {
		ctx = ctx.Str("instance", host)
	}
	return ctx.Caller().Logger()
}
