// Package logging builds the process-wide zerolog root logger. Every
// component derives its own child logger from it, so the service name
// is stamped here once.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New creates the root logger for a service. Unknown levels fall back
// to info; the "console" and "pretty" formats select human-readable
// output, anything else emits JSON.
func New(service, level, format string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	return zerolog.New(writerFor(format)).
		With().
		Timestamp().
		Str("service", service).
		Logger()
}

func writerFor(format string) io.Writer {
	switch format {
	case "console", "pretty":
		return zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	default:
		return os.Stdout
	}
}
