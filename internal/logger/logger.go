// Package logger configures the process-wide zerolog logger.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// Init sets the global level and output format. Unknown levels fall back to
// info so a bad LOG_LEVEL never silences the process.
func Init(level, format string) {
	InitWriter(os.Stdout, level, format)
}

func InitWriter(out io.Writer, level, format string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	if strings.EqualFold(strings.TrimSpace(format), FormatConsole) {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	log.Logger = zerolog.New(out).With().Timestamp().Str("service", "market-pulse").Logger()
}
