// Package logging constructs the structured logger the core consumes as
// a collaborator (§6.1). The core never picks its own level or output;
// it is handed a configured zerolog.Logger and attaches component fields
// to it as needed.
package logging

import (
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// New builds a zerolog.Logger at the given level, writing to stdout. When
// stdout is a terminal, output uses zerolog's human-readable console
// writer; otherwise it emits structured JSON.
func New(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if isatty.IsTerminal(os.Stdout.Fd()) {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"})
	} else {
		logger = zerolog.New(os.Stdout)
	}
	return logger.With().Timestamp().Logger().Level(lvl)
}

// Component returns a child logger tagged with a "component" field, used
// to scope log lines to calendarservice, addressbookservice, and so on.
func Component(log zerolog.Logger, name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}
