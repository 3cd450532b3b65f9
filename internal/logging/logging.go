// Package logging wires up the gateway's single zerolog.Logger, with level
// and output-format selection following the same two knobs other zerolog
// services in this codebase's lineage expose.
package logging

import (
	"os"

	"github.com/rs/zerolog"
)

// New builds a zerolog.Logger for level ("debug"/"info"/"warn"/"error", an
// unrecognized value falling back to info) and format ("console" for a
// human-readable writer, anything else for bare JSON lines to stderr).
func New(level, format string) zerolog.Logger {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		parsed = zerolog.InfoLevel
	}

	if format == "console" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger().Level(parsed)
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger().Level(parsed)
}
