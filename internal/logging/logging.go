// Package logging configures the process-wide zerolog logger: a
// console writer for interactive use, switched to bare JSON for
// production/aggregated log output.
package logging

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init configures the global zerolog logger. component is attached to
// every subsequent log line so multi-component processes stay greppable.
func Init(component string, json bool) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	var out zerolog.Logger
	if json {
		out = zerolog.New(os.Stderr)
	} else {
		out = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	}
	log.Logger = out.With().Timestamp().Str("component", component).Logger()
}

// Named returns a child logger scoped to a sub-component, for packages
// that want their own prefix without reconfiguring the global logger.
func Named(name string) zerolog.Logger {
	return log.Logger.With().Str("subcomponent", name).Logger()
}
