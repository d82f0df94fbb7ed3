// Package logging wires zerolog the way the pack's izerolog/logiface-zerolog
// adapters do: one base logger carrying caller (file:line) context, with
// named child loggers per component — standing in for spec §1's "logging
// sinks" external collaborator (a macro/function that records file+line).
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds the base logger, writing to os.Stderr in a console-friendly
// format. NewWithWriter writes the same console format to another writer;
// neither produces JSON output.
func New(level zerolog.Level) zerolog.Logger {
	return NewWithWriter(os.Stderr, level)
}

// NewWithWriter builds the base logger writing to w.
func NewWithWriter(w io.Writer, level zerolog.Level) zerolog.Logger {
	console := zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	return zerolog.New(console).Level(level).With().Timestamp().Caller().Logger()
}

// Component returns a child logger tagged with a "component" field and an
// integer id (e.g. logging.Component(base, "worker", 3)). The orchestrator
// does not use it: it tags worker and listener loggers with an integer
// "worker" or "listener" field instead.
func Component(base zerolog.Logger, name string, id int) zerolog.Logger {
	return base.With().Str("component", name).Int("id", id).Logger()
}
