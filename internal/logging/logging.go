// Package logging builds the zerolog loggers shared by every component.
package logging

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

// New returns a JSON logger writing one object per line to w.
// Timestamps are RFC3339Nano in loc. Unknown levels fall back to info.
func New(w io.Writer, level string, loc *time.Location) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	if loc == nil {
		loc = time.UTC
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.TimestampFieldName = "ts"

	return zerolog.New(w).
		Level(lvl).
		Hook(locationHook{loc: loc}).
		With().
		Logger()
}

// locationHook stamps every event with the current time in loc.
type locationHook struct {
	loc *time.Location
}

func (h locationHook) Run(e *zerolog.Event, _ zerolog.Level, _ string) {
	e.Time(zerolog.TimestampFieldName, time.Now().In(h.loc))
}
