package events

import (
	"context"

	"github.com/rs/zerolog"
)

// LogSink writes events to a zerolog logger at info level.
type LogSink struct {
	logger zerolog.Logger
}

// NewLogSink creates a sink backed by logger.
func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Emit logs ev with its data as structured fields.
func (s *LogSink) Emit(_ context.Context, ev Event) {
	s.logger.Info().
		Str("event_id", ev.ID).
		Str("event_type", string(ev.Type)).
		Time("event_time", ev.Timestamp).
		Fields(ev.Data).
		Msg("[" + string(ev.Type) + "]")
}
