// Package events carries diagnostic events out of the scoring pipeline.
//
// The pipeline only ever sees the Sink interface. Delivery is best-effort:
// sinks must not block the caller for long, and any panic raised by a sink is
// swallowed by Emit so diagnostics can never fail a fetch or an aggregation.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Type identifies the kind of diagnostic event.
type Type string

const (
	// TypeWeatherFetch is emitted after a forecast was fetched from the provider.
	TypeWeatherFetch Type = "weather:fetch"
	// TypeWeatherAggregate is emitted after a route's waypoints were aggregated.
	TypeWeatherAggregate Type = "weather:aggregate"
	// TypeRouteWeather is emitted after a route was scored.
	TypeRouteWeather Type = "route:weather"
)

// Event is a single structured diagnostic record.
type Event struct {
	ID        string         `json:"id"`
	Type      Type           `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// New creates an event with a fresh ID and the current UTC time.
func New(t Type, data map[string]any) Event {
	return Event{
		ID:        uuid.New().String(),
		Type:      t,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// Sink receives diagnostic events.
type Sink interface {
	Emit(ctx context.Context, ev Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, ev Event)

// Emit calls f(ctx, ev).
func (f SinkFunc) Emit(ctx context.Context, ev Event) {
	f(ctx, ev)
}

// Nop discards every event.
type Nop struct{}

// Emit does nothing.
func (Nop) Emit(context.Context, Event) {}

// Multi fans an event out to several sinks. A panicking sink does not stop
// delivery to the others.
type Multi []Sink

// Emit delivers ev to every sink in order.
func (m Multi) Emit(ctx context.Context, ev Event) {
	for _, s := range m {
		Emit(ctx, s, ev)
	}
}

// Emit delivers ev to sink, tolerating a nil sink and recovering from panics.
func Emit(ctx context.Context, sink Sink, ev Event) {
	if sink == nil {
		return
	}
	defer func() {
		_ = recover() //nolint:errcheck // diagnostics are best-effort
	}()
	sink.Emit(ctx, ev)
}
