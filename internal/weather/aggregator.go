package weather

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/routecast/routecast/internal/events"
	"github.com/routecast/routecast/internal/forecast"
	"github.com/routecast/routecast/internal/geo"
)

// DefaultConcurrency bounds concurrent point fetches per route.
const DefaultConcurrency = 8

// Fetcher resolves the forecast payload for one point. *forecast.Service
// implements it.
type Fetcher interface {
	Fetch(ctx context.Context, apiKey string, lat, lon float64, target forecast.Target) (*forecast.Payload, error)
}

// AggregatorConfig holds configuration for the route aggregator.
type AggregatorConfig struct {
	// Fetcher supplies per-point payloads (required).
	Fetcher Fetcher

	// Concurrency bounds in-flight fetches for one route.
	// Default: 8
	Concurrency int

	// Sink receives weather:aggregate diagnostics. Nil discards them.
	Sink events.Sink

	// Logger for aggregator operations.
	Logger zerolog.Logger
}

// Aggregator resolves and averages the weather along a route.
type Aggregator struct {
	fetcher     Fetcher
	concurrency int
	sink        events.Sink
	logger      zerolog.Logger
}

// NewAggregator creates a new route aggregator.
func NewAggregator(cfg AggregatorConfig) *Aggregator {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	sink := cfg.Sink
	if sink == nil {
		sink = events.Nop{}
	}
	return &Aggregator{
		fetcher:     cfg.Fetcher,
		concurrency: concurrency,
		sink:        sink,
		logger:      cfg.Logger.With().Str("component", "aggregator").Logger(),
	}
}

// Aggregate fetches every waypoint and returns the mean weather. Results in
// ByPoint follow waypoint order. The first fetch error fails the whole route
// and cancels the remaining fetches. An empty waypoint list yields (nil, nil).
func (a *Aggregator) Aggregate(ctx context.Context, apiKey string, waypoints []geo.Point, target forecast.Target) (*AggregatedWeather, error) {
	if len(waypoints) == 0 {
		return nil, nil
	}

	results := make([]PointWeather, len(waypoints))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)

	for i, wp := range waypoints {
		g.Go(func() error {
			payload, err := a.fetcher.Fetch(gctx, apiKey, wp.Lat, wp.Lon, target)
			if err != nil {
				return fmt.Errorf("waypoint %d (%.4f,%.4f): %w", i, wp.Lat, wp.Lon, err)
			}
			results[i] = Normalize(wp.Lat, wp.Lon, Resolve(payload, target))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		a.logger.Warn().Err(err).
			Int("waypoints", len(waypoints)).
			Str("target", target.Raw).
			Msg("route aggregation failed")
		return nil, err
	}

	agg := Average(results)
	events.Emit(ctx, a.sink, events.New(events.TypeWeatherAggregate, map[string]any{
		"dateIso":    target.Raw,
		"points":     len(waypoints),
		"aggregated": agg,
	}))
	return agg, nil
}
