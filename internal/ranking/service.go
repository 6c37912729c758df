// Package ranking scores a set of routes against the forecast for one start
// time and orders them best first.
package ranking

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/routecast/routecast/internal/events"
	"github.com/routecast/routecast/internal/forecast"
	"github.com/routecast/routecast/internal/geo"
	"github.com/routecast/routecast/internal/scoring"
	"github.com/routecast/routecast/internal/telemetry"
	"github.com/routecast/routecast/internal/track"
	"github.com/routecast/routecast/internal/weather"
	"github.com/routecast/routecast/pkg/polyline"
)

// DefaultConcurrency bounds how many routes are resolved at once.
const DefaultConcurrency = 4

// Aggregator resolves the mean weather along a set of waypoints.
// *weather.Aggregator implements it.
type Aggregator interface {
	Aggregate(ctx context.Context, apiKey string, waypoints []geo.Point, target forecast.Target) (*weather.AggregatedWeather, error)
}

// ServiceConfig holds configuration for the ranking service.
type ServiceConfig struct {
	// Aggregator resolves route weather (required).
	Aggregator Aggregator

	// IntervalKm is the default waypoint spacing.
	// Default: track.DefaultIntervalKm
	IntervalKm float64

	// Concurrency bounds routes processed in parallel.
	// Default: 4
	Concurrency int

	// Sink receives route:weather diagnostics. Nil discards them.
	Sink events.Sink

	// Metrics is optional.
	Metrics *telemetry.RankingMetrics

	// Logger for ranking operations.
	Logger zerolog.Logger

	// Now overrides the clock in tests.
	Now func() time.Time
}

// Service ranks routes by comfort score.
type Service struct {
	aggregator  Aggregator
	intervalKm  float64
	concurrency int
	sink        events.Sink
	metrics     *telemetry.RankingMetrics
	logger      zerolog.Logger
	now         func() time.Time
}

// NewService creates a new ranking service.
func NewService(cfg ServiceConfig) *Service {
	if cfg.IntervalKm <= 0 {
		cfg.IntervalKm = track.DefaultIntervalKm
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.Sink == nil {
		cfg.Sink = events.Nop{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		aggregator:  cfg.Aggregator,
		intervalKm:  cfg.IntervalKm,
		concurrency: cfg.Concurrency,
		sink:        cfg.Sink,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger.With().Str("component", "ranking").Logger(),
		now:         cfg.Now,
	}
}

// IntervalKm returns the default waypoint spacing.
func (s *Service) IntervalKm() float64 {
	return s.intervalKm
}

// Option adjusts a single Rank call.
type Option func(*options)

type options struct {
	intervalKm float64
}

// WithIntervalKm overrides the waypoint spacing. Non-positive values are
// ignored.
func WithIntervalKm(km float64) Option {
	return func(o *options) {
		if km > 0 {
			o.intervalKm = km
		}
	}
}

// Rank scores every route for target and returns them by descending score.
// Equal scores keep input order. A route whose weather cannot be fetched is
// reported in Failures without affecting the others; a route with no
// usable points is listed in Skipped. Rank only fails when ctx is done.
func (s *Service) Rank(ctx context.Context, apiKey string, routes []Route, target forecast.Target, opts ...Option) (*Ranking, error) {
	o := options{intervalKm: s.intervalKm}
	for _, opt := range opts {
		opt(&o)
	}

	start := s.now()
	results := make([]*Result, len(routes))
	errs := make([]error, len(routes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, r := range routes {
		g.Go(func() error {
			results[i], errs[i] = s.scoreRoute(gctx, apiKey, r, target, o.intervalKm)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ranking := &Ranking{
		Target:      target.Raw,
		IntervalKm:  o.intervalKm,
		Results:     make([]Result, 0, len(routes)),
		GeneratedAt: s.now().UTC(),
	}
	for i, r := range routes {
		switch {
		case errs[i] != nil:
			ranking.Failures = append(ranking.Failures, Failure{Name: r.Name, Error: errs[i].Error(), Err: errs[i]})
			s.metrics.RecordFailure(ctx)
		case results[i] == nil:
			ranking.Skipped = append(ranking.Skipped, r.Name)
		default:
			ranking.Results = append(ranking.Results, *results[i])
		}
	}
	sort.SliceStable(ranking.Results, func(a, b int) bool {
		return ranking.Results[a].Score > ranking.Results[b].Score
	})

	s.metrics.RecordRun(ctx, len(routes), s.now().Sub(start))
	s.logger.Info().
		Str("target", target.Raw).
		Int("routes", len(routes)).
		Int("scored", len(ranking.Results)).
		Int("failed", len(ranking.Failures)).
		Msg("routes ranked")

	return ranking, nil
}

// scoreRoute returns (nil, nil) when the route yields no weather.
func (s *Service) scoreRoute(ctx context.Context, apiKey string, r Route, target forecast.Target, intervalKm float64) (*Result, error) {
	path := r.Track.Points()
	waypoints := track.Sample(path, r.Track.Distance, intervalKm)
	heading := track.Heading(r.Track)

	agg, err := s.aggregator.Aggregate(ctx, apiKey, waypoints, target)
	if err != nil {
		s.logger.Warn().Err(err).Str("route", r.Name).Msg("route weather failed")
		return nil, fmt.Errorf("route %q: %w", r.Name, err)
	}
	if agg == nil {
		s.logger.Debug().Str("route", r.Name).Msg("route has no waypoints")
		return nil, nil
	}

	in := scoring.FromWeather(agg, heading)
	score := scoring.Score(in)
	res := &Result{
		Name:             r.Name,
		Score:            score,
		Color:            scoring.ColorClass(score),
		Breakdown:        scoring.ComputeBreakdown(in),
		Conditions:       ConditionsText(agg),
		Heading:          heading,
		DistanceM:        r.Track.Distance,
		Weather:          agg,
		Path:             path,
		Waypoints:        waypoints,
		PathPolyline:     encode(path),
		WaypointPolyline: encode(waypoints),
	}

	s.metrics.RecordScore(ctx, score)
	events.Emit(ctx, s.sink, events.New(events.TypeRouteWeather, map[string]any{
		"route": r.Name,
		"summary": map[string]any{
			"score":        score,
			"color":        res.Color,
			"routeHeading": heading,
		},
		"weather": agg,
	}))
	return res, nil
}

// ConditionsText renders the one-line weather summary shown next to a
// route, e.g. "12 km/h • 18°C • 60% • 10 km".
func ConditionsText(agg *weather.AggregatedWeather) string {
	if agg == nil {
		return ""
	}
	return fmt.Sprintf("%d km/h • %d°C • %d%% • %d km",
		roundHalfUp(agg.WindSpeed),
		roundHalfUp(agg.TempC),
		roundHalfUp(agg.Humidity),
		roundHalfUp(agg.VisibilityKm),
	)
}

// roundHalfUp rounds .5 toward positive infinity so -2.5 reads as -2.
func roundHalfUp(v float64) int {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return int(math.Floor(v + 0.5))
}

func encode(points []geo.Point) string {
	coords := make([]polyline.Coordinate, len(points))
	for i, p := range points {
		coords[i] = polyline.Coordinate{Lat: p.Lat, Lon: p.Lon}
	}
	return polyline.Encode(coords)
}
