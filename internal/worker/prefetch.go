package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/routecast/routecast/internal/forecast"
	"github.com/routecast/routecast/internal/geo"
)

// Fetcher resolves one point forecast through the cache. *forecast.Service
// implements it.
type Fetcher interface {
	Fetch(ctx context.Context, apiKey string, lat, lon float64, target forecast.Target) (*forecast.Payload, error)
}

// PrefetchJob samples routes and warms the forecast cache for every
// waypoint.
type PrefetchJob struct {
	config  PrefetchConfig
	fetcher Fetcher
	apiKey  string
	logger  zerolog.Logger

	metrics *PrefetchMetrics
}

// PrefetchMetrics tracks prefetch statistics across runs.
type PrefetchMetrics struct {
	mu sync.RWMutex

	TotalRuns     int64
	TotalPoints   int64
	FetchedPoints int64
	FailedPoints  int64

	LastRunAt       time.Time
	LastRunDuration time.Duration
	TotalDuration   time.Duration
}

// PrefetchJobConfig holds configuration for creating a PrefetchJob.
type PrefetchJobConfig struct {
	Config  PrefetchConfig
	Fetcher Fetcher
	// APIKey is the provider key used for every fetch.
	APIKey string
	Logger zerolog.Logger
}

// NewPrefetchJob creates a new prefetch job processor.
func NewPrefetchJob(cfg PrefetchJobConfig) *PrefetchJob {
	return &PrefetchJob{
		config:  cfg.Config.withDefaults(),
		fetcher: cfg.Fetcher,
		apiKey:  cfg.APIKey,
		logger:  cfg.Logger.With().Str("component", "prefetch").Logger(),
		metrics: &PrefetchMetrics{},
	}
}

// PrefetchResult contains the result of one prefetch run.
type PrefetchResult struct {
	StartTime   time.Time
	EndTime     time.Time
	Duration    time.Duration
	Routes      int
	TotalPoints int
	Successful  int
	Failed      int
	Errors      []PointError
}

// PointError records a failed point fetch.
type PointError struct {
	Point geo.Point
	Error string
}

func (r *PrefetchResult) failedOver(ratio float64) bool {
	if r.TotalPoints == 0 {
		return false
	}
	return float64(r.Failed)/float64(r.TotalPoints) > ratio
}

// Waypoints samples every route at intervalKm and returns the distinct
// waypoints in route order. Points that share a cache key are fetched once.
func Waypoints(routes []Route, intervalKm float64) []geo.Point {
	seen := make(map[string]struct{})
	var points []geo.Point
	for _, r := range routes {
		for _, p := range r.Track.Waypoints(intervalKm) {
			key := forecast.CacheKey(p.Lat, p.Lon, "")
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			points = append(points, p)
		}
	}
	return points
}

// Run fetches the forecast for every waypoint of routes at target. A
// non-positive intervalKm uses the configured default.
func (j *PrefetchJob) Run(ctx context.Context, routes []Route, target forecast.Target, intervalKm float64) *PrefetchResult {
	if intervalKm <= 0 {
		intervalKm = j.config.IntervalKm
	}
	return j.fetchAll(ctx, Waypoints(routes, intervalKm), target, len(routes))
}

func (j *PrefetchJob) fetchAll(ctx context.Context, points []geo.Point, target forecast.Target, routes int) *PrefetchResult {
	startTime := time.Now()
	result := &PrefetchResult{
		StartTime:   startTime,
		Routes:      routes,
		TotalPoints: len(points),
	}

	j.logger.Info().
		Str("target", target.Raw).
		Int("routes", routes).
		Int("total_points", result.TotalPoints).
		Int("concurrency", j.config.Concurrency).
		Msg("starting prefetch")

	pointsChan := make(chan geo.Point, len(points))
	resultsChan := make(chan pointResult, len(points))

	var wg sync.WaitGroup
	for range j.config.Concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.fetchWorker(ctx, target, pointsChan, resultsChan)
		}()
	}

	for _, p := range points {
		pointsChan <- p
	}
	close(pointsChan)

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	for pr := range resultsChan {
		if pr.err != nil {
			result.Failed++
			result.Errors = append(result.Errors, PointError{Point: pr.point, Error: pr.err.Error()})
			continue
		}
		result.Successful++
	}
	// Points never attempted because ctx ended count as failed.
	result.Failed = result.TotalPoints - result.Successful

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(startTime)

	j.updateMetrics(result)

	j.logger.Info().
		Dur("duration", result.Duration).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Msg("prefetch completed")

	return result
}

type pointResult struct {
	point geo.Point
	err   error
}

func (j *PrefetchJob) fetchWorker(ctx context.Context, target forecast.Target, points <-chan geo.Point, results chan<- pointResult) {
	for point := range points {
		if ctx.Err() != nil {
			return
		}
		results <- pointResult{point: point, err: j.fetchPoint(ctx, point, target)}
	}
}

func (j *PrefetchJob) fetchPoint(ctx context.Context, point geo.Point, target forecast.Target) error {
	ctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	_, err := j.fetcher.Fetch(ctx, j.apiKey, point.Lat, point.Lon, target)
	if err != nil {
		j.logger.Debug().Err(err).
			Float64("lat", point.Lat).
			Float64("lon", point.Lon).
			Msg("prefetch point failed")
	}
	return err
}

func (j *PrefetchJob) updateMetrics(result *PrefetchResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalRuns++
	j.metrics.TotalPoints += int64(result.TotalPoints)
	j.metrics.FetchedPoints += int64(result.Successful)
	j.metrics.FailedPoints += int64(result.Failed)
	j.metrics.LastRunAt = result.EndTime
	j.metrics.LastRunDuration = result.Duration
	j.metrics.TotalDuration += result.Duration
}

// GetMetrics returns a copy of the current metrics.
func (j *PrefetchJob) GetMetrics() PrefetchMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return PrefetchMetrics{
		TotalRuns:       j.metrics.TotalRuns,
		TotalPoints:     j.metrics.TotalPoints,
		FetchedPoints:   j.metrics.FetchedPoints,
		FailedPoints:    j.metrics.FailedPoints,
		LastRunAt:       j.metrics.LastRunAt,
		LastRunDuration: j.metrics.LastRunDuration,
		TotalDuration:   j.metrics.TotalDuration,
	}
}

// MetricsSnapshot returns a snapshot of the current metrics as a map.
func (j *PrefetchJob) MetricsSnapshot() map[string]any {
	m := j.GetMetrics()
	return map[string]any{
		"total_runs":        m.TotalRuns,
		"total_points":      m.TotalPoints,
		"fetched_points":    m.FetchedPoints,
		"failed_points":     m.FailedPoints,
		"last_run_at":       m.LastRunAt,
		"last_run_duration": m.LastRunDuration.String(),
		"total_duration":    m.TotalDuration.String(),
	}
}
