package forecast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/routecast/routecast/internal/events"
	"github.com/routecast/routecast/internal/geo"
	"github.com/routecast/routecast/internal/telemetry"
)

// ServiceConfig holds configuration for the forecast service.
type ServiceConfig struct {
	// Provider fetches payloads on a cache miss (required).
	Provider Provider

	// Cache stores raw payloads (required).
	Cache Cache

	// Sink receives weather:fetch diagnostics. Nil discards them.
	Sink events.Sink

	// Metrics records provider and cache counters (optional).
	Metrics *telemetry.ProviderMetrics

	// Logger for service operations.
	Logger zerolog.Logger
}

// Service resolves forecasts through the cache, falling back to the provider.
type Service struct {
	provider Provider
	cache    Cache
	sink     events.Sink
	metrics  *telemetry.ProviderMetrics
	logger   zerolog.Logger
	group    singleflight.Group
}

// NewService creates a new forecast service.
func NewService(cfg ServiceConfig) *Service {
	sink := cfg.Sink
	if sink == nil {
		sink = events.Nop{}
	}
	return &Service{
		provider: cfg.Provider,
		cache:    cfg.Cache,
		sink:     sink,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger.With().Str("component", "forecast").Logger(),
	}
}

// Fetch returns the forecast payload for a point and target. A cached entry
// for (lat, lon, target.Day) is returned without a network call regardless
// of whether the target carries a time. On a miss the provider is called once
// and its raw body is stored under the same day key. Concurrent misses for the
// same key share a single provider call.
func (s *Service) Fetch(ctx context.Context, apiKey string, lat, lon float64, target Target) (*Payload, error) {
	if err := (geo.Point{Lat: lat, Lon: lon}).Validate(); err != nil {
		return nil, err
	}

	if p, ok := s.lookup(ctx, lat, lon, target.Day); ok {
		return p, nil
	}

	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	// The shared call outlives any single caller; the provider client's
	// timeout bounds it. Each caller still returns as soon as its own
	// context is done.
	key := CacheKey(lat, lon, target.Day) + "|" + target.Include()
	ch := s.group.DoChan(key, func() (any, error) {
		return s.fetchAndStore(context.WithoutCancel(ctx), apiKey, lat, lon, target)
	})

	select {
	case <-ctx.Done():
		return nil, &FetchError{Err: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Payload), nil //nolint:forcetypeassert // only *Payload is stored
	}
}

func (s *Service) lookup(ctx context.Context, lat, lon float64, day string) (*Payload, bool) {
	raw, ok, err := s.cache.Get(ctx, lat, lon, day)
	if err != nil {
		s.logger.Warn().Err(err).
			Float64("lat", lat).
			Float64("lon", lon).
			Str("day", day).
			Msg("forecast cache read failed, treating as miss")
		s.metrics.RecordCacheMiss(s.provider.Name())
		return nil, false
	}
	if !ok {
		s.metrics.RecordCacheMiss(s.provider.Name())
		return nil, false
	}

	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		s.logger.Warn().Err(err).
			Str("key", CacheKey(lat, lon, day)).
			Msg("cached forecast is not valid JSON, refetching")
		s.metrics.RecordCacheMiss(s.provider.Name())
		return nil, false
	}

	s.metrics.RecordCacheHit(s.provider.Name())
	return &p, true
}

func (s *Service) fetchAndStore(ctx context.Context, apiKey string, lat, lon float64, target Target) (*Payload, error) {
	start := time.Now()
	resp, err := s.provider.Fetch(ctx, Request{APIKey: apiKey, Lat: lat, Lon: lon, Target: target})
	duration := time.Since(start)
	s.metrics.RecordRequest(s.provider.Name(), duration, err)

	if err != nil {
		var fe *FetchError
		if !errors.As(err, &fe) {
			err = &FetchError{Err: err}
		}
		s.logger.Error().Err(err).
			Float64("lat", lat).
			Float64("lon", lon).
			Str("target", target.Raw).
			Msg("forecast fetch failed")
		return nil, err
	}

	var p Payload
	if err := json.Unmarshal(resp.Body, &p); err != nil {
		return nil, &FetchError{StatusCode: 0, URL: resp.URL, Err: fmt.Errorf("%w: %w", ErrInvalidPayload, err)}
	}

	if err := s.cache.Put(ctx, lat, lon, target.Day, resp.Body); err != nil {
		s.logger.Warn().Err(err).
			Str("key", CacheKey(lat, lon, target.Day)).
			Msg("failed to store forecast in cache")
	}

	events.Emit(ctx, s.sink, events.New(events.TypeWeatherFetch, map[string]any{
		"url":        resp.URL,
		"status":     resp.StatusCode,
		"durationMs": duration.Milliseconds(),
		"point":      map[string]float64{"lat": lat, "lon": lon},
		"dateIso":    target.Raw,
		"summary":    p.Summarize(),
	}))

	return &p, nil
}
