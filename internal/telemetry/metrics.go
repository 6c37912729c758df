package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/routecast/routecast/internal/telemetry"

// ProviderMetrics records outbound forecast provider calls and cache usage.
type ProviderMetrics struct {
	requestDuration metric.Float64Histogram
	requestTotal    metric.Int64Counter
	cacheHits       metric.Int64Counter
	cacheMisses     metric.Int64Counter
}

// NewProviderMetrics creates the provider instruments on meter. A nil meter
// uses the global meter provider.
func NewProviderMetrics(meter metric.Meter) (*ProviderMetrics, error) {
	if meter == nil {
		meter = otel.Meter(meterName)
	}

	requestDuration, err := meter.Float64Histogram(
		"provider.request.duration",
		metric.WithDescription("Duration of provider requests in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	requestTotal, err := meter.Int64Counter(
		"provider.request.total",
		metric.WithDescription("Total number of provider requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	cacheHits, err := meter.Int64Counter(
		"provider.cache.hit",
		metric.WithDescription("Forecast cache hits"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return nil, err
	}

	cacheMisses, err := meter.Int64Counter(
		"provider.cache.miss",
		metric.WithDescription("Forecast cache misses"),
		metric.WithUnit("{miss}"),
	)
	if err != nil {
		return nil, err
	}

	return &ProviderMetrics{
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
	}, nil
}

// RecordRequest records one upstream call. A nil receiver is a no-op.
func (m *ProviderMetrics) RecordRequest(provider string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("provider.name", provider),
		attribute.Bool("error", err != nil),
	}
	ctx := context.Background()
	m.requestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.requestTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordCacheHit counts a cache hit. A nil receiver is a no-op.
func (m *ProviderMetrics) RecordCacheHit(provider string) {
	if m == nil {
		return
	}
	m.cacheHits.Add(context.Background(), 1, metric.WithAttributes(attribute.String("provider.name", provider)))
}

// RecordCacheMiss counts a cache miss. A nil receiver is a no-op.
func (m *ProviderMetrics) RecordCacheMiss(provider string) {
	if m == nil {
		return
	}
	m.cacheMisses.Add(context.Background(), 1, metric.WithAttributes(attribute.String("provider.name", provider)))
}

// RankingMetrics records route scoring outcomes.
type RankingMetrics struct {
	routeScore    metric.Float64Histogram
	routeFailures metric.Int64Counter
	runDuration   metric.Float64Histogram
}

// NewRankingMetrics creates the ranking instruments on meter. A nil meter
// uses the global meter provider.
func NewRankingMetrics(meter metric.Meter) (*RankingMetrics, error) {
	if meter == nil {
		meter = otel.Meter(meterName)
	}

	routeScore, err := meter.Float64Histogram(
		"routes.score",
		metric.WithDescription("Distribution of route weather scores"),
		metric.WithExplicitBucketBoundaries(1, 2, 3, 4, 5, 6, 7, 8, 9, 10),
	)
	if err != nil {
		return nil, err
	}

	routeFailures, err := meter.Int64Counter(
		"routes.failures",
		metric.WithDescription("Routes dropped because weather could not be aggregated"),
		metric.WithUnit("{route}"),
	)
	if err != nil {
		return nil, err
	}

	runDuration, err := meter.Float64Histogram(
		"routes.rank.duration",
		metric.WithDescription("Duration of a ranking run in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &RankingMetrics{
		routeScore:    routeScore,
		routeFailures: routeFailures,
		runDuration:   runDuration,
	}, nil
}

// RecordScore records the score of one ranked route.
func (m *RankingMetrics) RecordScore(ctx context.Context, score float64) {
	if m == nil {
		return
	}
	m.routeScore.Record(ctx, score)
}

// RecordFailure counts one route that could not be scored.
func (m *RankingMetrics) RecordFailure(ctx context.Context) {
	if m == nil {
		return
	}
	m.routeFailures.Add(ctx, 1)
}

// RecordRun records the duration of a ranking run over routes routes.
func (m *RankingMetrics) RecordRun(ctx context.Context, routes int, duration time.Duration) {
	if m == nil {
		return
	}
	m.runDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.Int("routes.count", routes)))
}
