package forecast_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/routecast/routecast/internal/events"
	"github.com/routecast/routecast/internal/forecast"
	"github.com/routecast/routecast/internal/forecast/forecasttest"
)

func newService(p forecast.Provider, c forecast.Cache, sink events.Sink) *forecast.Service {
	return forecast.NewService(forecast.ServiceConfig{
		Provider: p,
		Cache:    c,
		Sink:     sink,
		Logger:   zerolog.Nop(),
	})
}

func TestService_FetchCachesByDay(t *testing.T) {
	provider := &forecasttest.Provider{
		Respond: func(req forecast.Request) (*forecast.Payload, error) {
			return forecasttest.DayPayload(forecast.Conditions{WindSpeed: 11, Temp: 17}), nil
		},
	}
	cache := forecasttest.NewMapCache()
	svc := newService(provider, cache, nil)
	ctx := context.Background()

	first, err := svc.Fetch(ctx, "key", 52.1, 4.3, forecast.MustParseTarget("2024-05-01T08:00", nil))
	require.NoError(t, err)
	assert.InDelta(t, 11.0, first.Days[0].WindSpeed, 1e-9)
	assert.Equal(t, 1, provider.Calls())
	assert.Equal(t, 1, cache.Len())

	// Same day, different time: served from cache.
	second, err := svc.Fetch(ctx, "key", 52.1, 4.3, forecast.MustParseTarget("2024-05-01T18:00", nil))
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// Day-only target for the same day also hits the cache.
	_, err = svc.Fetch(ctx, "key", 52.1, 4.3, forecast.MustParseTarget("2024-05-01", nil))
	require.NoError(t, err)
	assert.Equal(t, 1, provider.Calls())

	// A different day misses.
	_, err = svc.Fetch(ctx, "key", 52.1, 4.3, forecast.MustParseTarget("2024-05-02", nil))
	require.NoError(t, err)
	assert.Equal(t, 2, provider.Calls())
}

func TestService_RequestCarriesTarget(t *testing.T) {
	provider := &forecasttest.Provider{}
	svc := newService(provider, forecasttest.NewMapCache(), nil)

	_, err := svc.Fetch(context.Background(), "k", 1, 2, forecast.MustParseTarget("2024-05-01T10:00", nil))
	require.NoError(t, err)

	reqs := provider.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "k", reqs[0].APIKey)
	assert.Equal(t, forecast.IncludeHours, reqs[0].Target.Include())
	assert.Equal(t, "2024-05-01", reqs[0].Target.Day)
}

func TestService_FetchErrorIsNotCached(t *testing.T) {
	provider := &forecasttest.Provider{
		Respond: func(forecast.Request) (*forecast.Payload, error) {
			return nil, &forecast.FetchError{StatusCode: 429}
		},
	}
	cache := forecasttest.NewMapCache()
	svc := newService(provider, cache, nil)

	_, err := svc.Fetch(context.Background(), "k", 1, 2, forecast.MustParseTarget("2024-05-01", nil))
	var fe *forecast.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, 429, fe.StatusCode)
	assert.Equal(t, 0, cache.Len())
}

func TestService_TransportErrorWrapped(t *testing.T) {
	cause := errors.New("connection reset")
	provider := &forecasttest.Provider{
		Respond: func(forecast.Request) (*forecast.Payload, error) { return nil, cause },
	}
	svc := newService(provider, forecasttest.NewMapCache(), nil)

	_, err := svc.Fetch(context.Background(), "k", 1, 2, forecast.MustParseTarget("2024-05-01", nil))
	var fe *forecast.FetchError
	require.ErrorAs(t, err, &fe)
	assert.ErrorIs(t, err, cause)
}

func TestService_CacheReadErrorIsMiss(t *testing.T) {
	provider := &forecasttest.Provider{}
	cache := forecasttest.NewMapCache()
	cache.GetErr = errors.New("disk on fire")
	svc := newService(provider, cache, nil)

	_, err := svc.Fetch(context.Background(), "k", 1, 2, forecast.MustParseTarget("2024-05-01", nil))
	require.NoError(t, err)
	assert.Equal(t, 1, provider.Calls())
}

func TestService_CacheWriteErrorDoesNotFail(t *testing.T) {
	provider := &forecasttest.Provider{}
	cache := forecasttest.NewMapCache()
	cache.PutErr = errors.New("read-only")
	svc := newService(provider, cache, nil)

	p, err := svc.Fetch(context.Background(), "k", 1, 2, forecast.MustParseTarget("2024-05-01", nil))
	require.NoError(t, err)
	assert.NotNil(t, p)
}

func TestService_CorruptCacheEntryRefetches(t *testing.T) {
	provider := &forecasttest.Provider{}
	cache := forecasttest.NewMapCache()
	require.NoError(t, cache.Put(context.Background(), 1, 2, "2024-05-01", []byte("{not json")))
	svc := newService(provider, cache, nil)

	_, err := svc.Fetch(context.Background(), "k", 1, 2, forecast.MustParseTarget("2024-05-01", nil))
	require.NoError(t, err)
	assert.Equal(t, 1, provider.Calls())
}

func TestService_Validation(t *testing.T) {
	provider := &forecasttest.Provider{}
	svc := newService(provider, forecasttest.NewMapCache(), nil)
	target := forecast.MustParseTarget("2024-05-01", nil)

	_, err := svc.Fetch(context.Background(), "k", 91, 0, target)
	assert.ErrorIs(t, err, forecast.ErrInvalidCoordinates)

	_, err = svc.Fetch(context.Background(), "", 1, 2, target)
	assert.ErrorIs(t, err, forecast.ErrMissingAPIKey)
	assert.Equal(t, 0, provider.Calls())
}

func TestService_CacheHitWithoutAPIKey(t *testing.T) {
	provider := &forecasttest.Provider{}
	cache := forecasttest.NewMapCache()
	require.NoError(t, cache.Put(context.Background(), 1, 2, "2024-05-01", []byte(`{"days":[{"windspeed":5}]}`)))
	svc := newService(provider, cache, nil)

	p, err := svc.Fetch(context.Background(), "", 1, 2, forecast.MustParseTarget("2024-05-01", nil))
	require.NoError(t, err)
	assert.InDelta(t, 5.0, p.Days[0].WindSpeed, 1e-9)
	assert.Equal(t, 0, provider.Calls())
}

func TestService_ConcurrentMissesShareFetch(t *testing.T) {
	provider := &forecasttest.Provider{Delay: 50 * time.Millisecond}
	svc := newService(provider, forecasttest.NewMapCache(), nil)
	target := forecast.MustParseTarget("2024-05-01", nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Fetch(context.Background(), "k", 1, 2, target)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, provider.Calls())
}

func TestService_CallerCancellation(t *testing.T) {
	provider := &forecasttest.Provider{Delay: time.Second}
	svc := newService(provider, forecasttest.NewMapCache(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := svc.Fetch(ctx, "k", 1, 2, forecast.MustParseTarget("2024-05-01", nil))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestService_EmitsFetchEvent(t *testing.T) {
	provider := &forecasttest.Provider{
		Respond: func(forecast.Request) (*forecast.Payload, error) {
			return forecasttest.DayPayload(forecast.Conditions{WindSpeed: 9}), nil
		},
	}
	ring := events.NewRing(10)
	svc := newService(provider, forecasttest.NewMapCache(), ring)

	_, err := svc.Fetch(context.Background(), "k", 1, 2, forecast.MustParseTarget("2024-05-01", nil))
	require.NoError(t, err)

	entries := ring.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, events.TypeWeatherFetch, entries[0].Type)
	assert.Equal(t, "2024-05-01", entries[0].Data["dateIso"])
	assert.Equal(t, 200, entries[0].Data["status"])
	assert.Equal(t, forecast.Summary{WindSpeed: 9}, entries[0].Data["summary"])

	// Cache hits do not emit.
	_, err = svc.Fetch(context.Background(), "k", 1, 2, forecast.MustParseTarget("2024-05-01", nil))
	require.NoError(t, err)
	assert.Equal(t, 1, ring.Len())
}

func TestService_PanickingSinkDoesNotFail(t *testing.T) {
	sink := events.SinkFunc(func(context.Context, events.Event) { panic("sink exploded") })
	svc := newService(&forecasttest.Provider{}, forecasttest.NewMapCache(), sink)

	_, err := svc.Fetch(context.Background(), "k", 1, 2, forecast.MustParseTarget("2024-05-01", nil))
	assert.NoError(t, err)
}
