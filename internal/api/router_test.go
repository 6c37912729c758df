package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/routecast/routecast/internal/api"
	"github.com/routecast/routecast/internal/api/models"
	"github.com/routecast/routecast/internal/events"
	"github.com/routecast/routecast/internal/forecast"
	"github.com/routecast/routecast/internal/forecast/forecasttest"
	"github.com/routecast/routecast/internal/forecastcache"
	"github.com/routecast/routecast/internal/provider/resilience"
	"github.com/routecast/routecast/internal/ranking"
	"github.com/routecast/routecast/internal/weather"
)

const testKey = "test-weather-key"

type testEnv struct {
	router   http.Handler
	provider *forecasttest.Provider
	ring     *events.Ring
	cache    forecastcache.Repository
}

// newTestEnv wires the full pipeline against a stub provider. Points north
// of 50° get calm weather, points south of it a strong wind.
func newTestEnv(t *testing.T, defaultKey string) *testEnv {
	t.Helper()

	provider := &forecasttest.Provider{
		Respond: func(req forecast.Request) (*forecast.Payload, error) {
			c := forecast.Conditions{WindSpeed: 5, WindDir: 90, Temp: 18, Humidity: 50, Visibility: 20}
			if req.Lat < 50 {
				c.WindSpeed = 40
			}
			return forecasttest.DayPayload(c), nil
		},
	}
	return newTestEnvWithProvider(t, provider, defaultKey)
}

func newTestEnvWithProvider(t *testing.T, provider *forecasttest.Provider, defaultKey string) *testEnv {
	t.Helper()
	logger := zerolog.New(io.Discard)

	ring := events.NewRing(100)
	cache := forecastcache.NewMemoryRepository()
	forecasts := forecast.NewService(forecast.ServiceConfig{
		Provider: provider,
		Cache:    cache,
		Sink:     ring,
		Logger:   logger,
	})
	aggregator := weather.NewAggregator(weather.AggregatorConfig{
		Fetcher: forecasts,
		Sink:    ring,
		Logger:  logger,
	})
	rankingSvc := ranking.NewService(ranking.ServiceConfig{
		Aggregator: aggregator,
		Sink:       ring,
		Logger:     logger,
	})

	registry := resilience.NewRegistry()
	resilience.NewClient(resilience.ClientConfig{Name: "visualcrossing", Registry: registry})

	router := api.NewRouter(api.RouterConfig{
		Version:       "test",
		BuildTime:     "2026-01-01T00:00:00Z",
		Logger:        logger,
		Ranking:       rankingSvc,
		Events:        ring,
		Cache:         cache,
		Registry:      registry,
		DefaultAPIKey: defaultKey,
	})
	return &testEnv{router: router, provider: provider, ring: ring, cache: cache}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, key string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader = http.NoBody
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if key != "" {
		req.Header.Set("X-Weather-Api-Key", key)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// routeInput builds a northbound route of n points starting at lat.
func routeInput(name string, lat float64, n int) models.RouteInput {
	points := make([]models.Point, n)
	for i := range points {
		points[i] = models.Point{Lat: lat + float64(i)*0.02, Lon: 6.1}
	}
	return models.RouteInput{
		Name: name,
		Track: models.TrackInput{
			Tracks:   []models.SequenceInput{{Points: points}},
			Distance: float64(n-1) * 2224,
		},
	}
}

func scoreRequest(target string, routes ...models.RouteInput) models.ScoreRequest {
	return models.ScoreRequest{Target: target, Routes: routes}
}

func decodeProblem(t *testing.T, w *httptest.ResponseRecorder) models.Problem {
	t.Helper()
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
	var p models.Problem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	return p
}

func TestRouter_HealthCheck(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(t, http.MethodGet, "/v1/ops/health", nil, "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))

	var health models.Health
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, models.HealthStatusOK, health.Status)
	assert.Equal(t, "test", health.Details["version"])
}

func TestRouter_ReadinessCheck(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(t, http.MethodGet, "/v1/ops/ready", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	down := api.NewRouter(api.RouterConfig{
		Logger: zerolog.New(io.Discard),
		Cache:  unreachableCache{forecastcache.NewMemoryRepository()},
	})
	w = httptest.NewRecorder()
	down.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/ops/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

type unreachableCache struct {
	*forecastcache.MemoryRepository
}

func (unreachableCache) Ping(context.Context) error {
	return errors.New("connection refused")
}

func TestRouter_SystemStatus(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(t, http.MethodGet, "/v1/ops/status", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	var status models.SystemStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, models.HealthStatusOK, status.Status)

	require.Len(t, status.Providers, 1)
	assert.Equal(t, "visualcrossing", status.Providers[0].Provider)
	assert.Equal(t, "closed", status.Providers[0].CircuitState)

	names := make([]string, 0, len(status.Subsystems))
	for _, s := range status.Subsystems {
		names = append(names, s.Name)
	}
	assert.ElementsMatch(t, []string{"forecast-cache", "events"}, names)
}

func TestRouter_SecurityHeaders(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(t, http.MethodGet, "/v1/ops/health", nil, "")

	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, w.Header().Get("Strict-Transport-Security"))
}

func TestRouter_ScoreRoutes_RanksByScore(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(t, http.MethodPost, "/v1/routes:score", scoreRequest("2026-05-01",
		routeInput("coast", 48.0, 6),
		routeInput("hills", 52.0, 6),
	), testKey)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp models.RankingResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Routes, 2)

	assert.Equal(t, "hills", resp.Routes[0].Name)
	assert.Equal(t, 1, resp.Routes[0].Rank)
	assert.Equal(t, 10.0, resp.Routes[0].Score)
	assert.Equal(t, "good", resp.Routes[0].Color)
	assert.Equal(t, "5 km/h • 18°C • 50% • 20 km", resp.Routes[0].Conditions)
	assert.Equal(t, "0", resp.Routes[0].Breakdown.Display["wind"])
	assert.NotEmpty(t, resp.Routes[0].PathPolyline)
	assert.NotEmpty(t, resp.Routes[0].Waypoints)

	assert.Equal(t, "coast", resp.Routes[1].Name)
	assert.Equal(t, 2, resp.Routes[1].Rank)
	assert.Equal(t, 7.0, resp.Routes[1].Score)
	assert.Equal(t, "-3.0", resp.Routes[1].Breakdown.Display["wind"])
	assert.Equal(t, "2026-05-01", resp.Target)

	for _, req := range env.provider.Requests() {
		assert.Equal(t, testKey, req.APIKey)
	}
}

func TestRouter_ScoreRoutes_UsesDefaultKey(t *testing.T) {
	env := newTestEnv(t, "server-key")

	w := env.do(t, http.MethodPost, "/v1/routes:score", scoreRequest("2026-05-01", routeInput("a", 52, 3)), "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	reqs := env.provider.Requests()
	require.NotEmpty(t, reqs)
	assert.Equal(t, "server-key", reqs[0].APIKey)
}

func TestRouter_ScoreRoutes_MissingKey(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(t, http.MethodPost, "/v1/routes:score", scoreRequest("2026-05-01", routeInput("a", 52, 3)), "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	p := decodeProblem(t, w)
	require.Len(t, p.Errors, 1)
	assert.Equal(t, "X-Weather-Api-Key", p.Errors[0].Field)
	assert.Zero(t, env.provider.Calls())
}

func TestRouter_ScoreRoutes_Validation(t *testing.T) {
	env := newTestEnv(t, "")

	tests := []struct {
		name      string
		body      any
		wantField string
	}{
		{"no routes", models.ScoreRequest{Target: "2026-05-01"}, "routes"},
		{"no target", scoreRequest("", routeInput("a", 52, 3)), "target"},
		{"bad target", scoreRequest("tomorrow", routeInput("a", 52, 3)), "target"},
		{"unnamed route", scoreRequest("2026-05-01", routeInput("", 52, 3)), "routes[0].name"},
		{"latitude out of range", scoreRequest("2026-05-01", routeInput("a", 95, 3)), "routes[0].track.tracks[0].points[0].lat"},
		{"bad interval", models.ScoreRequest{Target: "2026-05-01", IntervalKm: ptr(-1.0), Routes: []models.RouteInput{routeInput("a", 52, 3)}}, "intervalKm"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/v1/routes:score", tt.body, testKey)
			require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

			p := decodeProblem(t, w)
			fields := make([]string, 0, len(p.Errors))
			for _, fe := range p.Errors {
				fields = append(fields, fe.Field)
			}
			assert.Contains(t, fields, tt.wantField)
		})
	}
	assert.Zero(t, env.provider.Calls())
}

func TestRouter_ScoreRoutes_MalformedJSON(t *testing.T) {
	env := newTestEnv(t, "")

	req := httptest.NewRequest(http.MethodPost, "/v1/routes:score", strings.NewReader(`{"target":`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_ScoreRoutes_WrongContentType(t *testing.T) {
	env := newTestEnv(t, "")

	req := httptest.NewRequest(http.MethodPost, "/v1/routes:score", strings.NewReader("target=2026-05-01"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}

func TestRouter_ScoreRoutes_UpstreamFailure(t *testing.T) {
	provider := &forecasttest.Provider{
		Respond: func(forecast.Request) (*forecast.Payload, error) {
			return nil, &forecast.FetchError{StatusCode: http.StatusUnauthorized}
		},
	}
	env := newTestEnvWithProvider(t, provider, "")

	w := env.do(t, http.MethodPost, "/v1/routes:score", scoreRequest("2026-05-01", routeInput("a", 52, 3)), "bad-key")

	assert.Equal(t, http.StatusBadGateway, w.Code)
	p := decodeProblem(t, w)
	assert.Contains(t, p.Detail, "weather fetch failed (401)")
}

func TestRouter_ScoreRoutes_PartialFailure(t *testing.T) {
	provider := &forecasttest.Provider{
		Respond: func(req forecast.Request) (*forecast.Payload, error) {
			if req.Lat < 50 {
				return nil, &forecast.FetchError{StatusCode: http.StatusInternalServerError}
			}
			return forecasttest.DayPayload(forecast.Conditions{WindSpeed: 5, Temp: 18, Humidity: 50, Visibility: 20}), nil
		},
	}
	env := newTestEnvWithProvider(t, provider, "")

	w := env.do(t, http.MethodPost, "/v1/routes:score", scoreRequest("2026-05-01",
		routeInput("south", 48, 3),
		routeInput("north", 52, 3),
	), testKey)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp models.RankingResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Routes, 1)
	assert.Equal(t, "north", resp.Routes[0].Name)
	require.Len(t, resp.Failures, 1)
	assert.Equal(t, "south", resp.Failures[0].Name)
}

const uploadGPX = `<?xml version="1.0" encoding="UTF-8"?>
<gpx version="1.1" creator="test" xmlns="http://www.topografix.com/GPX/1/1">
  <trk><trkseg>
    <trkpt lat="%.4f" lon="6.1"></trkpt>
    <trkpt lat="%.4f" lon="6.1"></trkpt>
    <trkpt lat="%.4f" lon="6.1"></trkpt>
  </trkseg></trk>
</gpx>`

func gpxFor(lat float64) string {
	return fmt.Sprintf(uploadGPX, lat, lat+0.05, lat+0.1)
}

func multipartUpload(t *testing.T, target string, files map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("target", target))
	for name, content := range files {
		fw, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = io.WriteString(fw, content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/routes:upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-Weather-Api-Key", testKey)
	return req
}

func TestRouter_UploadRoutes(t *testing.T) {
	env := newTestEnv(t, "")

	req := multipartUpload(t, "2026-05-01T08:00", map[string]string{
		"south.gpx": gpxFor(47.5),
		"north.gpx": gpxFor(52.5),
	})
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp models.RankingResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Routes, 2)
	assert.Equal(t, "north.gpx", resp.Routes[0].Name)
	assert.Equal(t, "south.gpx", resp.Routes[1].Name)
	assert.InDelta(t, 11120, resp.Routes[0].DistanceMeters, 100)
	assert.InDelta(t, 0, resp.Routes[0].HeadingDeg, 1e-6)
}

func TestRouter_UploadRoutes_InvalidGPX(t *testing.T) {
	env := newTestEnv(t, "")

	req := multipartUpload(t, "2026-05-01", map[string]string{"broken.gpx": "not xml"})
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	p := decodeProblem(t, w)
	require.Len(t, p.Errors, 1)
	assert.Equal(t, "files[0]", p.Errors[0].Field)
}

func TestRouter_UploadRoutes_NoFiles(t *testing.T) {
	env := newTestEnv(t, "")

	req := multipartUpload(t, "2026-05-01", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_Sessions(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(t, http.MethodPost, "/v1/sessions", scoreRequest("2026-05-01",
		routeInput("coast", 48.0, 4),
		routeInput("hills", 52.0, 4),
	), testKey)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created models.Session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)
	assert.Equal(t, "/v1/sessions/"+created.ID, w.Header().Get("Location"))
	assert.Equal(t, uint64(1), created.Generation)
	assert.Equal(t, []string{"coast", "hills"}, created.Routes)
	require.NotNil(t, created.Ranking)
	assert.Equal(t, "hills", created.Ranking.Routes[0].Name)

	w = env.do(t, http.MethodGet, "/v1/sessions/"+created.ID, nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPut, "/v1/sessions/"+created.ID+"/target",
		models.SessionTargetRequest{Target: "2026-05-02T07:30"}, testKey)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var updated models.Session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	assert.Equal(t, uint64(2), updated.Generation)
	assert.Equal(t, "2026-05-02T07:30", updated.Target)
	require.NotNil(t, updated.Ranking)
	assert.Equal(t, "2026-05-02T07:30", updated.Ranking.Target)

	w = env.do(t, http.MethodDelete, "/v1/sessions/"+created.ID, nil, "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(t, http.MethodGet, "/v1/sessions/"+created.ID, nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_Sessions_AsyncTarget(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(t, http.MethodPost, "/v1/sessions", scoreRequest("2026-05-01", routeInput("hills", 52.0, 4)), testKey)
	require.Equal(t, http.StatusCreated, w.Code)
	var created models.Session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = env.do(t, http.MethodPut, "/v1/sessions/"+created.ID+"/target?async=true",
		models.SessionTargetRequest{Target: "2026-05-03"}, testKey)
	require.Equal(t, http.StatusAccepted, w.Code)

	require.Eventually(t, func() bool {
		w := env.do(t, http.MethodGet, "/v1/sessions/"+created.ID, nil, "")
		var s models.Session
		if json.Unmarshal(w.Body.Bytes(), &s) != nil {
			return false
		}
		return !s.Running && s.Ranking != nil && s.Ranking.Target == "2026-05-03"
	}, 2*time.Second, 50*time.Millisecond)
}

func TestRouter_Sessions_TargetAllRoutesFail(t *testing.T) {
	provider := &forecasttest.Provider{
		Respond: func(req forecast.Request) (*forecast.Payload, error) {
			if req.APIKey != testKey {
				return nil, &forecast.FetchError{StatusCode: http.StatusUnauthorized}
			}
			return forecasttest.DayPayload(forecast.Conditions{WindSpeed: 5, Temp: 18, Humidity: 50, Visibility: 20}), nil
		},
	}
	env := newTestEnvWithProvider(t, provider, "")

	w := env.do(t, http.MethodPost, "/v1/sessions", scoreRequest("2026-05-01", routeInput("hills", 52.0, 4)), testKey)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created models.Session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = env.do(t, http.MethodPut, "/v1/sessions/"+created.ID+"/target",
		models.SessionTargetRequest{Target: "2026-05-02"}, "bad-key")

	assert.Equal(t, http.StatusBadGateway, w.Code)
	p := decodeProblem(t, w)
	assert.Contains(t, p.Detail, "weather fetch failed (401)")
}

func TestRouter_Sessions_NotFound(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(t, http.MethodGet, "/v1/sessions/does-not-exist", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodPut, "/v1/sessions/does-not-exist/target",
		models.SessionTargetRequest{Target: "2026-05-01"}, testKey)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodDelete, "/v1/sessions/does-not-exist", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_Events(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(t, http.MethodPost, "/v1/routes:score", scoreRequest("2026-05-01", routeInput("hills", 52, 3)), testKey)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/v1/events", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var list models.EventList
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, len(list.Items), list.Count)

	types := map[string]int{}
	for _, ev := range list.Items {
		types[ev.Type]++
	}
	assert.Positive(t, types[string(events.TypeWeatherFetch)])
	assert.Equal(t, 1, types[string(events.TypeWeatherAggregate)])
	assert.Equal(t, 1, types[string(events.TypeRouteWeather)])

	w = env.do(t, http.MethodGet, "/v1/events?type=route:weather", nil, "")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Items, 1)
	assert.Equal(t, "hills", list.Items[0].Data["route"])

	w = env.do(t, http.MethodDelete, "/v1/events", nil, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Zero(t, env.ring.Len())
}

func TestRouter_NotFound(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(t, http.MethodGet, "/v1/nonexistent", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_CacheSharedAcrossRequests(t *testing.T) {
	env := newTestEnv(t, "")
	body := scoreRequest("2026-05-01", routeInput("hills", 52, 3))

	w := env.do(t, http.MethodPost, "/v1/routes:score", body, testKey)
	require.Equal(t, http.StatusOK, w.Code)
	first := env.provider.Calls()

	w = env.do(t, http.MethodPost, "/v1/routes:score", body, testKey)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, first, env.provider.Calls())

	stats, err := env.cache.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, stats.Entries)
}

func ptr[T any](v T) *T {
	return &v
}
