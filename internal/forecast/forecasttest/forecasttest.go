// Package forecasttest provides a scriptable forecast.Provider for tests.
package forecasttest

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/routecast/routecast/internal/forecast"
)

// Provider is an in-memory forecast.Provider. Respond builds the payload for
// each request; when nil every request gets an empty payload.
type Provider struct {
	Respond func(req forecast.Request) (*forecast.Payload, error)
	Delay   time.Duration

	mu    sync.Mutex
	calls []forecast.Request
}

// Name implements forecast.Provider.
func (p *Provider) Name() string {
	return "stub"
}

// Fetch implements forecast.Provider.
func (p *Provider) Fetch(ctx context.Context, req forecast.Request) (*forecast.Response, error) {
	p.mu.Lock()
	p.calls = append(p.calls, req)
	p.mu.Unlock()

	if p.Delay > 0 {
		select {
		case <-ctx.Done():
			return nil, &forecast.FetchError{Err: ctx.Err()}
		case <-time.After(p.Delay):
		}
	}

	payload := &forecast.Payload{}
	if p.Respond != nil {
		var err error
		payload, err = p.Respond(req)
		if err != nil {
			return nil, err
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &forecast.Response{Body: body, StatusCode: 200, URL: "stub://" + forecast.CacheKey(req.Lat, req.Lon, req.Target.Day)}, nil
}

// Calls returns the number of Fetch calls so far.
func (p *Provider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

// Requests returns a copy of the recorded requests.
func (p *Provider) Requests() []forecast.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]forecast.Request(nil), p.calls...)
}

// DayPayload returns a payload whose first day carries c and the given hours.
func DayPayload(c forecast.Conditions, hours ...forecast.Conditions) *forecast.Payload {
	return &forecast.Payload{Days: []forecast.Day{{Conditions: c, Hours: hours}}}
}

// MapCache is a minimal forecast.Cache backed by a map.
type MapCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	GetErr  error
	PutErr  error
}

// NewMapCache creates an empty MapCache.
func NewMapCache() *MapCache {
	return &MapCache{entries: make(map[string][]byte)}
}

// Get implements forecast.Cache.
func (c *MapCache) Get(_ context.Context, lat, lon float64, day string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.GetErr != nil {
		return nil, false, c.GetErr
	}
	v, ok := c.entries[forecast.CacheKey(lat, lon, day)]
	return v, ok, nil
}

// Put implements forecast.Cache.
func (c *MapCache) Put(_ context.Context, lat, lon float64, day string, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.PutErr != nil {
		return c.PutErr
	}
	c.entries[forecast.CacheKey(lat, lon, day)] = payload
	return nil
}

// Len returns the number of stored entries.
func (c *MapCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
