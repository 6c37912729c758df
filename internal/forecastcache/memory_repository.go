package forecastcache

import (
	"context"
	"sync"
	"time"

	"github.com/routecast/routecast/internal/forecast"
)

// MemoryRepository is an in-memory Repository. Payloads are kept
// uncompressed and copied on the way in and out.
type MemoryRepository struct {
	mu      sync.RWMutex
	entries map[string]Entry
	now     func() time.Time
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		entries: make(map[string]Entry),
		now:     time.Now,
	}
}

// Get implements forecast.Cache.
func (r *MemoryRepository) Get(_ context.Context, lat, lon float64, day string) ([]byte, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[forecast.CacheKey(lat, lon, day)]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), e.Payload...), true, nil
}

// Put implements forecast.Cache.
func (r *MemoryRepository) Put(_ context.Context, lat, lon float64, day string, payload []byte) error {
	key := forecast.CacheKey(lat, lon, day)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[key] = Entry{
		Key:      key,
		Day:      day,
		Payload:  append([]byte(nil), payload...),
		CachedAt: r.now().UTC(),
	}
	return nil
}

// Lookup implements Repository.
func (r *MemoryRepository) Lookup(_ context.Context, key string) (*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	e.Payload = append([]byte(nil), e.Payload...)
	return &e, nil
}

// Stats implements Repository.
func (r *MemoryRepository) Stats(context.Context) (Stats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Stats{Driver: "memory", Entries: len(r.entries)}, nil
}

// Ping implements Repository.
func (r *MemoryRepository) Ping(context.Context) error { return nil }

// Close implements Repository.
func (r *MemoryRepository) Close() error { return nil }
