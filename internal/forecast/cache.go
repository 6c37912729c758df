package forecast

import (
	"context"
	"fmt"
)

// Cache persists raw provider payloads keyed by point and day. Entries never
// expire and a later Put for the same key replaces the earlier one.
type Cache interface {
	// Get returns the payload stored for the key, with ok false on a miss.
	Get(ctx context.Context, lat, lon float64, day string) (payload []byte, ok bool, err error)
	// Put stores payload for the key.
	Put(ctx context.Context, lat, lon float64, day string, payload []byte) error
}

// CacheKey formats the cache key for a point and day. Coordinates are fixed
// to four decimals, so points within roughly 11 m share an entry.
func CacheKey(lat, lon float64, day string) string {
	return fmt.Sprintf("%.4f,%.4f:%s", lat, lon, day)
}
