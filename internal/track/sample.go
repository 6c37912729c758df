package track

import (
	"math"

	"github.com/routecast/routecast/internal/geo"
)

// Sample reduces a dense point sequence to waypoints spaced roughly
// intervalKm apart. Spacing is by index stride over the total distance, not
// by cumulative arc length: the stride is N / floor(distance / interval), so
// tracks with uneven point density get uneven spacing. The first and last
// points are always included.
func Sample(points []geo.Point, distanceMeters, intervalKm float64) []geo.Point {
	n := len(points)
	if n == 0 {
		return nil
	}
	if intervalKm <= 0 {
		intervalKm = DefaultIntervalKm
	}

	target := 0
	if distanceMeters > 0 {
		target = int(math.Floor(distanceMeters / (intervalKm * 1000)))
	}
	target = max(1, target)
	step := max(1, n/target)

	sampled := make([]geo.Point, 0, n/step+2)
	last := 0
	for i := 0; i < n; i += step {
		sampled = append(sampled, points[i])
		last = i
	}
	if last != n-1 {
		sampled = append(sampled, points[n-1])
	}

	return sampled
}
