package track

import "github.com/routecast/routecast/internal/geo"

// Heading estimates the overall direction of travel: the initial bearing from
// the first to the last point of the first sequence holding at least two
// points. It returns 0 when no such sequence exists.
func Heading(t Track) float64 {
	for _, seq := range t.Tracks {
		pts := seq.headingPoints()
		if len(pts) >= 2 {
			return geo.InitialBearing(pts[0], pts[len(pts)-1])
		}
	}
	return 0
}
