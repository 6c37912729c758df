// Package track models parsed GPS tracks and reduces them to forecast waypoints.
package track

import (
	"github.com/routecast/routecast/internal/geo"
)

// DefaultIntervalKm is the default spacing between sampled waypoints.
const DefaultIntervalKm = 10.0

// Segment is a contiguous run of points inside a sequence.
type Segment struct {
	Points []geo.Point `json:"points"`
}

// Sequence is one track of a parsed file. A sequence carries either Points
// directly or a list of Segments.
type Sequence struct {
	Name     string      `json:"name,omitempty"`
	Points   []geo.Point `json:"points,omitempty"`
	Segments []Segment   `json:"segments,omitempty"`
}

// Track is a parsed route: ordered sequences plus the total distance in meters.
// It is read-only to the scoring pipeline.
type Track struct {
	Tracks   []Sequence `json:"tracks"`
	Distance float64    `json:"distance"`
}

// Points flattens every sequence into a single ordered slice. Points with a
// zero latitude or longitude are treated as missing and skipped.
func (t Track) Points() []geo.Point {
	var points []geo.Point
	for _, seq := range t.Tracks {
		for _, run := range seq.runs() {
			for _, p := range run {
				if p.Lat != 0 && p.Lon != 0 {
					points = append(points, p)
				}
			}
		}
	}
	return points
}

// Waypoints samples the flattened track at the given interval.
func (t Track) Waypoints(intervalKm float64) []geo.Point {
	return Sample(t.Points(), t.Distance, intervalKm)
}

// runs returns the point runs of a sequence: its own points if present,
// otherwise each segment in order.
func (s Sequence) runs() [][]geo.Point {
	if s.Points != nil {
		return [][]geo.Point{s.Points}
	}
	runs := make([][]geo.Point, 0, len(s.Segments))
	for _, seg := range s.Segments {
		runs = append(runs, seg.Points)
	}
	return runs
}

// headingPoints returns the points used for heading estimation: the sequence's
// own points, or its first segment.
func (s Sequence) headingPoints() []geo.Point {
	if s.Points != nil {
		return s.Points
	}
	if len(s.Segments) > 0 {
		return s.Segments[0].Points
	}
	return nil
}
