// Package gpxfile decodes GPX documents into tracks for the scoring pipeline.
package gpxfile

import (
	"fmt"
	"io"

	"github.com/tkrajina/gpxgo/gpx"

	"github.com/routecast/routecast/internal/geo"
	"github.com/routecast/routecast/internal/track"
)

// Parse reads a GPX document and converts every GPX track into a sequence of
// segments. Planned routes (<rte>) become point sequences after the tracks.
// The total distance is the 2D track length reported by the GPX library plus
// the haversine length of each route.
func Parse(r io.Reader) (track.Track, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return track.Track{}, fmt.Errorf("reading gpx: %w", err)
	}

	doc, err := gpx.ParseBytes(data)
	if err != nil {
		return track.Track{}, fmt.Errorf("parsing gpx: %w", err)
	}

	return fromGPX(doc), nil
}

func fromGPX(doc *gpx.GPX) track.Track {
	t := track.Track{
		Tracks:   make([]track.Sequence, 0, len(doc.Tracks)),
		Distance: doc.Length2D(),
	}

	for _, gt := range doc.Tracks {
		seq := track.Sequence{
			Name:     gt.Name,
			Segments: make([]track.Segment, 0, len(gt.Segments)),
		}
		for _, gs := range gt.Segments {
			seg := track.Segment{Points: make([]geo.Point, 0, len(gs.Points))}
			for _, p := range gs.Points {
				seg.Points = append(seg.Points, geo.Point{Lat: p.Latitude, Lon: p.Longitude})
			}
			seq.Segments = append(seq.Segments, seg)
		}
		t.Tracks = append(t.Tracks, seq)
	}

	for _, rt := range doc.Routes {
		points := make([]geo.Point, 0, len(rt.Points))
		for _, p := range rt.Points {
			points = append(points, geo.Point{Lat: p.Latitude, Lon: p.Longitude})
		}
		t.Tracks = append(t.Tracks, track.Sequence{Name: rt.Name, Points: points})
		t.Distance += geo.PathLength(points)
	}

	return t
}
