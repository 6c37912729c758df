package handler

import (
	"github.com/routecast/routecast/internal/api/models"
	"github.com/routecast/routecast/internal/events"
	"github.com/routecast/routecast/internal/geo"
	"github.com/routecast/routecast/internal/ranking"
	"github.com/routecast/routecast/internal/scoring"
	"github.com/routecast/routecast/internal/track"
)

func toRoutes(in []models.RouteInput) []ranking.Route {
	out := make([]ranking.Route, len(in))
	for i, r := range in {
		out[i] = ranking.Route{Name: r.Name, Track: toTrack(r.Track)}
	}
	return out
}

func toTrack(in models.TrackInput) track.Track {
	t := track.Track{
		Tracks:   make([]track.Sequence, len(in.Tracks)),
		Distance: in.Distance,
	}
	for i, seq := range in.Tracks {
		s := track.Sequence{Name: seq.Name, Points: toPoints(seq.Points)}
		for _, seg := range seq.Segments {
			s.Segments = append(s.Segments, track.Segment{Points: toPoints(seg.Points)})
		}
		t.Tracks[i] = s
	}
	return t
}

// toPoints keeps nil as nil so a sequence without points falls through to
// its segments.
func toPoints(in []models.Point) []geo.Point {
	if in == nil {
		return nil
	}
	out := make([]geo.Point, len(in))
	for i, p := range in {
		out[i] = geo.Point{Lat: p.Lat, Lon: p.Lon}
	}
	return out
}

func fromPoints(in []geo.Point) []models.Point {
	out := make([]models.Point, len(in))
	for i, p := range in {
		out[i] = models.Point{Lat: p.Lat, Lon: p.Lon}
	}
	return out
}

func toRankingResponse(r *ranking.Ranking) *models.RankingResponse {
	if r == nil {
		return nil
	}
	resp := &models.RankingResponse{
		Target:      r.Target,
		IntervalKm:  r.IntervalKm,
		GeneratedAt: models.Timestamp(r.GeneratedAt),
		Routes:      make([]models.RouteScore, len(r.Results)),
		Skipped:     r.Skipped,
	}
	for i, res := range r.Results {
		resp.Routes[i] = toRouteScore(i+1, res)
	}
	for _, f := range r.Failures {
		resp.Failures = append(resp.Failures, models.RouteFailure{Name: f.Name, Detail: f.Error})
	}
	return resp
}

func toRouteScore(rank int, res ranking.Result) models.RouteScore {
	rs := models.RouteScore{
		Rank:             rank,
		Name:             res.Name,
		Score:            res.Score,
		Color:            string(res.Color),
		Conditions:       res.Conditions,
		Breakdown:        toBreakdown(res.Breakdown),
		HeadingDeg:       res.Heading,
		DistanceMeters:   res.DistanceM,
		Waypoints:        fromPoints(res.Waypoints),
		PathPolyline:     res.PathPolyline,
		WaypointPolyline: res.WaypointPolyline,
	}
	if w := res.Weather; w != nil {
		rs.Weather = models.WeatherSummary{
			WindSpeedKmh:     w.WindSpeed,
			WindDirectionDeg: w.WindDirection,
			TempC:            w.TempC,
			HumidityPct:      w.Humidity,
			VisibilityKm:     w.VisibilityKm,
			Points:           len(w.ByPoint),
		}
	}
	return rs
}

func toBreakdown(b scoring.Breakdown) models.Breakdown {
	return models.Breakdown{
		Wind:        b.WindPenalty,
		Temperature: b.TempPenalty,
		Humidity:    b.HumidityPenalty,
		Visibility:  b.VisibilityPenalty,
		Display: map[string]string{
			"wind":        scoring.FormatContribution(b.WindPenalty),
			"temperature": scoring.FormatContribution(b.TempPenalty),
			"humidity":    scoring.FormatContribution(b.HumidityPenalty),
			"visibility":  scoring.FormatContribution(b.VisibilityPenalty),
		},
	}
}

func toSession(v ranking.SessionView) models.Session {
	return models.Session{
		ID:         v.ID,
		Target:     v.Target,
		IntervalKm: v.IntervalKm,
		Routes:     v.Routes,
		Generation: v.Generation,
		Running:    v.Running,
		Ranking:    toRankingResponse(v.Ranking),
		Error:      v.Error,
		CreatedAt:  models.Timestamp(v.CreatedAt),
		UpdatedAt:  models.Timestamp(v.UpdatedAt),
	}
}

func toEvents(in []events.Event) []models.Event {
	out := make([]models.Event, len(in))
	for i, ev := range in {
		out[i] = models.Event{
			ID:        ev.ID,
			Type:      string(ev.Type),
			Timestamp: models.Timestamp(ev.Timestamp),
			Data:      ev.Data,
		}
	}
	return out
}
