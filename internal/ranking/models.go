package ranking

import (
	"time"

	"github.com/routecast/routecast/internal/geo"
	"github.com/routecast/routecast/internal/scoring"
	"github.com/routecast/routecast/internal/track"
	"github.com/routecast/routecast/internal/weather"
)

// Route is a named, already parsed track submitted for ranking.
type Route struct {
	Name  string      `json:"name" validate:"required,max=200"`
	Track track.Track `json:"track"`
}

// Result is the scored outcome for one route.
type Result struct {
	Name       string                     `json:"name"`
	Score      float64                    `json:"score"`
	Color      scoring.Color              `json:"color"`
	Breakdown  scoring.Breakdown          `json:"breakdown"`
	Conditions string                     `json:"conditions"`
	Heading    float64                    `json:"heading"`
	DistanceM  float64                    `json:"distanceM"`
	Weather    *weather.AggregatedWeather `json:"weather"`
	Path       []geo.Point                `json:"-"`
	Waypoints  []geo.Point                `json:"waypoints"`

	// PathPolyline and WaypointPolyline are Google encoded polylines.
	PathPolyline     string `json:"pathPolyline"`
	WaypointPolyline string `json:"waypointPolyline"`
}

// Failure records a route whose weather could not be resolved.
type Failure struct {
	Name  string `json:"name"`
	Error string `json:"error"`
	Err   error  `json:"-"`
}

// Ranking is the ordered output of one run.
type Ranking struct {
	Target      string    `json:"target"`
	IntervalKm  float64   `json:"intervalKm"`
	Results     []Result  `json:"results"`
	Skipped     []string  `json:"skipped,omitempty"`
	Failures    []Failure `json:"failures,omitempty"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// Best returns the top ranked result, or nil when nothing was scored.
func (r *Ranking) Best() *Result {
	if r == nil || len(r.Results) == 0 {
		return nil
	}
	return &r.Results[0]
}
