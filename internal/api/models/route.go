package models

// ScoreRequest is the body of POST /v1/routes:score.
type ScoreRequest struct {
	// Target is YYYY-MM-DD or YYYY-MM-DDTHH:MM[:SS] (or RFC 3339).
	Target string `json:"target" validate:"required"`

	// IntervalKm overrides the waypoint spacing.
	IntervalKm *float64 `json:"intervalKm,omitempty" validate:"omitempty,gt=0,lte=500"`

	Routes []RouteInput `json:"routes" validate:"required,min=1,max=25,dive"`
}

// RouteInput is one named, already parsed track.
type RouteInput struct {
	Name  string     `json:"name" validate:"required,max=200"`
	Track TrackInput `json:"track"`
}

// TrackInput mirrors the parsed GPX structure: tracks holding either points
// or segments, plus the total distance in meters.
type TrackInput struct {
	Tracks   []SequenceInput `json:"tracks" validate:"required,min=1,dive"`
	Distance float64         `json:"distance" validate:"gte=0"`
}

// SequenceInput is one track of a parsed file.
type SequenceInput struct {
	Name     string         `json:"name,omitempty"`
	Points   []Point        `json:"points,omitempty" validate:"dive"`
	Segments []SegmentInput `json:"segments,omitempty" validate:"dive"`
}

// SegmentInput is a contiguous run of points.
type SegmentInput struct {
	Points []Point `json:"points" validate:"dive"`
}

// RankingResponse is the ranked outcome for a target.
type RankingResponse struct {
	Target      string         `json:"target"`
	IntervalKm  float64        `json:"intervalKm"`
	GeneratedAt Timestamp      `json:"generatedAt"`
	Routes      []RouteScore   `json:"routes"`
	Skipped     []string       `json:"skipped,omitempty"`
	Failures    []RouteFailure `json:"failures,omitempty"`
}

// RouteScore is one ranked route.
type RouteScore struct {
	Rank             int            `json:"rank"`
	Name             string         `json:"name"`
	Score            float64        `json:"score"`
	Color            string         `json:"color"`
	Conditions       string         `json:"conditions"`
	Breakdown        Breakdown      `json:"breakdown"`
	HeadingDeg       float64        `json:"headingDeg"`
	DistanceMeters   float64        `json:"distanceMeters"`
	Weather          WeatherSummary `json:"weather"`
	Waypoints        []Point        `json:"waypoints"`
	PathPolyline     string         `json:"pathPolyline"`
	WaypointPolyline string         `json:"waypointPolyline"`
}

// Breakdown lists per-factor contributions. Positive values are penalties,
// negative values bonuses. Display holds the rider-facing strings ("-2.0",
// "+1.5", "0") keyed like the numeric fields.
type Breakdown struct {
	Wind        float64           `json:"wind"`
	Temperature float64           `json:"temperature"`
	Humidity    float64           `json:"humidity"`
	Visibility  float64           `json:"visibility"`
	Display     map[string]string `json:"display"`
}

// WeatherSummary is the route mean used for scoring.
type WeatherSummary struct {
	WindSpeedKmh     float64 `json:"windSpeedKmh"`
	WindDirectionDeg float64 `json:"windDirectionDeg"`
	TempC            float64 `json:"tempC"`
	HumidityPct      float64 `json:"humidityPct"`
	VisibilityKm     float64 `json:"visibilityKm"`
	Points           int     `json:"points"`
}

// RouteFailure names a route whose weather could not be fetched.
type RouteFailure struct {
	Name   string `json:"name"`
	Detail string `json:"detail"`
}
