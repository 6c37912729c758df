package models

// SessionCreateRequest is the body of POST /v1/sessions. The routes are
// ranked immediately for Target.
type SessionCreateRequest = ScoreRequest

// SessionTargetRequest is the body of PUT /v1/sessions/{sessionId}/target.
type SessionTargetRequest struct {
	Target string `json:"target" validate:"required"`
}

// Session is a stored set of routes and their latest ranking.
type Session struct {
	ID         string           `json:"id"`
	Target     string           `json:"target"`
	IntervalKm float64          `json:"intervalKm"`
	Routes     []string         `json:"routes"`
	Generation uint64           `json:"generation"`
	Running    bool             `json:"running"`
	Ranking    *RankingResponse `json:"ranking,omitempty"`
	Error      string           `json:"error,omitempty"`
	CreatedAt  Timestamp        `json:"createdAt"`
	UpdatedAt  Timestamp        `json:"updatedAt"`
}
