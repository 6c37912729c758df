package models

// Event is one diagnostic pipeline event.
type Event struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Timestamp Timestamp      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// EventList is the body of GET /v1/events, oldest first.
type EventList struct {
	Items []Event `json:"items"`
	Count int     `json:"count"`
}
