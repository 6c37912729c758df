package handler

import (
	"net/http"

	"github.com/routecast/routecast/internal/api/models"
	"github.com/routecast/routecast/internal/api/response"
	"github.com/routecast/routecast/internal/events"
)

// EventsHandler exposes the diagnostic event ring buffer.
type EventsHandler struct {
	ring *events.Ring
}

// NewEventsHandler creates a new EventsHandler.
func NewEventsHandler(ring *events.Ring) *EventsHandler {
	return &EventsHandler{ring: ring}
}

// ListEvents handles GET /v1/events. ?type= filters by event type.
func (h *EventsHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	entries := h.ring.Entries()
	if t := r.URL.Query().Get("type"); t != "" {
		filtered := entries[:0]
		for _, ev := range entries {
			if string(ev.Type) == t {
				filtered = append(filtered, ev)
			}
		}
		entries = filtered
	}

	items := toEvents(entries)
	response.JSON(w, r, http.StatusOK, models.EventList{Items: items, Count: len(items)})
}

// ClearEvents handles DELETE /v1/events.
func (h *EventsHandler) ClearEvents(w http.ResponseWriter, r *http.Request) {
	h.ring.Clear()
	response.NoContent(w, r)
}
