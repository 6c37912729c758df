package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/routecast/routecast/internal/api/models"
	"github.com/routecast/routecast/internal/api/response"
	"github.com/routecast/routecast/internal/ranking"
)

// backgroundRunTimeout bounds an asynchronous session run.
const backgroundRunTimeout = 2 * time.Minute

// SessionHandler handles session endpoints. It shares key and target
// handling with RouteHandler.
type SessionHandler struct {
	routes   *RouteHandler
	ranking  *ranking.Service
	sessions *ranking.SessionStore
	logger   zerolog.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(routes *RouteHandler, sessions *ranking.SessionStore, logger zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		routes:   routes,
		ranking:  routes.ranking,
		sessions: sessions,
		logger:   logger.With().Str("component", "sessions").Logger(),
	}
}

// CreateSession handles POST /v1/sessions. The routes are stored and ranked
// for the requested target before responding.
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var input models.SessionCreateRequest
	if err := decodeJSON(w, r, &input); err != nil {
		writeDecodeError(w, r, err)
		return
	}
	if errs := h.routes.validator.Struct(input); errs != nil {
		response.BadRequest(w, r, "request validation failed", errs)
		return
	}
	apiKey := h.routes.apiKey(r)
	if apiKey == "" {
		response.BadRequest(w, r, "a weather API key is required", missingKeyErrors)
		return
	}
	target, ok := h.routes.parseTarget(w, r, input.Target)
	if !ok {
		return
	}

	interval := h.ranking.IntervalKm()
	if input.IntervalKm != nil {
		interval = *input.IntervalKm
	}
	sess := h.sessions.Create(toRoutes(input.Routes), interval)

	rk, err := h.ranking.Run(r.Context(), sess, apiKey, target)
	if err == nil {
		err = rankingOutcomeError(rk)
	}
	if err != nil {
		_ = h.sessions.Delete(sess.ID)
		writeRankError(w, r, err)
		return
	}

	response.Created(w, r, "/v1/sessions/"+sess.ID, toSession(sess.View()))
}

// GetSession handles GET /v1/sessions/{sessionId}.
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.lookup(w, r)
	if !ok {
		return
	}
	response.JSON(w, r, http.StatusOK, toSession(sess.View()))
}

// DeleteSession handles DELETE /v1/sessions/{sessionId}.
func (h *SessionHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Delete(chi.URLParam(r, "sessionId")); err != nil {
		response.NotFound(w, r, "session not found")
		return
	}
	response.NoContent(w, r)
}

// UpdateTarget handles PUT /v1/sessions/{sessionId}/target. The session is
// re-ranked for the new target. A run overtaken by a later target change
// answers 409 and leaves the newer result in place. With ?async=true the
// run continues in the background and the handler answers 202.
func (h *SessionHandler) UpdateTarget(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var input models.SessionTargetRequest
	if err := decodeJSON(w, r, &input); err != nil {
		writeDecodeError(w, r, err)
		return
	}
	if errs := h.routes.validator.Struct(input); errs != nil {
		response.BadRequest(w, r, "request validation failed", errs)
		return
	}
	apiKey := h.routes.apiKey(r)
	if apiKey == "" {
		response.BadRequest(w, r, "a weather API key is required", missingKeyErrors)
		return
	}
	target, ok := h.routes.parseTarget(w, r, input.Target)
	if !ok {
		return
	}

	if r.URL.Query().Get("async") == "true" {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), backgroundRunTimeout)
		go func() {
			defer cancel()
			if _, err := h.ranking.Run(ctx, sess, apiKey, target); err != nil && !errors.Is(err, ranking.ErrStaleRun) {
				h.logger.Warn().Err(err).Str("session_id", sess.ID).Msg("background session run failed")
			}
		}()
		response.Accepted(w, r, "/v1/sessions/"+sess.ID, toSession(sess.View()))
		return
	}

	rk, err := h.ranking.Run(r.Context(), sess, apiKey, target)
	if err == nil {
		err = rankingOutcomeError(rk)
	}
	if err != nil {
		writeRankError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, toSession(sess.View()))
}

func (h *SessionHandler) lookup(w http.ResponseWriter, r *http.Request) (*ranking.Session, bool) {
	sess, err := h.sessions.Get(chi.URLParam(r, "sessionId"))
	if err != nil {
		response.NotFound(w, r, "session not found")
		return nil, false
	}
	return sess, true
}
