package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/routecast/routecast/internal/api/models"
	"github.com/routecast/routecast/internal/api/response"
	"github.com/routecast/routecast/internal/forecast"
	"github.com/routecast/routecast/internal/provider/resilience"
	"github.com/routecast/routecast/internal/ranking"
)

// writeRankError maps pipeline errors onto problems.
func writeRankError(w http.ResponseWriter, r *http.Request, err error) {
	var fe *forecast.FetchError
	switch {
	case errors.Is(err, forecast.ErrMissingAPIKey):
		response.BadRequest(w, r, "a weather API key is required", missingKeyErrors)
	case errors.Is(err, forecast.ErrInvalidCoordinates):
		response.BadRequest(w, r, err.Error(), nil)
	case errors.Is(err, ranking.ErrStaleRun):
		response.Conflict(w, r, "a newer target was requested for this session")
	case errors.Is(err, resilience.ErrCircuitOpen):
		response.ServiceUnavailable(w, r, "weather provider is temporarily unavailable")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		response.ServiceUnavailable(w, r, "weather lookup did not complete in time")
	case errors.As(err, &fe):
		response.BadGateway(w, r, fe.Error())
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("ranking failed")
		response.InternalError(w, r, "an unexpected error occurred")
	}
}

var missingKeyErrors = []models.FieldError{{
	Field:   "X-Weather-Api-Key",
	Message: "header is required when no default key is configured",
	Code:    "required",
}}

// rankingOutcomeError returns the first failure when every route failed, so
// a bad key or an outage surfaces as an error rather than an empty list.
func rankingOutcomeError(rk *ranking.Ranking) error {
	if rk == nil || len(rk.Results) > 0 || len(rk.Failures) == 0 {
		return nil
	}
	return rk.Failures[0].Err
}
