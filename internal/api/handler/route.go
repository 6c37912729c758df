package handler

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/routecast/routecast/internal/api/middleware"
	"github.com/routecast/routecast/internal/api/models"
	"github.com/routecast/routecast/internal/api/response"
	"github.com/routecast/routecast/internal/forecast"
	"github.com/routecast/routecast/internal/ranking"
	"github.com/routecast/routecast/internal/track/gpxfile"
)

// DefaultMaxUploadBytes bounds a multipart GPX upload.
const DefaultMaxUploadBytes = 20 << 20

// maxUploadFiles bounds the GPX files in one upload.
const maxUploadFiles = 25

// RouteHandlerConfig holds dependencies for RouteHandler.
type RouteHandlerConfig struct {
	Ranking        *ranking.Service
	Validator      *Validator
	DefaultAPIKey  string
	Location       *time.Location
	MaxUploadBytes int64
}

// RouteHandler handles route scoring endpoints.
type RouteHandler struct {
	ranking        *ranking.Service
	validator      *Validator
	defaultAPIKey  string
	loc            *time.Location
	maxUploadBytes int64
}

// NewRouteHandler creates a new RouteHandler.
func NewRouteHandler(cfg RouteHandlerConfig) *RouteHandler {
	if cfg.Validator == nil {
		cfg.Validator = NewValidator()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}
	return &RouteHandler{
		ranking:        cfg.Ranking,
		validator:      cfg.Validator,
		defaultAPIKey:  cfg.DefaultAPIKey,
		loc:            cfg.Location,
		maxUploadBytes: cfg.MaxUploadBytes,
	}
}

// apiKey returns the caller's key, falling back to the configured default.
func (h *RouteHandler) apiKey(r *http.Request) string {
	if key := strings.TrimSpace(r.Header.Get(middleware.APIKeyHeader)); key != "" {
		return key
	}
	return h.defaultAPIKey
}

// parseTarget writes a 400 and returns false when raw is not a valid target.
func (h *RouteHandler) parseTarget(w http.ResponseWriter, r *http.Request, raw string) (forecast.Target, bool) {
	target, err := forecast.ParseTarget(raw, h.loc)
	if err != nil {
		response.BadRequest(w, r, "invalid target", []models.FieldError{{
			Field:   "target",
			Message: "must be YYYY-MM-DD or YYYY-MM-DDTHH:MM",
			Code:    "format",
		}})
		return forecast.Target{}, false
	}
	return target, true
}

// ScoreRoutes handles POST /v1/routes:score.
func (h *RouteHandler) ScoreRoutes(w http.ResponseWriter, r *http.Request) {
	var input models.ScoreRequest
	if err := decodeJSON(w, r, &input); err != nil {
		writeDecodeError(w, r, err)
		return
	}
	if errs := h.validator.Struct(input); errs != nil {
		response.BadRequest(w, r, "request validation failed", errs)
		return
	}

	apiKey := h.apiKey(r)
	if apiKey == "" {
		response.BadRequest(w, r, "a weather API key is required", missingKeyErrors)
		return
	}
	target, ok := h.parseTarget(w, r, input.Target)
	if !ok {
		return
	}

	var opts []ranking.Option
	if input.IntervalKm != nil {
		opts = append(opts, ranking.WithIntervalKm(*input.IntervalKm))
	}
	h.rank(w, r, apiKey, toRoutes(input.Routes), target, opts...)
}

// UploadRoutes handles POST /v1/routes:upload. The multipart form carries a
// target field, an optional intervalKm field and one or more GPX files
// under "files". Each route is named after its file.
func (h *RouteHandler) UploadRoutes(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.PayloadTooLarge(w, r, fmt.Sprintf("upload exceeds %d MB", h.maxUploadBytes>>20))
			return
		}
		response.BadRequest(w, r, "invalid multipart form", nil)
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	apiKey := h.apiKey(r)
	if apiKey == "" {
		response.BadRequest(w, r, "a weather API key is required", missingKeyErrors)
		return
	}
	target, ok := h.parseTarget(w, r, r.FormValue("target"))
	if !ok {
		return
	}

	var opts []ranking.Option
	if raw := r.FormValue("intervalKm"); raw != "" {
		km, err := strconv.ParseFloat(raw, 64)
		if err != nil || !(km > 0) || math.IsInf(km, 0) {
			response.BadRequest(w, r, "invalid intervalKm", []models.FieldError{{
				Field: "intervalKm", Message: "must be greater than 0", Code: "gt",
			}})
			return
		}
		opts = append(opts, ranking.WithIntervalKm(km))
	}

	routes, fieldErrs := parseUploads(r)
	if fieldErrs != nil {
		response.BadRequest(w, r, "one or more files could not be read as GPX", fieldErrs)
		return
	}
	h.rank(w, r, apiKey, routes, target, opts...)
}

func parseUploads(r *http.Request) ([]ranking.Route, []models.FieldError) {
	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		return nil, []models.FieldError{{Field: "files", Message: "at least one GPX file is required", Code: "required"}}
	}
	if len(files) > maxUploadFiles {
		return nil, []models.FieldError{{Field: "files", Message: fmt.Sprintf("at most %d files are allowed", maxUploadFiles), Code: "max"}}
	}

	routes := make([]ranking.Route, 0, len(files))
	var errs []models.FieldError
	for i, fh := range files {
		name := fh.Filename
		if name == "" {
			name = fmt.Sprintf("Route %d", i+1)
		}
		name = filepath.Base(name)

		f, err := fh.Open()
		if err != nil {
			errs = append(errs, models.FieldError{Field: fmt.Sprintf("files[%d]", i), Message: err.Error(), Code: "unreadable"})
			continue
		}
		t, err := gpxfile.Parse(f)
		_ = f.Close()
		if err != nil {
			errs = append(errs, models.FieldError{Field: fmt.Sprintf("files[%d]", i), Message: name + ": " + err.Error(), Code: "gpx"})
			continue
		}
		routes = append(routes, ranking.Route{Name: name, Track: t})
	}
	return routes, errs
}

func (h *RouteHandler) rank(w http.ResponseWriter, r *http.Request, apiKey string, routes []ranking.Route, target forecast.Target, opts ...ranking.Option) {
	rk, err := h.ranking.Rank(r.Context(), apiKey, routes, target, opts...)
	if err == nil {
		err = rankingOutcomeError(rk)
	}
	if err != nil {
		writeRankError(w, r, err)
		return
	}

	w.Header().Set("Cache-Control", "private, max-age=60")
	response.JSON(w, r, http.StatusOK, toRankingResponse(rk))
}

// writeDecodeError reports a malformed or oversized JSON body.
func writeDecodeError(w http.ResponseWriter, r *http.Request, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		response.PayloadTooLarge(w, r, "request body is too large")
		return
	}
	response.BadRequest(w, r, "invalid JSON body: "+err.Error(), nil)
}
