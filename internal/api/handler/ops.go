// Package handler provides HTTP handlers for the routecast API.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/routecast/routecast/internal/api/models"
	"github.com/routecast/routecast/internal/api/response"
	"github.com/routecast/routecast/internal/events"
	"github.com/routecast/routecast/internal/forecastcache"
	"github.com/routecast/routecast/internal/provider/resilience"
)

// readyTimeout bounds dependency checks in readiness and status probes.
const readyTimeout = 2 * time.Second

// OpsHandlerConfig holds dependencies for OpsHandler. Cache, Registry and
// Events are optional.
type OpsHandlerConfig struct {
	Version   string
	BuildTime string
	Cache     forecastcache.Repository
	Registry  *resilience.Registry
	Events    *events.Ring
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	cache     forecastcache.Repository
	registry  *resilience.Registry
	events    *events.Ring
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsHandlerConfig) *OpsHandler {
	return &OpsHandler{
		version:   cfg.Version,
		buildTime: cfg.BuildTime,
		cache:     cfg.Cache,
		registry:  cfg.Registry,
		events:    cfg.Events,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]any{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	})
}

// ReadinessCheck handles GET /v1/ops/ready. It fails with 503 when the
// forecast cache cannot be reached.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if h.cache != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()
		if err := h.cache.Ping(ctx); err != nil {
			response.ServiceUnavailable(w, r, "forecast cache unavailable: "+err.Error())
			return
		}
	}
	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
	})
}

// SystemStatus handles GET /v1/ops/status - provider circuit state and
// subsystem status. The overall status is the worst of its parts.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status := models.SystemStatus{
		Status:     models.HealthStatusOK,
		Time:       models.Timestamp(time.Now()),
		Subsystems: []models.SubsystemStatus{},
		Providers:  []models.ProviderStatus{},
	}

	if h.cache != nil {
		status.Subsystems = append(status.Subsystems, h.cacheStatus(r.Context()))
	}
	if h.events != nil {
		status.Subsystems = append(status.Subsystems, models.SubsystemStatus{
			Name:   "events",
			Status: models.HealthStatusOK,
			Stats:  map[string]any{"buffered": h.events.Len()},
		})
	}
	if h.registry != nil {
		for _, ph := range h.registry.GetAllHealth() {
			status.Providers = append(status.Providers, providerStatus(ph))
		}
	}

	for _, s := range status.Subsystems {
		status.Status = worst(status.Status, s.Status)
	}
	for _, p := range status.Providers {
		status.Status = worst(status.Status, p.Status)
	}

	response.JSON(w, r, http.StatusOK, status)
}

func (h *OpsHandler) cacheStatus(ctx context.Context) models.SubsystemStatus {
	ctx, cancel := context.WithTimeout(ctx, readyTimeout)
	defer cancel()

	sub := models.SubsystemStatus{Name: "forecast-cache", Status: models.HealthStatusOK}
	stats, err := h.cache.Stats(ctx)
	if err != nil {
		detail := err.Error()
		sub.Status = models.HealthStatusFail
		sub.Detail = &detail
		return sub
	}
	sub.Stats = map[string]any{"driver": stats.Driver, "entries": stats.Entries}
	return sub
}

func providerStatus(ph *resilience.ProviderHealth) models.ProviderStatus {
	ps := models.ProviderStatus{
		Provider:            ph.Name,
		Status:              models.HealthStatusOK,
		CircuitState:        ph.CircuitState.String(),
		Requests:            ph.Counts.Requests,
		ConsecutiveFailures: ph.Counts.ConsecutiveFailures,
	}
	switch {
	case ph.IsUnhealthy():
		ps.Status = models.HealthStatusFail
	case ph.IsDegraded():
		ps.Status = models.HealthStatusDegraded
	}
	if ph.LastSuccessAt != nil {
		ps.LastSuccessAt = models.TimestampPtr(*ph.LastSuccessAt)
	}
	if ph.LastFailureAt != nil {
		ps.LastFailureAt = models.TimestampPtr(*ph.LastFailureAt)
	}
	return ps
}

var severity = map[models.HealthStatus]int{
	models.HealthStatusOK:       0,
	models.HealthStatusDegraded: 1,
	models.HealthStatusFail:     2,
}

func worst(a, b models.HealthStatus) models.HealthStatus {
	if severity[b] > severity[a] {
		return b
	}
	return a
}
