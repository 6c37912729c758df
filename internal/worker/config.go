// Package worker warms the forecast cache from background Pub/Sub jobs.
package worker

import (
	"time"

	"github.com/routecast/routecast/internal/track"
)

// Job types accepted on the prefetch subscription.
const (
	JobPrefetch    = "prefetch"
	JobHealthCheck = "health_check"
)

// Job is a Pub/Sub message body.
//
//	{"job_type":"prefetch","target":"2026-05-01T08:00","routes":[...],"interval_km":10}
type Job struct {
	JobType    string  `json:"job_type"`
	Target     string  `json:"target,omitempty"`
	Routes     []Route `json:"routes,omitempty"`
	IntervalKm float64 `json:"interval_km,omitempty"`
}

// Route is one named track to prefetch.
type Route struct {
	Name  string      `json:"name"`
	Track track.Track `json:"track"`
}

// PrefetchConfig holds configuration for the prefetch job.
type PrefetchConfig struct {
	// IntervalKm is the waypoint spacing used when a job does not set one.
	// Default: track.DefaultIntervalKm
	IntervalKm float64

	// Concurrency is the number of concurrent point fetches.
	// Default: 3
	Concurrency int

	// Timeout bounds each point fetch.
	// Default: 30 seconds
	Timeout time.Duration

	// MaxFailureRatio is the share of failed points above which a run is
	// reported as failed and the message redelivered.
	// Default: 0.5
	MaxFailureRatio float64
}

// DefaultPrefetchConfig returns the default prefetch configuration.
func DefaultPrefetchConfig() PrefetchConfig {
	return PrefetchConfig{
		IntervalKm:      track.DefaultIntervalKm,
		Concurrency:     3,
		Timeout:         30 * time.Second,
		MaxFailureRatio: 0.5,
	}
}

func (c PrefetchConfig) withDefaults() PrefetchConfig {
	d := DefaultPrefetchConfig()
	if c.IntervalKm <= 0 {
		c.IntervalKm = d.IntervalKm
	}
	if c.Concurrency <= 0 {
		c.Concurrency = d.Concurrency
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.MaxFailureRatio <= 0 {
		c.MaxFailureRatio = d.MaxFailureRatio
	}
	return c
}
