// Package visualcrossing implements forecast.Provider against the Visual
// Crossing timeline API.
package visualcrossing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/routecast/routecast/internal/forecast"
	"github.com/routecast/routecast/internal/provider/resilience"
)

const (
	// ProviderName identifies this provider in logs, metrics and the registry.
	ProviderName = "visualcrossing"

	// DefaultBaseURL is the timeline endpoint.
	DefaultBaseURL = "https://weather.visualcrossing.com/VisualCrossingWebServices/rest/services/timeline"

	// DefaultTimeout bounds a single request.
	DefaultTimeout = 30 * time.Second

	maxBodyBytes = 16 << 20
	redacted     = "REDACTED"
)

// ClientConfig holds configuration for the Visual Crossing client.
type ClientConfig struct {
	// BaseURL overrides DefaultBaseURL (optional).
	BaseURL string

	// Timeout bounds each request when HTTPClient is nil.
	// Default: 30 seconds
	Timeout time.Duration

	// HTTPClient is the resilient client to use (optional). When nil a
	// single-attempt client is created.
	HTTPClient *resilience.Client

	// Registry receives provider health when HTTPClient is nil (optional).
	Registry *resilience.Registry

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client fetches timeline payloads.
type Client struct {
	baseURL    string
	httpClient *resilience.Client
	logger     zerolog.Logger
}

// NewClient creates a new Visual Crossing client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = DefaultTimeout
		}
		rc := resilience.SingleAttemptConfig(ProviderName, timeout)
		rc.Registry = cfg.Registry
		httpClient = resilience.NewClient(rc)
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     cfg.Logger.With().Str("provider", ProviderName).Logger(),
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// URL builds the request URL for req. When redact is true the API key is
// replaced so the URL is safe to log.
func (c *Client) URL(req forecast.Request, redact bool) string {
	key := req.APIKey
	if redact {
		key = redacted
	}
	q := url.Values{}
	q.Set("unitGroup", "metric")
	q.Set("key", key)
	q.Set("include", req.Target.Include())

	return fmt.Sprintf("%s/%s,%s/%s?%s",
		c.baseURL,
		strconv.FormatFloat(req.Lat, 'f', -1, 64),
		strconv.FormatFloat(req.Lon, 'f', -1, 64),
		url.PathEscape(req.Target.Day),
		q.Encode(),
	)
}

// Fetch performs one timeline request. Non-2xx responses and transport
// failures are returned as *forecast.FetchError.
func (c *Client) Fetch(ctx context.Context, req forecast.Request) (*forecast.Response, error) {
	safeURL := c.URL(req, true)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(req, false), http.NoBody)
	if err != nil {
		return nil, &forecast.FetchError{URL: safeURL, Err: fmt.Errorf("creating request: %w", err)}
	}
	httpReq.Header.Set("Accept", "application/json")

	c.logger.Debug().
		Str("url", safeURL).
		Msg("requesting forecast")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, resilience.ErrCircuitOpen) {
			c.logger.Warn().Msg("circuit open, skipping forecast request")
		}
		return nil, &forecast.FetchError{URL: safeURL, Err: fmt.Errorf("executing request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes)) //nolint:errcheck // drain for reuse
		return nil, &forecast.FetchError{StatusCode: resp.StatusCode, URL: safeURL}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &forecast.FetchError{URL: safeURL, Err: fmt.Errorf("reading response: %w", err)}
	}

	return &forecast.Response{Body: body, StatusCode: resp.StatusCode, URL: safeURL}, nil
}
