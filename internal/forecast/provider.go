package forecast

import "context"

// Request identifies one provider call.
type Request struct {
	APIKey string
	Lat    float64
	Lon    float64
	Target Target
}

// Response is a successful provider response.
type Response struct {
	Body       []byte
	StatusCode int
	// URL is the request URL with the API key redacted.
	URL string
}

// Provider fetches raw forecast payloads. Implementations return a
// *FetchError for non-2xx responses and transport failures.
type Provider interface {
	Fetch(ctx context.Context, req Request) (*Response, error)
	Name() string
}
