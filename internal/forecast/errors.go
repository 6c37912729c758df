package forecast

import (
	"errors"
	"fmt"

	"github.com/routecast/routecast/internal/geo"
)

var (
	// ErrInvalidCoordinates is returned for points outside the valid range.
	ErrInvalidCoordinates = geo.ErrInvalidCoordinates

	// ErrMissingAPIKey is returned when a fetch needs the network but no
	// provider key was supplied.
	ErrMissingAPIKey = errors.New("weather api key is required")

	// ErrInvalidPayload is returned when the provider body is not valid JSON.
	ErrInvalidPayload = errors.New("invalid forecast payload")
)

// FetchError describes a failed provider request. StatusCode is set for
// non-2xx responses; Err is set for transport failures.
type FetchError struct {
	StatusCode int
	URL        string
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("weather fetch failed (%d)", e.StatusCode)
	}
	return fmt.Sprintf("weather fetch failed: %v", e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
