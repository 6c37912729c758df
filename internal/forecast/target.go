package forecast

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidTarget is returned when a target date string cannot be parsed.
var ErrInvalidTarget = errors.New("invalid target date")

// Include values requested from the provider.
const (
	IncludeHours   = "hours"
	IncludeCurrent = "current"
)

const dayLayout = "2006-01-02"

// Layouts carrying their own offset.
var zonedLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04Z07:00",
}

// Wall-clock layouts interpreted in the configured location.
var timeLayouts = []string{
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
}

// Target is the date, optionally with a time of day, that forecasts are
// requested for.
type Target struct {
	// Raw is the caller's original string.
	Raw string
	// Day is the YYYY-MM-DD prefix used for the request path and cache key.
	Day string
	// HasTime is true when Raw carries a time of day.
	HasTime bool
	// At is the instant for time-specific targets; zero otherwise.
	At time.Time
}

// ParseTarget parses YYYY-MM-DD, YYYY-MM-DDTHH:MM[:SS] with an optional
// offset (Z or ±HH:MM), or RFC 3339. Wall
// times without an offset are interpreted in loc (UTC when nil).
func ParseTarget(s string, loc *time.Location) (Target, error) {
	if loc == nil {
		loc = time.UTC
	}
	s = strings.TrimSpace(s)
	if len(s) < len(dayLayout) {
		return Target{}, fmt.Errorf("%w: %q", ErrInvalidTarget, s)
	}

	t := Target{Raw: s, Day: s[:len(dayLayout)]}
	if _, err := time.ParseInLocation(dayLayout, t.Day, loc); err != nil {
		return Target{}, fmt.Errorf("%w: %q", ErrInvalidTarget, s)
	}

	if !strings.Contains(s, "T") {
		if len(s) != len(dayLayout) {
			return Target{}, fmt.Errorf("%w: %q", ErrInvalidTarget, s)
		}
		return t, nil
	}

	t.HasTime = true
	for _, layout := range zonedLayouts {
		if at, err := time.Parse(layout, s); err == nil {
			t.At = at
			return t, nil
		}
	}
	for _, layout := range timeLayouts {
		if at, err := time.ParseInLocation(layout, s, loc); err == nil {
			t.At = at
			return t, nil
		}
	}
	return Target{}, fmt.Errorf("%w: %q", ErrInvalidTarget, s)
}

// MustParseTarget is ParseTarget for tests and constants; it panics on error.
func MustParseTarget(s string, loc *time.Location) Target {
	t, err := ParseTarget(s, loc)
	if err != nil {
		panic(err)
	}
	return t
}

// Include returns the provider include parameter for this target.
func (t Target) Include() string {
	if t.HasTime {
		return IncludeHours
	}
	return IncludeCurrent
}

// UnixMilli returns the target instant in epoch milliseconds, or 0 when the
// target has no time.
func (t Target) UnixMilli() int64 {
	if !t.HasTime {
		return 0
	}
	return t.At.UnixMilli()
}

func (t Target) String() string {
	return t.Raw
}
