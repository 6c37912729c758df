package forecast_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/routecast/routecast/internal/forecast"
)

func TestParseTarget(t *testing.T) {
	amsterdam, err := time.LoadLocation("Europe/Amsterdam")
	require.NoError(t, err)

	tests := []struct {
		name    string
		in      string
		loc     *time.Location
		day     string
		hasTime bool
		at      time.Time
		include string
	}{
		{
			name:    "day only",
			in:      "2024-05-01",
			day:     "2024-05-01",
			include: forecast.IncludeCurrent,
		},
		{
			name:    "wall time in UTC",
			in:      "2024-05-01T08:00",
			day:     "2024-05-01",
			hasTime: true,
			at:      time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC),
			include: forecast.IncludeHours,
		},
		{
			name:    "wall time with seconds in zone",
			in:      "2024-05-01T08:00:30",
			loc:     amsterdam,
			day:     "2024-05-01",
			hasTime: true,
			at:      time.Date(2024, 5, 1, 6, 0, 30, 0, time.UTC),
			include: forecast.IncludeHours,
		},
		{
			name:    "rfc3339 keeps offset",
			in:      "2024-05-01T08:00:00+02:00",
			loc:     time.UTC,
			day:     "2024-05-01",
			hasTime: true,
			at:      time.Date(2024, 5, 1, 6, 0, 0, 0, time.UTC),
			include: forecast.IncludeHours,
		},
		{
			name:    "minutes with utc designator",
			in:      "2024-06-01T10:00Z",
			loc:     amsterdam,
			day:     "2024-06-01",
			hasTime: true,
			at:      time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC),
			include: forecast.IncludeHours,
		},
		{
			name:    "minutes with offset",
			in:      "2024-06-01T10:00+02:00",
			loc:     time.UTC,
			day:     "2024-06-01",
			hasTime: true,
			at:      time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC),
			include: forecast.IncludeHours,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := forecast.ParseTarget(tt.in, tt.loc)
			require.NoError(t, err)

			assert.Equal(t, tt.in, got.Raw)
			assert.Equal(t, tt.day, got.Day)
			assert.Equal(t, tt.hasTime, got.HasTime)
			assert.Equal(t, tt.include, got.Include())
			if tt.hasTime {
				assert.True(t, tt.at.Equal(got.At), "got %s want %s", got.At, tt.at)
				assert.Equal(t, tt.at.UnixMilli(), got.UnixMilli())
			} else {
				assert.Zero(t, got.UnixMilli())
			}
		})
	}
}

func TestParseTarget_Invalid(t *testing.T) {
	for _, in := range []string{"", "2024-5-1", "tomorrow", "2024-13-01", "2024-05-01T", "2024-05-01T25:00", "2024-05-01 extra"} {
		t.Run(in, func(t *testing.T) {
			_, err := forecast.ParseTarget(in, nil)
			assert.ErrorIs(t, err, forecast.ErrInvalidTarget)
		})
	}
}

func TestMustParseTarget_Panics(t *testing.T) {
	assert.Panics(t, func() { forecast.MustParseTarget("nope", nil) })
}

func TestCacheKey(t *testing.T) {
	assert.Equal(t, "52.3676,4.9041:2024-05-01", forecast.CacheKey(52.36758, 4.90412, "2024-05-01"))
	assert.Equal(t, "-33.8688,151.2093:2024-01-02", forecast.CacheKey(-33.86882, 151.20930, "2024-01-02"))
	assert.Equal(t, forecast.CacheKey(1.00001, 2.00001, "d"), forecast.CacheKey(1.00002, 2.00002, "d"))
}

func TestFetchError(t *testing.T) {
	err := &forecast.FetchError{StatusCode: 503}
	assert.Equal(t, "weather fetch failed (503)", err.Error())

	cause := assert.AnError
	err = &forecast.FetchError{Err: cause}
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), cause.Error())
}

func TestPayload_Summarize(t *testing.T) {
	p := &forecast.Payload{
		Days:              []forecast.Day{{Conditions: forecast.Conditions{WindSpeed: 12, Temp: 18}}},
		CurrentConditions: &forecast.Conditions{WindSpeed: 99},
	}
	assert.Equal(t, forecast.Summary{WindSpeed: 12, Temp: 18}, p.Summarize())

	p = &forecast.Payload{CurrentConditions: &forecast.Conditions{WindSpeed: 7, Humidity: 40}}
	assert.Equal(t, forecast.Summary{WindSpeed: 7, Humidity: 40}, p.Summarize())

	assert.Equal(t, forecast.Summary{}, (&forecast.Payload{}).Summarize())
	var nilPayload *forecast.Payload
	assert.Nil(t, nilPayload.FirstDay())
}
