package weather

import (
	"math"

	"github.com/routecast/routecast/internal/forecast"
)

// SelectHour returns the hourly record closest to the target instant. Ties go
// to the earliest record in the slice. Records without an epoch are treated
// as epoch 0.
func SelectHour(hours []forecast.Conditions, target forecast.Target) (forecast.Conditions, error) {
	if len(hours) == 0 {
		return forecast.Conditions{}, ErrNoHourlyData
	}

	targetMs := target.UnixMilli()
	best := 0
	bestDiff := absDiff(hours[0].DatetimeEpoch*1000, targetMs)
	for i := 1; i < len(hours); i++ {
		if d := absDiff(hours[i].DatetimeEpoch*1000, targetMs); d < bestDiff {
			best, bestDiff = i, d
		}
	}
	return hours[best], nil
}

func absDiff(a, b int64) int64 {
	if a > b {
		return a - b
	}
	return b - a
}

// Resolve picks the record that describes a payload at the target. Timed
// targets use the nearest hour of the first day. Otherwise, or when there is
// no hourly data, the first day summary is used, then the current conditions,
// then an empty record.
func Resolve(p *forecast.Payload, target forecast.Target) forecast.Conditions {
	day := p.FirstDay()

	if target.HasTime && day != nil {
		if c, err := SelectHour(day.Hours, target); err == nil {
			return c
		}
	}

	switch {
	case day != nil:
		return day.Conditions
	case p != nil && p.CurrentConditions != nil:
		return *p.CurrentConditions
	default:
		return forecast.Conditions{}
	}
}

// Normalize maps a provider record onto PointWeather. When a quantity has
// alternate spellings the first non-zero one wins; missing values become 0.
func Normalize(lat, lon float64, c forecast.Conditions) PointWeather {
	return PointWeather{
		Lat:           lat,
		Lon:           lon,
		WindSpeed:     firstNonZero(c.WindSpeed, c.WindSpeedAlt),
		WindDirection: firstNonZero(c.WindDir, c.WindDirection),
		TempC:         firstNonZero(c.Temp, c.TempC),
		Humidity:      firstNonZero(c.Humidity),
		VisibilityKm:  firstNonZero(c.Visibility, c.VisibilityKm),
	}
}

func firstNonZero(vals ...float64) float64 {
	for _, v := range vals {
		if v != 0 && !math.IsNaN(v) {
			return v
		}
	}
	return 0
}
