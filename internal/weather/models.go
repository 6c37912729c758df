// Package weather turns per-point forecast payloads into the weather a rider
// can expect along a route.
package weather

import (
	"errors"

	"github.com/routecast/routecast/internal/geo"
)

// ErrNoHourlyData is returned by SelectHour when there are no hourly records.
var ErrNoHourlyData = errors.New("no hourly data")

// PointWeather is the normalized weather at one waypoint. Wind speed is in
// km/h, wind direction in degrees the wind blows from, visibility in km.
type PointWeather struct {
	Lat           float64 `json:"lat"`
	Lon           float64 `json:"lon"`
	WindSpeed     float64 `json:"windSpeed"`
	WindDirection float64 `json:"windDirection"`
	TempC         float64 `json:"tempC"`
	Humidity      float64 `json:"humidity"`
	VisibilityKm  float64 `json:"visibilityKm"`
}

// Point returns the waypoint location.
func (p PointWeather) Point() geo.Point {
	return geo.Point{Lat: p.Lat, Lon: p.Lon}
}

// AggregatedWeather is the unweighted mean of every resolved waypoint.
// Wind direction is averaged arithmetically, so opposing directions can
// produce a direction neither waypoint reported.
type AggregatedWeather struct {
	WindSpeed     float64        `json:"windSpeed"`
	WindDirection float64        `json:"windDirection"`
	TempC         float64        `json:"tempC"`
	Humidity      float64        `json:"humidity"`
	VisibilityKm  float64        `json:"visibilityKm"`
	ByPoint       []PointWeather `json:"byPoint"`
}

// Average computes the mean of points. It returns nil for an empty slice.
func Average(points []PointWeather) *AggregatedWeather {
	if len(points) == 0 {
		return nil
	}

	var agg AggregatedWeather
	for _, p := range points {
		agg.WindSpeed += p.WindSpeed
		agg.WindDirection += p.WindDirection
		agg.TempC += p.TempC
		agg.Humidity += p.Humidity
		agg.VisibilityKm += p.VisibilityKm
	}

	n := float64(len(points))
	agg.WindSpeed /= n
	agg.WindDirection /= n
	agg.TempC /= n
	agg.Humidity /= n
	agg.VisibilityKm /= n
	agg.ByPoint = append([]PointWeather(nil), points...)
	return &agg
}
