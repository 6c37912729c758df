// Package polyline implements Google's encoded polyline algorithm.
// See https://developers.google.com/maps/documentation/utilities/polylinealgorithm
package polyline

import (
	"errors"
	"math"
)

// DefaultPrecision is the number of decimal places used by Google Maps.
const DefaultPrecision = 5

// ErrMalformed is returned when an encoded string ends mid-value or has an
// odd number of values.
var ErrMalformed = errors.New("malformed polyline")

// Coordinate is a latitude/longitude pair in degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Encode encodes coords with DefaultPrecision.
func Encode(coords []Coordinate) string {
	return EncodePrecision(coords, DefaultPrecision)
}

// EncodePrecision encodes coords rounding to the given decimal places.
func EncodePrecision(coords []Coordinate, precision int) string {
	if len(coords) == 0 {
		return ""
	}

	factor := math.Pow10(precision)
	buf := make([]byte, 0, len(coords)*6)
	var prevLat, prevLon int64

	for _, c := range coords {
		lat := int64(math.Round(c.Lat * factor))
		lon := int64(math.Round(c.Lon * factor))
		buf = appendValue(buf, lat-prevLat)
		buf = appendValue(buf, lon-prevLon)
		prevLat, prevLon = lat, lon
	}
	return string(buf)
}

func appendValue(buf []byte, v int64) []byte {
	u := uint64(v) << 1
	if v < 0 {
		u = ^u
	}
	for u >= 0x20 {
		buf = append(buf, byte(0x20|(u&0x1f))+63)
		u >>= 5
	}
	return append(buf, byte(u)+63)
}

// Decode decodes a string produced with DefaultPrecision.
func Decode(encoded string) ([]Coordinate, error) {
	return DecodePrecision(encoded, DefaultPrecision)
}

// DecodePrecision decodes a string produced with the given precision.
func DecodePrecision(encoded string, precision int) ([]Coordinate, error) {
	if encoded == "" {
		return nil, nil
	}

	factor := math.Pow10(precision)
	var (
		coords   []Coordinate
		lat, lon int64
		i        int
	)
	for i < len(encoded) {
		dLat, next, err := readValue(encoded, i)
		if err != nil {
			return nil, err
		}
		dLon, next, err := readValue(encoded, next)
		if err != nil {
			return nil, err
		}
		i = next

		lat += dLat
		lon += dLon
		coords = append(coords, Coordinate{Lat: float64(lat) / factor, Lon: float64(lon) / factor})
	}
	return coords, nil
}

func readValue(s string, i int) (int64, int, error) {
	var (
		result uint64
		shift  uint
	)
	for {
		if i >= len(s) {
			return 0, i, ErrMalformed
		}
		b := int(s[i]) - 63
		i++
		if b < 0 || b > 0x3f || shift > 60 {
			return 0, i, ErrMalformed
		}
		result |= uint64(b&0x1f) << shift
		shift += 5
		if b < 0x20 {
			break
		}
	}

	v := int64(result >> 1)
	if result&1 != 0 {
		v = ^v
	}
	return v, i, nil
}
