package scoring

import (
	"math"
	"strconv"

	"github.com/routecast/routecast/internal/weather"
)

// Score bounds and rule constants.
const (
	MaxScore = 10.0
	MinScore = 1.0

	// HeadwindFactor multiplies the wind penalty when the wind comes from
	// within 45° of the route heading.
	HeadwindFactor = 1.8
	// TailwindBonus is subtracted from the wind penalty when the wind comes
	// from between 135° and 225° of the route heading.
	TailwindBonus = 1.5

	// ExtremeHeatC is the temperature above which a route scores MinScore.
	ExtremeHeatC = 40.0
	// ExtremeHeatPenalty is the breakdown's temperature penalty above
	// ExtremeHeatC: the full distance from MaxScore to MinScore.
	ExtremeHeatPenalty = MaxScore - MinScore
)

// Input is everything the engine needs for one route.
type Input struct {
	WindSpeed     float64 `json:"windSpeed"`
	WindDirection float64 `json:"windDirection"`
	TempC         float64 `json:"tempC"`
	Humidity      float64 `json:"humidity"`
	VisibilityKm  float64 `json:"visibilityKm"`
	RouteHeading  float64 `json:"routeHeading"`
}

// FromWeather builds an Input from aggregated weather. A nil aggregate gives
// an all-zero input.
func FromWeather(agg *weather.AggregatedWeather, heading float64) Input {
	if agg == nil {
		return Input{RouteHeading: heading}
	}
	return Input{
		WindSpeed:     agg.WindSpeed,
		WindDirection: agg.WindDirection,
		TempC:         agg.TempC,
		Humidity:      agg.Humidity,
		VisibilityKm:  agg.VisibilityKm,
		RouteHeading:  heading,
	}
}

// Normalized replaces NaN and infinite fields with 0. Score and
// ComputeBreakdown normalize their input, so malformed weather yields a
// defined score instead of an error.
func (in Input) Normalized() Input {
	return Input{
		WindSpeed:     finite(in.WindSpeed),
		WindDirection: finite(in.WindDirection),
		TempC:         finite(in.TempC),
		Humidity:      finite(in.Humidity),
		VisibilityKm:  finite(in.VisibilityKm),
		RouteHeading:  finite(in.RouteHeading),
	}
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// Breakdown is the signed contribution of each factor. Positive values are
// penalties, negative values bonuses.
type Breakdown struct {
	WindPenalty       float64 `json:"windPenalty"`
	TempPenalty       float64 `json:"tempPenalty"`
	HumidityPenalty   float64 `json:"humidityPenalty"`
	VisibilityPenalty float64 `json:"visibilityPenalty"`
}

// Total is the sum of all contributions.
func (b Breakdown) Total() float64 {
	return b.WindPenalty + b.TempPenalty + b.HumidityPenalty + b.VisibilityPenalty
}

// RelativeWindAngle returns |direction - heading| mod 360.
func RelativeWindAngle(direction, heading float64) float64 {
	return math.Mod(math.Abs(direction-heading), 360)
}

// WindPenalty applies the wind tier and the directional adjustment.
func WindPenalty(speed, direction, heading float64) float64 {
	p := WindTable.Penalty(speed)
	rel := RelativeWindAngle(direction, heading)
	switch {
	case rel < 45 || rel > 315:
		p *= HeadwindFactor
	case rel > 135 && rel < 225:
		p -= TailwindBonus
	}
	return p
}

// TempPenalty returns the temperature contribution, ExtremeHeatPenalty above
// ExtremeHeatC.
func TempPenalty(tempC float64) float64 {
	if tempC > ExtremeHeatC {
		return ExtremeHeatPenalty
	}
	return ColdTable.Penalty(tempC) + HeatTable.Penalty(tempC)
}

// ComputeBreakdown returns the per-factor contributions for in.
func ComputeBreakdown(in Input) Breakdown {
	in = in.Normalized()
	return Breakdown{
		WindPenalty:       WindPenalty(in.WindSpeed, in.WindDirection, in.RouteHeading),
		TempPenalty:       TempPenalty(in.TempC),
		HumidityPenalty:   HumidityTable.Penalty(in.Humidity),
		VisibilityPenalty: VisibilityTable.Penalty(in.VisibilityKm),
	}
}

// Score returns the comfort score in [MinScore, MaxScore]. Above ExtremeHeatC
// the score is MinScore regardless of other factors; otherwise it is
// MaxScore minus the breakdown total, clamped.
func Score(in Input) float64 {
	in = in.Normalized()
	if in.TempC > ExtremeHeatC {
		return MinScore
	}
	return clamp(MaxScore-ComputeBreakdown(in).Total(), MinScore, MaxScore)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// Color classifies a score for display.
type Color string

// Score colors.
const (
	ColorGood     Color = "good"
	ColorModerate Color = "moderate"
	ColorPoor     Color = "poor"
)

// ColorClass maps score to good (≥8), moderate (≥6) or poor.
func ColorClass(score float64) Color {
	switch {
	case score >= 8:
		return ColorGood
	case score >= 6:
		return ColorModerate
	default:
		return ColorPoor
	}
}

// FormatContribution renders a breakdown value the way riders read it: a
// penalty as "-2.0", a bonus as "+1.5" and zero as "0".
func FormatContribution(v float64) string {
	switch {
	case v == 0 || math.IsNaN(v):
		return "0"
	case v < 0:
		return "+" + strconv.FormatFloat(-v, 'f', 1, 64)
	default:
		return "-" + strconv.FormatFloat(v, 'f', 1, 64)
	}
}
