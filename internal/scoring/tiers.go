// Package scoring maps aggregated route weather and heading to a 1-10
// comfort score and a per-factor breakdown.
package scoring

// Direction states which side of a tier bound is penalized.
type Direction int

const (
	// Above penalizes values greater than the bound.
	Above Direction = iota
	// Below penalizes values less than the bound.
	Below
)

// Tier is one band of a Table. Inclusive also penalizes a value equal to Bound.
type Tier struct {
	Bound     float64
	Inclusive bool
	Penalty   float64
}

// Table is an ordered tier list, most severe first. The first matching tier
// supplies the penalty.
type Table struct {
	Direction Direction
	Tiers     []Tier
}

// Penalty returns the penalty for v, or 0 when no tier matches.
func (t Table) Penalty(v float64) float64 {
	for _, tier := range t.Tiers {
		if t.matches(tier, v) {
			return tier.Penalty
		}
	}
	return 0
}

func (t Table) matches(tier Tier, v float64) bool {
	if tier.Inclusive && v == tier.Bound {
		return true
	}
	if t.Direction == Below {
		return v < tier.Bound
	}
	return v > tier.Bound
}

// Tier tables. Wind speed in km/h, temperature in °C, humidity in %,
// visibility in km.
var (
	WindTable = Table{Direction: Above, Tiers: []Tier{
		{Bound: 45, Penalty: 4},
		{Bound: 35, Penalty: 3},
		{Bound: 25, Penalty: 2.5},
		{Bound: 15, Penalty: 1.5},
	}}

	ColdTable = Table{Direction: Below, Tiers: []Tier{
		{Bound: 5, Penalty: 3},
		{Bound: 10, Penalty: 2},
		{Bound: 15, Penalty: 1},
	}}

	HeatTable = Table{Direction: Above, Tiers: []Tier{
		{Bound: 35, Penalty: 3},
		{Bound: 30, Penalty: 2},
		{Bound: 22, Penalty: 1},
	}}

	HumidityTable = Table{Direction: Above, Tiers: []Tier{
		{Bound: 90, Penalty: 3},
		{Bound: 80, Penalty: 2},
		{Bound: 68, Inclusive: true, Penalty: 1},
	}}

	VisibilityTable = Table{Direction: Below, Tiers: []Tier{
		{Bound: 2, Penalty: 3},
		{Bound: 5, Penalty: 2},
		{Bound: 10, Penalty: 1},
	}}
)
