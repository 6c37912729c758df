// Package forecast fetches per-point weather forecasts through a persistent
// day-keyed cache.
package forecast

// Conditions is one weather record from a provider timeline: a day summary,
// an hourly entry or the current conditions block. Several providers spell
// the same quantity differently, so alternate spellings are kept in their own
// fields and resolved by the weather package.
type Conditions struct {
	Datetime      string `json:"datetime,omitempty"`
	DatetimeEpoch int64  `json:"datetimeEpoch,omitempty"`

	WindSpeed     float64 `json:"windspeed,omitempty"`
	WindSpeedAlt  float64 `json:"windSpeed,omitempty"`
	WindDir       float64 `json:"winddir,omitempty"`
	WindDirection float64 `json:"windDirection,omitempty"`
	Temp          float64 `json:"temp,omitempty"`
	TempC         float64 `json:"tempC,omitempty"`
	Humidity      float64 `json:"humidity,omitempty"`
	Visibility    float64 `json:"visibility,omitempty"`
	VisibilityKm  float64 `json:"visibilityKm,omitempty"`

	Conditions string `json:"conditions,omitempty"`
}

// Day is a daily timeline entry with its hourly breakdown.
type Day struct {
	Conditions
	Hours []Conditions `json:"hours,omitempty"`
}

// Payload is the decoded provider response for one point and day.
type Payload struct {
	Latitude          float64     `json:"latitude"`
	Longitude         float64     `json:"longitude"`
	ResolvedAddress   string      `json:"resolvedAddress,omitempty"`
	Timezone          string      `json:"timezone,omitempty"`
	Days              []Day       `json:"days,omitempty"`
	CurrentConditions *Conditions `json:"currentConditions,omitempty"`
}

// FirstDay returns the first day entry, or nil when the payload has none.
func (p *Payload) FirstDay() *Day {
	if p == nil || len(p.Days) == 0 {
		return nil
	}
	return &p.Days[0]
}

// Summary is the headline values of a payload, taken from the first day and
// falling back to the current conditions.
type Summary struct {
	WindSpeed  float64 `json:"windspeed"`
	WindDir    float64 `json:"winddir"`
	Temp       float64 `json:"temp"`
	Humidity   float64 `json:"humidity"`
	Visibility float64 `json:"visibility"`
}

// Summarize extracts a Summary for diagnostics.
func (p *Payload) Summarize() Summary {
	var c *Conditions
	if d := p.FirstDay(); d != nil {
		c = &d.Conditions
	} else if p != nil {
		c = p.CurrentConditions
	}
	if c == nil {
		return Summary{}
	}
	return Summary{
		WindSpeed:  c.WindSpeed,
		WindDir:    c.WindDir,
		Temp:       c.Temp,
		Humidity:   c.Humidity,
		Visibility: c.Visibility,
	}
}
