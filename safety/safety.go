// Package safety classifies readings against fixed warning and critical
// thresholds.
package safety

import "encoding/json"

// Level is a three-step classification.
type Level int

const (
	Safe Level = iota
	Warning
	Critical
)

var levelNames = [...]string{"Safe", "Warning", "Critical"}

func (l Level) String() string {
	if l < Safe || l > Critical {
		return "Unknown"
	}
	return levelNames[l]
}

// MarshalJSON encodes the level by name.
func (l Level) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

// Classify returns Critical at or above crit, Warning at or above warn,
// and Safe below.
func Classify(v, warn, crit float64) Level {
	switch {
	case v >= crit:
		return Critical
	case v >= warn:
		return Warning
	default:
		return Safe
	}
}

// Field names one classified metric.
type Field string

const (
	FieldNH3         Field = "nh3"
	FieldCO2         Field = "co2"
	FieldVOC         Field = "voc"
	FieldTemperature Field = "temperature"
	FieldHumidity    Field = "humidity"
)

// Threshold is the warn/critical pair for one field.
type Threshold struct {
	Field    Field   `json:"field" toml:"field"`
	Label    string  `json:"label" toml:"label"`
	Unit     string  `json:"unit" toml:"unit"`
	Warn     float64 `json:"warn" toml:"warn"`
	Critical float64 `json:"critical" toml:"critical"`
	Color    string  `json:"color" toml:"color"`
}

// DefaultThresholds returns the standard five-entry table in display order.
func DefaultThresholds() []Threshold {
	return []Threshold{
		{Field: FieldNH3, Label: "NH₃", Unit: "ppm", Warn: 35, Critical: 50, Color: "#06b6d4"},
		{Field: FieldCO2, Label: "CO₂", Unit: "ppm", Warn: 800, Critical: 1200, Color: "#3b82f6"},
		{Field: FieldVOC, Label: "VOC", Unit: "ppb", Warn: 80, Critical: 120, Color: "#f97316"},
		{Field: FieldTemperature, Label: "Temp", Unit: "°C", Warn: 30, Critical: 38, Color: "#ef4444"},
		{Field: FieldHumidity, Label: "Humidity", Unit: "%", Warn: 60, Critical: 80, Color: "#14b8a6"},
	}
}

// Status is the classification of one field's current value.
type Status struct {
	Field Field   `json:"field"`
	Label string  `json:"gas"`
	Value float64 `json:"value"`
	Level Level   `json:"status"`
	Color string  `json:"color"`
}

// Values supplies the current value of each field.
type Values interface {
	Value(f Field) float64
}

// Evaluate classifies every threshold against vals, preserving order.
func Evaluate(table []Threshold, vals Values) []Status {
	out := make([]Status, 0, len(table))
	for _, th := range table {
		v := vals.Value(th.Field)
		out = append(out, Status{
			Field: th.Field,
			Label: th.Label,
			Value: v,
			Level: Classify(v, th.Warn, th.Critical),
			Color: th.Color,
		})
	}
	return out
}

// Worst returns the highest level in statuses, or Safe for none.
func Worst(statuses []Status) Level {
	worst := Safe
	for _, s := range statuses {
		if s.Level > worst {
			worst = s.Level
		}
	}
	return worst
}
