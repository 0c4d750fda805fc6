package dashboard

import (
	"strconv"
	"time"

	"github.com/vinayprograms/solanirad/feed"
	"github.com/vinayprograms/solanirad/safety"
)

// TimestampLayout formats Reading.Timestamp (MM-DD-YYYY HH:mm:ss).
const TimestampLayout = "01-02-2006 15:04:05"

// Reading is the flat, chart-ready projection of one system state.
type Reading struct {
	ID          string  `json:"id"`
	Timestamp   string  `json:"timestamp"`
	NH3         float64 `json:"nh3"`
	CO2         float64 `json:"co2"`
	VOC         float64 `json:"voc"`
	Temperature float64 `json:"temp"`
	Humidity    float64 `json:"humidity"`
	Weight      float64 `json:"weight"`
}

// NewReading derives a Reading from st as it arrived at at. The ID is the
// arrival time in unix milliseconds.
func NewReading(st feed.SystemState, at time.Time) Reading {
	return Reading{
		ID:          strconv.FormatInt(at.UnixMilli(), 10),
		Timestamp:   at.Local().Format(TimestampLayout),
		NH3:         st.Ammonia,
		CO2:         st.Environment.CO2,
		VOC:         st.VOC,
		Temperature: st.Environment.Temperature,
		Humidity:    st.Environment.Humidity,
		Weight:      st.LoadCell,
	}
}

// Value implements safety.Values.
func (r Reading) Value(f safety.Field) float64 {
	v, _ := r.Series(string(f))
	return v
}

// SeriesWeight names the load-cell series, which has no safety threshold.
const SeriesWeight = "weight"

// Series returns the value of a named chart series. Names are the safety
// field names plus "weight".
func (r Reading) Series(name string) (float64, bool) {
	switch name {
	case string(safety.FieldNH3):
		return r.NH3, true
	case string(safety.FieldCO2):
		return r.CO2, true
	case string(safety.FieldVOC):
		return r.VOC, true
	case string(safety.FieldTemperature):
		return r.Temperature, true
	case string(safety.FieldHumidity):
		return r.Humidity, true
	case SeriesWeight:
		return r.Weight, true
	}
	return 0, false
}

// SeriesNames lists every name accepted by Series, in chart order.
func SeriesNames() []string {
	return []string{
		string(safety.FieldNH3),
		string(safety.FieldCO2),
		string(safety.FieldVOC),
		string(safety.FieldTemperature),
		string(safety.FieldHumidity),
		SeriesWeight,
	}
}
