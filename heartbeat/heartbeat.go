package heartbeat

import (
	"encoding/json"
	"time"

	"github.com/vinayprograms/solanirad/sensor"
)

// Beat is the last time a sensor was observed.
type Beat struct {
	// At is the arrival time of the most recent payload carrying the sensor.
	At time.Time `json:"at"`

	// Seen is false until the sensor is observed for the first time.
	Seen bool `json:"seen"`
}

// Map holds one Beat per sensor. It has a fixed key set and is copied by
// value, so holding a Map never aliases another.
type Map struct {
	beats [sensor.Count]Beat
}

// New returns a Map in which no sensor has been seen.
func New() Map {
	return Map{}
}

// Observe records a payload that arrived at at and carried the sensors in
// present. The controller is refreshed by every payload. Beats never move
// backwards: an arrival older than the stored beat leaves it unchanged.
func Observe(m Map, present sensor.Set, at time.Time) Map {
	present = present.Add(sensor.Controller)
	for _, id := range present.IDs() {
		b := m.beats[id]
		if b.Seen && at.Before(b.At) {
			continue
		}
		m.beats[id] = Beat{At: at, Seen: true}
	}
	return m
}

// Beat returns the stored beat for id. Unknown IDs read as never seen.
func (m Map) Beat(id sensor.ID) Beat {
	if !id.Valid() {
		return Beat{}
	}
	return m.beats[id]
}

// Silence returns how long id has been quiet at now, and false if it was
// never seen.
func (m Map) Silence(id sensor.ID, now time.Time) (time.Duration, bool) {
	b := m.Beat(id)
	if !b.Seen {
		return 0, false
	}
	return now.Sub(b.At), true
}

// MarshalJSON encodes the map as an object keyed by sensor name.
func (m Map) MarshalJSON() ([]byte, error) {
	out := make(map[sensor.ID]Beat, sensor.Count)
	for _, id := range sensor.All() {
		out[id] = m.beats[id]
	}
	return json.Marshal(out)
}
