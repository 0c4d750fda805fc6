// Package sensor enumerates the logical sensors reported by the device node.
//
// The set is fixed at compile time. Code that needs one slot per sensor
// indexes an array of length Count by ID, which keeps the key set closed.
package sensor

import "fmt"

// ID identifies a logical sensor.
type ID int

const (
	// Controller is the ESP32 MCU. Its heartbeat is the transport heartbeat.
	Controller ID = iota
	// Ammonia is the MQ-137 gas array (NH3).
	Ammonia
	// VOC is the MQ-135 gas array (volatile organic compounds).
	VOC
	// Environment is the SCD41 module (CO2, temperature, humidity).
	Environment
	// LoadCell measures the system load.
	LoadCell
	// Servo is the position-lock actuator.
	Servo
	// UVC is the UV-C sterilization actuator.
	UVC

	// Count is the number of sensors.
	Count
)

var names = [Count]string{
	Controller:  "controller",
	Ammonia:     "ammonia",
	VOC:         "voc",
	Environment: "environment",
	LoadCell:    "loadcell",
	Servo:       "servo",
	UVC:         "uvc",
}

var labels = [Count]string{
	Controller:  "ESP32 MCU",
	Ammonia:     "MQ-137 Array",
	VOC:         "MQ-135 Array",
	Environment: "SCD41 Module",
	LoadCell:    "Load Cell",
	Servo:       "Servo Mech",
	UVC:         "UV-C Sterilization",
}

// keys lists the payload keys that carry each sensor's field.
// The controller has none: any payload refreshes it.
var keys = [Count][]string{
	Ammonia:     {"mq137", "mq_137"},
	VOC:         {"mq135", "mq_135"},
	Environment: {"scd41"},
	LoadCell:    {"loadcell"},
	Servo:       {"servo"},
	UVC:         {"uvc"},
}

// All returns every sensor in declaration order.
func All() []ID {
	ids := make([]ID, Count)
	for i := range ids {
		ids[i] = ID(i)
	}
	return ids
}

// Valid reports whether id is a known sensor.
func (id ID) Valid() bool {
	return id >= 0 && id < Count
}

// String returns the sensor name used in logs and JSON.
func (id ID) String() string {
	if !id.Valid() {
		return fmt.Sprintf("sensor(%d)", int(id))
	}
	return names[id]
}

// Label returns the human-readable card label.
func (id ID) Label() string {
	if !id.Valid() {
		return id.String()
	}
	return labels[id]
}

// Keys returns the accepted payload key spellings for the sensor.
func (id ID) Keys() []string {
	if !id.Valid() {
		return nil
	}
	out := make([]string, len(keys[id]))
	copy(out, keys[id])
	return out
}

// Parse resolves a sensor name as returned by String.
func Parse(name string) (ID, bool) {
	for i, n := range names {
		if n == name {
			return ID(i), true
		}
	}
	return 0, false
}

// MarshalText implements encoding.TextMarshaler so IDs can key JSON maps.
func (id ID) MarshalText() ([]byte, error) {
	if !id.Valid() {
		return nil, fmt.Errorf("unknown sensor %d", int(id))
	}
	return []byte(names[id]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ID) UnmarshalText(text []byte) error {
	parsed, ok := Parse(string(text))
	if !ok {
		return fmt.Errorf("unknown sensor %q", string(text))
	}
	*id = parsed
	return nil
}

// Set is a set of sensors.
type Set uint16

// SetOf returns a set holding ids.
func SetOf(ids ...ID) Set {
	var s Set
	for _, id := range ids {
		s = s.Add(id)
	}
	return s
}

// Add returns s with id included. Unknown IDs are ignored.
func (s Set) Add(id ID) Set {
	if !id.Valid() {
		return s
	}
	return s | 1<<uint(id)
}

// Has reports whether id is in s.
func (s Set) Has(id ID) bool {
	return id.Valid() && s&(1<<uint(id)) != 0
}

// Empty reports whether s has no members.
func (s Set) Empty() bool {
	return s == 0
}

// IDs lists the members of s in declaration order.
func (s Set) IDs() []ID {
	var out []ID
	for id := ID(0); id < Count; id++ {
		if s.Has(id) {
			out = append(out, id)
		}
	}
	return out
}
