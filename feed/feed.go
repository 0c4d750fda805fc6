// Package feed turns the loosely-typed device node into typed updates.
//
// The node is written by firmware and is not strict about shapes: numbers
// arrive as JSON numbers, numeric strings or {"value": x} wrappers, and two
// gas sensors have alternate key spellings. Parse absorbs all of that so the
// rest of the service only ever sees a Payload.
package feed

import (
	"time"

	"github.com/vinayprograms/solanirad/sensor"
)

// Environment is the SCD41 reading. It is always fully populated.
type Environment struct {
	CO2         float64 `json:"co2"`
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
}

// SystemState is the last observed value of every telemetry field. The
// JSON tags are the node's own key names.
type SystemState struct {
	ControllerStatus     bool        `json:"esp32_status"`
	ControllerLastUpdate int64       `json:"esp32_last_update"` // device clock, unix seconds
	Ammonia              float64     `json:"mq137"`
	VOC                  float64     `json:"mq135"`
	Environment          Environment `json:"scd41"`
	LoadCell             float64     `json:"loadcell"`
	Servo                bool        `json:"servo"`
	UVC                  bool        `json:"uvc"`
	Battery              float64     `json:"battery"`
}

// Payload is one decoded node value.
type Payload struct {
	// State replaces the previous SystemState wholesale.
	State SystemState

	// Present holds the sensors whose field was in the payload and not null.
	Present sensor.Set

	// Empty is set for a missing, null or {} node. Empty payloads carry no
	// state and must not refresh any heartbeat.
	Empty bool
}

// Update is one event from a Subscriber: a payload or an error.
type Update struct {
	Payload  Payload
	At       time.Time
	Revision uint64
	Err      error
}
