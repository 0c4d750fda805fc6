package heartbeat

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/vinayprograms/solanirad/sensor"
)

// Config configures liveness evaluation.
type Config struct {
	// Timeout after which a silent sensor is presumed offline.
	// Default: 15 seconds
	Timeout time.Duration

	// RefreshInterval is how often callers should re-evaluate.
	// Default: 1 second
	RefreshInterval time.Duration
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:         15 * time.Second,
		RefreshInterval: 1 * time.Second,
	}
}

// Evaluator decides whether sensors are online. It holds only its timeout.
type Evaluator struct {
	timeout time.Duration
}

// NewEvaluator returns an evaluator; a non-positive timeout uses the default.
func NewEvaluator(cfg Config) Evaluator {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultConfig().Timeout
	}
	return Evaluator{timeout: timeout}
}

// Timeout returns the staleness threshold.
func (e Evaluator) Timeout() time.Duration {
	return e.timeout
}

// beatOnline is the raw predicate: seen, and strictly younger than timeout.
func (e Evaluator) beatOnline(m Map, id sensor.ID, now time.Time) bool {
	b := m.Beat(id)
	return b.Seen && now.Sub(b.At) < e.timeout
}

// ControllerOnline reports whether the controller's own heartbeat is fresh.
func (e Evaluator) ControllerOnline(m Map, now time.Time) bool {
	return e.beatOnline(m, sensor.Controller, now)
}

// Online reports whether id is online at now. The servo and UV-C actuators
// additionally require the controller, since their flags are only
// meaningful while it is reachable.
func (e Evaluator) Online(m Map, id sensor.ID, now time.Time) bool {
	if !e.beatOnline(m, id, now) {
		return false
	}
	switch id {
	case sensor.Servo, sensor.UVC:
		return e.ControllerOnline(m, now)
	}
	return true
}

// Display selects what to show for v, the last known value of id.
func (e Evaluator) Display(m Map, id sensor.ID, now time.Time, v float64) Value {
	if !e.Online(m, id, now) {
		return Disconnected()
	}
	return Number(v)
}

// Evaluate computes the online flag for every sensor.
func (e Evaluator) Evaluate(m Map, now time.Time) Liveness {
	var l Liveness
	for _, id := range sensor.All() {
		l.online[id] = e.Online(m, id, now)
	}
	return l
}

// Liveness is the per-sensor online set at one instant.
type Liveness struct {
	online [sensor.Count]bool
}

// Online reports the flag for id. Unknown IDs are offline.
func (l Liveness) Online(id sensor.ID) bool {
	return id.Valid() && l.online[id]
}

// Controller is shorthand for Online(sensor.Controller).
func (l Liveness) Controller() bool {
	return l.online[sensor.Controller]
}

// Count returns how many sensors are online.
func (l Liveness) Count() int {
	n := 0
	for _, on := range l.online {
		if on {
			n++
		}
	}
	return n
}

// MarshalJSON encodes the set as {"controller":true,...}.
func (l Liveness) MarshalJSON() ([]byte, error) {
	out := make(map[sensor.ID]bool, sensor.Count)
	for _, id := range sensor.All() {
		out[id] = l.online[id]
	}
	return json.Marshal(out)
}

// Kind tags a display Value.
type Kind uint8

const (
	// KindDisconnected marks a value whose sensor is offline.
	KindDisconnected Kind = iota
	// KindValue marks a live numeric value.
	KindValue
)

// DisconnectedText is the JSON form of a disconnected Value.
const DisconnectedText = "Disconnected"

// Value is either a live number or the Disconnected marker. The zero Value
// is Disconnected.
type Value struct {
	Kind Kind
	V    float64
}

// Number returns a live value.
func Number(v float64) Value {
	return Value{Kind: KindValue, V: v}
}

// Disconnected returns the marker value.
func Disconnected() Value {
	return Value{Kind: KindDisconnected}
}

// IsDisconnected reports whether v is the marker.
func (v Value) IsDisconnected() bool {
	return v.Kind != KindValue
}

// Float returns the number, or 0 when disconnected.
func (v Value) Float() float64 {
	if v.IsDisconnected() {
		return 0
	}
	return v.V
}

func (v Value) String() string {
	if v.IsDisconnected() {
		return DisconnectedText
	}
	return fmt.Sprintf("%g", v.V)
}

// MarshalJSON encodes a number or the string "Disconnected".
func (v Value) MarshalJSON() ([]byte, error) {
	if v.IsDisconnected() {
		return json.Marshal(DisconnectedText)
	}
	return json.Marshal(v.V)
}

// UnmarshalJSON accepts what MarshalJSON produces.
func (v *Value) UnmarshalJSON(data []byte) error {
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*v = Number(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("heartbeat value: %w", err)
	}
	if s != DisconnectedText {
		return fmt.Errorf("heartbeat value: unexpected %q", s)
	}
	*v = Disconnected()
	return nil
}
