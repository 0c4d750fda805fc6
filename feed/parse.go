package feed

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/vinayprograms/solanirad/errors"
	"github.com/vinayprograms/solanirad/sensor"
)

// Key names of fields that no sensor owns.
const (
	keyControllerStatus = "esp32_status"
	keyControllerUpdate = "esp32_last_update"
	keyBattery          = "battery"
)

// Parse decodes a raw node value. A missing, null or {} value yields an
// Empty payload. Anything that is not a JSON object is rejected with
// INVALID_INPUT.
func Parse(raw []byte) (Payload, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return Payload{Empty: true}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var node map[string]any
	if err := dec.Decode(&node); err != nil {
		return Payload{}, errors.WrapWithCode(err, errors.ErrCodeInvalidInput,
			"decode node", errors.WithComponent("feed"))
	}
	return Normalize(node), nil
}

// Normalize converts an already-decoded node. Missing or non-numeric
// numbers become 0 and missing booleans become false.
func Normalize(node map[string]any) Payload {
	if len(node) == 0 {
		return Payload{Empty: true}
	}

	var p Payload
	p.Present = p.Present.Add(sensor.Controller)
	for _, id := range sensor.All() {
		if _, ok := lookup(node, id.Keys()...); ok {
			p.Present = p.Present.Add(id)
		}
	}

	st := &p.State
	st.ControllerStatus = flagOf(node[keyControllerStatus])
	st.ControllerLastUpdate = timestampOf(node[keyControllerUpdate])
	st.Ammonia = field(node, sensor.Ammonia)
	st.VOC = field(node, sensor.VOC)
	st.LoadCell = field(node, sensor.LoadCell)
	st.Battery = numberOf(node[keyBattery])

	servo, _ := lookup(node, sensor.Servo.Keys()...)
	st.Servo = flagOf(servo)
	uvc, _ := lookup(node, sensor.UVC.Keys()...)
	st.UVC = flagOf(uvc)

	env, _ := lookup(node, sensor.Environment.Keys()...)
	if m, ok := env.(map[string]any); ok {
		st.Environment = Environment{
			CO2:         numberOf(m["co2"]),
			Temperature: numberOf(m["temperature"]),
			Humidity:    numberOf(m["humidity"]),
		}
	}
	return p
}

// lookup returns the first non-null value among keys.
func lookup(node map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := node[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func field(node map[string]any, id sensor.ID) float64 {
	v, _ := lookup(node, id.Keys()...)
	return numberOf(v)
}

// numberOf coerces a JSON value to a finite float.
func numberOf(v any) float64 {
	var f float64
	switch x := v.(type) {
	case json.Number:
		f, _ = x.Float64()
	case float64:
		f = x
	case string:
		f, _ = strconv.ParseFloat(strings.TrimSpace(x), 64)
	case bool:
		if x {
			f = 1
		}
	case map[string]any:
		return numberOf(x["value"])
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// timestampOf coerces a JSON value to an integer timestamp. Values outside
// the int64 range become 0.
func timestampOf(v any) int64 {
	if n, ok := v.(json.Number); ok {
		if i, err := n.Int64(); err == nil {
			return i
		}
	}
	f := numberOf(v)
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0
	}
	return int64(f)
}

// flagOf coerces a JSON value to a boolean.
func flagOf(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(x))
		return err == nil && b
	case map[string]any:
		return flagOf(x["value"])
	case nil:
		return false
	}
	return numberOf(v) != 0
}
