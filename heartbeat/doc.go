// Package heartbeat infers per-sensor liveness from the arrival of
// telemetry.
//
// # Overview
//
// Every inbound payload refreshes the controller, which is the transport
// heartbeat, plus each sensor whose field is present in the payload. A
// sensor whose last beat is older than the timeout is presumed offline and
// its last value is replaced by a Disconnected marker for display.
//
//	payload ──Observe──> Map ──Evaluator(now)──> Liveness / Value
//
// Map is an immutable value: Observe returns a new Map and never touches
// its argument. Evaluator is a pure function of (Map, now) and can be
// re-run at any time with the same result.
//
// # Usage
//
//	beats := heartbeat.New()
//	beats = heartbeat.Observe(beats, sensor.SetOf(sensor.Ammonia), arrival)
//
//	ev := heartbeat.NewEvaluator(heartbeat.DefaultConfig())
//	if ev.Online(beats, sensor.Ammonia, time.Now()) {
//	    // trust the last ammonia reading
//	}
//
// Monitor turns successive Liveness snapshots into online/offline
// transitions so callers can log or count them.
//
// # Never seen
//
// A sensor that has never been observed is offline regardless of the
// clock. Beat.Seen carries this explicitly; the zero time is not used as
// a marker.
package heartbeat
