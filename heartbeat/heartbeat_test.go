package heartbeat

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/vinayprograms/solanirad/sensor"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func ms(n int) time.Time {
	return t0.Add(time.Duration(n) * time.Millisecond)
}

func TestNew_NeverSeen(t *testing.T) {
	m := New()
	for _, id := range sensor.All() {
		if m.Beat(id).Seen {
			t.Errorf("%v should start unseen", id)
		}
	}
	if m.Beat(sensor.ID(99)).Seen {
		t.Error("unknown sensor should read unseen")
	}
}

func TestObserve_UpdatesPresentOnly(t *testing.T) {
	m := Observe(New(), sensor.SetOf(sensor.Ammonia, sensor.LoadCell), ms(1000))

	for _, id := range []sensor.ID{sensor.Controller, sensor.Ammonia, sensor.LoadCell} {
		b := m.Beat(id)
		if !b.Seen || !b.At.Equal(ms(1000)) {
			t.Errorf("%v beat = %+v, want seen at 1000ms", id, b)
		}
	}
	for _, id := range []sensor.ID{sensor.VOC, sensor.Environment, sensor.Servo, sensor.UVC} {
		if m.Beat(id).Seen {
			t.Errorf("%v should remain unseen", id)
		}
	}
}

func TestObserve_LeavesOthersUnchanged(t *testing.T) {
	m := Observe(New(), sensor.SetOf(sensor.VOC), ms(1000))
	m = Observe(m, sensor.SetOf(sensor.Ammonia), ms(4000))

	if got := m.Beat(sensor.VOC).At; !got.Equal(ms(1000)) {
		t.Errorf("VOC beat moved to %v", got)
	}
	if got := m.Beat(sensor.Ammonia).At; !got.Equal(ms(4000)) {
		t.Errorf("ammonia beat = %v", got)
	}
	if got := m.Beat(sensor.Controller).At; !got.Equal(ms(4000)) {
		t.Errorf("controller beat = %v, want the latest arrival", got)
	}
}

func TestObserve_EmptySetStillRefreshesController(t *testing.T) {
	m := Observe(New(), 0, ms(10))
	if !m.Beat(sensor.Controller).Seen {
		t.Error("controller should be refreshed by any payload")
	}
	if m.Beat(sensor.Ammonia).Seen {
		t.Error("ammonia should not be refreshed")
	}
}

func TestObserve_DoesNotMutateArgument(t *testing.T) {
	before := Observe(New(), sensor.SetOf(sensor.Ammonia), ms(1000))
	after := Observe(before, sensor.SetOf(sensor.Ammonia), ms(2000))

	if !before.Beat(sensor.Ammonia).At.Equal(ms(1000)) {
		t.Error("Observe mutated its argument")
	}
	if !after.Beat(sensor.Ammonia).At.Equal(ms(2000)) {
		t.Error("Observe result not updated")
	}
}

func TestObserve_NeverMovesBackwards(t *testing.T) {
	m := Observe(New(), sensor.SetOf(sensor.Ammonia), ms(5000))
	m = Observe(m, sensor.SetOf(sensor.Ammonia), ms(3000))

	if got := m.Beat(sensor.Ammonia).At; !got.Equal(ms(5000)) {
		t.Errorf("beat moved backwards to %v", got)
	}
}

func TestSilence(t *testing.T) {
	m := Observe(New(), 0, ms(1000))
	if d, ok := m.Silence(sensor.Controller, ms(4500)); !ok || d != 3500*time.Millisecond {
		t.Errorf("Silence = %v,%v", d, ok)
	}
	if _, ok := m.Silence(sensor.VOC, ms(4500)); ok {
		t.Error("never-seen sensor has no silence")
	}
}

func TestMap_MarshalJSON(t *testing.T) {
	m := Observe(New(), sensor.SetOf(sensor.UVC), t0)
	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var got map[string]Beat
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(got) != int(sensor.Count) {
		t.Errorf("expected %d keys, got %d", sensor.Count, len(got))
	}
	if !got["uvc"].Seen || got["voc"].Seen {
		t.Errorf("unexpected beats: %+v", got)
	}
}
