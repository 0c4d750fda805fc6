package heartbeat

import (
	"testing"
	"time"

	"github.com/vinayprograms/solanirad/sensor"
)

func TestMonitor_Transitions(t *testing.T) {
	ev := NewEvaluator(DefaultConfig())
	mon := NewMonitor()

	var offline, online []sensor.ID
	mon.OnOffline(func(tr Transition) { offline = append(offline, tr.Sensor) })
	mon.OnOnline(func(tr Transition) { online = append(online, tr.Sensor) })

	// Nothing seen: no transitions.
	if got := mon.Check(ev.Evaluate(New(), ms(0)), New(), ms(0)); len(got) != 0 {
		t.Fatalf("expected no transitions, got %+v", got)
	}

	m := Observe(New(), sensor.SetOf(sensor.Ammonia), ms(1000))
	changes := mon.Check(ev.Evaluate(m, ms(1000)), m, ms(1000))
	if len(changes) != 2 {
		t.Fatalf("expected controller+ammonia online, got %+v", changes)
	}

	// Same snapshot again: no change.
	if got := mon.Check(ev.Evaluate(m, ms(2000)), m, ms(2000)); len(got) != 0 {
		t.Errorf("expected no transitions, got %+v", got)
	}

	// Timeout: both drop.
	now := ms(16000)
	changes = mon.Check(ev.Evaluate(m, now), m, now)
	if len(changes) != 2 {
		t.Fatalf("expected 2 offline transitions, got %+v", changes)
	}
	for _, tr := range changes {
		if tr.Online || tr.Silence != 15*time.Second {
			t.Errorf("unexpected transition %+v", tr)
		}
	}

	if len(online) != 2 || len(offline) != 2 {
		t.Errorf("callbacks: online=%v offline=%v", online, offline)
	}
	if mon.Last().Count() != 0 {
		t.Error("Last() should be all offline")
	}
}

func TestMonitor_FlipsWithoutHysteresis(t *testing.T) {
	ev := NewEvaluator(Config{Timeout: time.Second})
	mon := NewMonitor()

	m := Observe(New(), 0, ms(0))
	mon.Check(ev.Evaluate(m, ms(0)), m, ms(0))

	// One late tick flips it offline.
	if got := mon.Check(ev.Evaluate(m, ms(1000)), m, ms(1000)); len(got) != 1 || got[0].Online {
		t.Fatalf("expected offline flip, got %+v", got)
	}
	// One message flips it back.
	m = Observe(m, 0, ms(1001))
	if got := mon.Check(ev.Evaluate(m, ms(1001)), m, ms(1001)); len(got) != 1 || !got[0].Online {
		t.Fatalf("expected online flip, got %+v", got)
	}
}
