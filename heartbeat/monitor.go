package heartbeat

import (
	"sync"
	"time"

	"github.com/vinayprograms/solanirad/sensor"
)

// Transition is a sensor crossing between online and offline.
type Transition struct {
	Sensor sensor.ID
	Online bool
	At     time.Time

	// Silence is how long the sensor had been quiet when it went offline.
	Silence time.Duration
}

// Monitor compares successive Liveness snapshots and reports changes.
// Every sensor starts offline, so a sensor that was never seen produces
// no transition until it first comes online.
type Monitor struct {
	mu         sync.Mutex
	last       Liveness
	offlineCBs []func(Transition)
	onlineCBs  []func(Transition)
}

// NewMonitor creates a monitor with every sensor offline.
func NewMonitor() *Monitor {
	return &Monitor{}
}

// OnOffline registers a callback for sensors going offline.
func (m *Monitor) OnOffline(cb func(Transition)) {
	m.mu.Lock()
	m.offlineCBs = append(m.offlineCBs, cb)
	m.mu.Unlock()
}

// OnOnline registers a callback for sensors coming online.
func (m *Monitor) OnOnline(cb func(Transition)) {
	m.mu.Lock()
	m.onlineCBs = append(m.onlineCBs, cb)
	m.mu.Unlock()
}

// Check records l as the current snapshot and returns the transitions
// since the previous one, invoking callbacks for each.
func (m *Monitor) Check(l Liveness, beats Map, now time.Time) []Transition {
	m.mu.Lock()
	var changes []Transition
	for _, id := range sensor.All() {
		was, is := m.last.Online(id), l.Online(id)
		if was == is {
			continue
		}
		tr := Transition{Sensor: id, Online: is, At: now}
		if !is {
			tr.Silence, _ = beats.Silence(id, now)
		}
		changes = append(changes, tr)
	}
	m.last = l
	offline := make([]func(Transition), len(m.offlineCBs))
	copy(offline, m.offlineCBs)
	online := make([]func(Transition), len(m.onlineCBs))
	copy(online, m.onlineCBs)
	m.mu.Unlock()

	for _, tr := range changes {
		cbs := offline
		if tr.Online {
			cbs = online
		}
		for _, cb := range cbs {
			cb(tr)
		}
	}
	return changes
}

// Last returns the most recently checked snapshot.
func (m *Monitor) Last() Liveness {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}
