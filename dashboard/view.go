package dashboard

import (
	"time"

	"github.com/vinayprograms/solanirad/heartbeat"
	"github.com/vinayprograms/solanirad/safety"
	"github.com/vinayprograms/solanirad/sensor"
)

// Sync labels for the header indicator.
const (
	SyncLive    = "Live Sync"
	SyncOffline = "Offline / Reconnecting"
)

// KPIs are the headline values, each Disconnected when its sensor is
// offline.
type KPIs struct {
	NH3         heartbeat.Value `json:"nh3"`
	CO2         heartbeat.Value `json:"co2"`
	VOC         heartbeat.Value `json:"voc"`
	Temperature heartbeat.Value `json:"temp"`
	Humidity    heartbeat.Value `json:"humidity"`
	Weight      heartbeat.Value `json:"weight"`
	Battery     heartbeat.Value `json:"battery"`
}

// SensorView is the liveness of one sensor.
type SensorView struct {
	Sensor   sensor.ID  `json:"sensor"`
	Label    string     `json:"label"`
	Online   bool       `json:"online"`
	LastSeen *time.Time `json:"last_seen,omitempty"`
	// SilenceMS is the time since the sensor was last seen, 0 if never.
	SilenceMS int64 `json:"silence_ms"`
}

// View is an immutable rendering of the Model at one instant.
type View struct {
	GeneratedAt  time.Time          `json:"generated_at"`
	Connected    bool               `json:"connected"`
	Live         bool               `json:"live"`
	Sync         string             `json:"sync"`
	Revision     uint64             `json:"revision"`
	LastMessage  *time.Time         `json:"last_message,omitempty"`
	LastError    string             `json:"last_error,omitempty"`
	Current      *Reading           `json:"current,omitempty"`
	KPIs         KPIs               `json:"kpis"`
	Sensors      []SensorView       `json:"sensors"`
	Liveness     heartbeat.Liveness `json:"liveness"`
	Grid         Grid               `json:"grid"`
	Safety       []safety.Status    `json:"safety"`
	History      []Reading          `json:"history"`
	Notification *Notification      `json:"notification,omitempty"`
}

// Render derives a View from m at m.Now. Safety is classified from the
// last reading regardless of liveness; a model with no reading classifies
// zeros.
func Render(m *Model, eval heartbeat.Evaluator, thresholds []safety.Threshold) View {
	now := m.Now
	l := eval.Evaluate(m.Beats, now)

	v := View{
		GeneratedAt: now,
		Connected:   m.Connected,
		Live:        m.Connected && l.Controller(),
		Sync:        SyncOffline,
		Revision:    m.Revision,
		Liveness:    l,
		Grid:        BuildGrid(l, m.State),
		Safety:      safety.Evaluate(thresholds, m.Reading),
		History:     m.History.Items(),
		KPIs: KPIs{
			NH3:         eval.Display(m.Beats, sensor.Ammonia, now, m.State.Ammonia),
			CO2:         eval.Display(m.Beats, sensor.Environment, now, m.State.Environment.CO2),
			VOC:         eval.Display(m.Beats, sensor.VOC, now, m.State.VOC),
			Temperature: eval.Display(m.Beats, sensor.Environment, now, m.State.Environment.Temperature),
			Humidity:    eval.Display(m.Beats, sensor.Environment, now, m.State.Environment.Humidity),
			Weight:      eval.Display(m.Beats, sensor.LoadCell, now, m.State.LoadCell),
			Battery:     eval.Display(m.Beats, sensor.Controller, now, m.State.Battery),
		},
	}
	if v.Live {
		v.Sync = SyncLive
	}
	if !m.LastMessage.IsZero() {
		t := m.LastMessage
		v.LastMessage = &t
	}
	if m.LastError != nil {
		v.LastError = m.LastError.Error()
	}
	if m.HasReading {
		r := m.Reading
		v.Current = &r
	}
	if m.Notification != nil {
		n := *m.Notification
		v.Notification = &n
	}

	v.Sensors = make([]SensorView, 0, sensor.Count)
	for _, id := range sensor.All() {
		sv := SensorView{Sensor: id, Label: id.Label(), Online: l.Online(id)}
		if b := m.Beats.Beat(id); b.Seen {
			at := b.At
			sv.LastSeen = &at
		}
		if d, ok := m.Beats.Silence(id, now); ok && d > 0 {
			sv.SilenceMS = d.Milliseconds()
		}
		v.Sensors = append(v.Sensors, sv)
	}
	return v
}
