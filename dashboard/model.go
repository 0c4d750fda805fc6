package dashboard

import (
	"time"

	"github.com/vinayprograms/solanirad/errors"
	"github.com/vinayprograms/solanirad/feed"
	"github.com/vinayprograms/solanirad/heartbeat"
)

// Event is something the engine applies to its Model.
type Event interface {
	isEvent()
}

// FeedMessage is a decoded payload that arrived at At.
type FeedMessage struct {
	Payload  feed.Payload
	At       time.Time
	Revision uint64
}

// FeedError reports a feed problem. Undecodable payloads carry an
// INVALID_INPUT error and are dropped; anything else means the
// subscription itself failed.
type FeedError struct {
	Err error
	At  time.Time
}

// Tick advances the clock.
type Tick struct {
	Now time.Time
}

// notified carries a command outcome back into the loop.
type notified struct {
	Notification Notification
}

func (FeedMessage) isEvent() {}
func (FeedError) isEvent()   {}
func (Tick) isEvent()        {}
func (notified) isEvent()    {}

// EventFromUpdate converts a subscriber update into an engine event.
func EventFromUpdate(u feed.Update) Event {
	if u.Err != nil {
		return FeedError{Err: u.Err, At: u.At}
	}
	return FeedMessage{Payload: u.Payload, At: u.At, Revision: u.Revision}
}

// Outcome describes what Apply did with an event.
type Outcome int

const (
	// OutcomeApplied means a payload replaced the system state.
	OutcomeApplied Outcome = iota
	// OutcomeEmpty means an empty payload was ignored.
	OutcomeEmpty
	// OutcomeInvalid means an undecodable payload was ignored.
	OutcomeInvalid
	// OutcomeDisconnected means the feed failed.
	OutcomeDisconnected
	// OutcomeTick means the clock advanced.
	OutcomeTick
	// OutcomeNotified means a command notification was recorded.
	OutcomeNotified
)

var outcomeNames = [...]string{"applied", "empty", "invalid", "disconnected", "tick", "notified"}

func (o Outcome) String() string {
	if o < 0 || int(o) >= len(outcomeNames) {
		return "unknown"
	}
	return outcomeNames[o]
}

// Model is the state owned by the engine loop. It is not safe for
// concurrent use; the engine applies events one at a time.
type Model struct {
	State       feed.SystemState
	Reading     Reading
	HasReading  bool
	History     *History
	Beats       heartbeat.Map
	Connected   bool
	Now         time.Time
	LastMessage time.Time
	Revision    uint64

	// LastError is the most recent feed failure, cleared by the next payload.
	LastError error

	// Notification is the latest command outcome.
	Notification *Notification
}

// NewModel returns a disconnected model with every sensor never seen.
func NewModel(historySize int) *Model {
	return &Model{
		History: NewHistory(historySize),
		Beats:   heartbeat.New(),
	}
}

// Apply processes one event.
func (m *Model) Apply(ev Event) Outcome {
	switch ev := ev.(type) {
	case FeedMessage:
		if ev.Payload.Empty {
			return OutcomeEmpty
		}
		m.State = ev.Payload.State
		m.Beats = heartbeat.Observe(m.Beats, ev.Payload.Present, ev.At)
		m.Reading = NewReading(ev.Payload.State, ev.At)
		m.HasReading = true
		m.History.Push(m.Reading)
		m.Connected = true
		m.LastError = nil
		if ev.At.After(m.LastMessage) {
			m.LastMessage = ev.At
		}
		if ev.Revision > m.Revision {
			m.Revision = ev.Revision
		}
		return OutcomeApplied

	case FeedError:
		if errors.Is(ev.Err, errors.ErrCodeInvalidInput) {
			return OutcomeInvalid
		}
		m.Connected = false
		m.LastError = ev.Err
		return OutcomeDisconnected

	case Tick:
		m.Now = ev.Now
		return OutcomeTick

	case notified:
		n := ev.Notification
		m.Notification = &n
		return OutcomeNotified
	}
	return OutcomeTick
}
