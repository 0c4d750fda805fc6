package dashboard

// DefaultHistorySize is the number of readings kept when none is configured.
const DefaultHistorySize = 20

// History is a bounded list of readings, oldest first. When full, a push
// evicts the oldest entry.
type History struct {
	capacity int
	items    []Reading
}

// NewHistory creates a history holding at most capacity readings.
// A non-positive capacity uses DefaultHistorySize.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistorySize
	}
	return &History{
		capacity: capacity,
		items:    make([]Reading, 0, capacity),
	}
}

// Push appends r, dropping the oldest reading if the history is full.
func (h *History) Push(r Reading) {
	h.items = append(h.items, r)
	if over := len(h.items) - h.capacity; over > 0 {
		h.items = append(h.items[:0], h.items[over:]...)
	}
}

// Len returns the number of readings held.
func (h *History) Len() int {
	return len(h.items)
}

// Cap returns the capacity.
func (h *History) Cap() int {
	return h.capacity
}

// Items returns a copy of the readings, oldest first.
func (h *History) Items() []Reading {
	out := make([]Reading, len(h.items))
	copy(out, h.items)
	return out
}

// Series returns one named series across the history, oldest first.
func (h *History) Series(name string) ([]SeriesPoint, bool) {
	return SeriesOf(h.items, name)
}

// SeriesOf extracts one named series from readings. It reports false for
// an unknown series name.
func SeriesOf(readings []Reading, name string) ([]SeriesPoint, bool) {
	if _, ok := (Reading{}).Series(name); !ok {
		return nil, false
	}
	out := make([]SeriesPoint, 0, len(readings))
	for _, r := range readings {
		v, _ := r.Series(name)
		out = append(out, SeriesPoint{ID: r.ID, Timestamp: r.Timestamp, Value: v})
	}
	return out, true
}

// SeriesPoint is one sample of a single series.
type SeriesPoint struct {
	ID        string  `json:"id"`
	Timestamp string  `json:"timestamp"`
	Value     float64 `json:"value"`
}
