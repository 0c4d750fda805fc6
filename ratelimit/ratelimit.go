package ratelimit

import (
	"errors"
	"sync"
	"time"
)

// ErrClosed is returned by a second Close.
var ErrClosed = errors.New("limiter closed")

// Capacity describes one command's bucket.
type Capacity struct {
	Command   string        `json:"command"`
	Available int           `json:"available"`
	Total     int           `json:"total"`
	Window    time.Duration `json:"window"`
}

// bucket is a token bucket.
type bucket struct {
	capacity   int
	available  int
	window     time.Duration
	lastRefill time.Time
}

// refill adds whole tokens for the time elapsed since the last refill.
func (b *bucket) refill(now time.Time) {
	elapsed := now.Sub(b.lastRefill)
	if elapsed <= 0 {
		return
	}
	add := int(float64(b.capacity) * float64(elapsed) / float64(b.window))
	if add <= 0 {
		return
	}
	b.available += add
	if b.available >= b.capacity {
		b.available = b.capacity
		b.lastRefill = now
		return
	}
	// keep the fractional remainder
	b.lastRefill = b.lastRefill.Add(time.Duration(float64(add) * float64(b.window) / float64(b.capacity)))
}

// untilNext is the time until one more token arrives.
func (b *bucket) untilNext(now time.Time) time.Duration {
	if b.available > 0 {
		return 0
	}
	per := time.Duration(float64(b.window) / float64(b.capacity))
	d := b.lastRefill.Add(per).Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// Limiter holds per-command buckets. It is safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	closed  bool
	now     func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides the wall clock. Tests use this.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// New creates an empty limiter.
func New(opts ...Option) *Limiter {
	l := &Limiter{
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// SetLimit allows capacity commands per window. A non-positive capacity
// or window removes the limit.
func (l *Limiter) SetLimit(command string, capacity int, window time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if capacity <= 0 || window <= 0 {
		delete(l.buckets, command)
		return
	}
	if b, ok := l.buckets[command]; ok {
		b.refill(l.now())
		b.capacity = capacity
		b.window = window
		if b.available > capacity {
			b.available = capacity
		}
		return
	}
	l.buckets[command] = &bucket{
		capacity:   capacity,
		available:  capacity,
		window:     window,
		lastRefill: l.now(),
	}
}

// Allow takes a token for command if one is available. Unlimited commands
// are always allowed; nothing is allowed after Close.
func (l *Limiter) Allow(command string) bool {
	if l == nil {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return false
	}
	b, ok := l.buckets[command]
	if !ok {
		return true
	}
	b.refill(l.now())
	if b.available == 0 {
		return false
	}
	b.available--
	return true
}

// RetryAfter is how long until Allow(command) can next succeed.
func (l *Limiter) RetryAfter(command string) time.Duration {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[command]
	if !ok {
		return 0
	}
	now := l.now()
	b.refill(now)
	return b.untilNext(now)
}

// Capacity reports the bucket for command, or nil if it is unlimited.
func (l *Limiter) Capacity(command string) *Capacity {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[command]
	if !ok {
		return nil
	}
	b.refill(l.now())
	return &Capacity{
		Command:   command,
		Available: b.available,
		Total:     b.capacity,
		Window:    b.window,
	}
}

// Close rejects every later Allow.
func (l *Limiter) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrClosed
	}
	l.closed = true
	return nil
}
