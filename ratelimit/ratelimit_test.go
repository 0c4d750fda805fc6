package ratelimit

import (
	"sync"
	"testing"
	"time"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newLimiter() (*Limiter, *clock) {
	c := &clock{t: time.Unix(1_700_000_000, 0)}
	return New(WithClock(c.Now)), c
}

// ============================================================================
// Allow
// ============================================================================

func TestAllow_ExhaustsCapacity(t *testing.T) {
	l, _ := newLimiter()
	l.SetLimit("reboot", 3, time.Minute)

	for i := 0; i < 3; i++ {
		if !l.Allow("reboot") {
			t.Fatalf("Allow #%d = false, want true", i+1)
		}
	}
	if l.Allow("reboot") {
		t.Error("4th Allow = true, want false")
	}
	if got := l.Capacity("reboot").Available; got != 0 {
		t.Errorf("Available = %d, want 0", got)
	}
}

func TestAllow_UnlimitedCommand(t *testing.T) {
	l, _ := newLimiter()
	for i := 0; i < 100; i++ {
		if !l.Allow("reboot") {
			t.Fatal("unlimited command throttled")
		}
	}
	if l.Capacity("reboot") != nil {
		t.Error("Capacity of unlimited command should be nil")
	}
}

func TestAllow_NilLimiter(t *testing.T) {
	var l *Limiter
	if !l.Allow("reboot") {
		t.Error("nil limiter should allow")
	}
	if l.RetryAfter("reboot") != 0 {
		t.Error("nil limiter RetryAfter should be 0")
	}
}

func TestAllow_Refill(t *testing.T) {
	tests := []struct {
		name    string
		advance time.Duration
		want    int
	}{
		{"no time", 0, 0},
		{"under one token", 19 * time.Second, 0},
		{"one token", 20 * time.Second, 1},
		{"two tokens", 45 * time.Second, 2},
		{"full window", time.Minute, 3},
		{"capped", 10 * time.Minute, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, c := newLimiter()
			l.SetLimit("reboot", 3, time.Minute)
			for l.Allow("reboot") {
			}

			c.Advance(tt.advance)
			if got := l.Capacity("reboot").Available; got != tt.want {
				t.Errorf("Available = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAllow_KeepsFractionalRefill(t *testing.T) {
	l, c := newLimiter()
	l.SetLimit("reboot", 3, time.Minute)
	for l.Allow("reboot") {
	}

	// 30s is 1.5 tokens; the half carries over.
	c.Advance(30 * time.Second)
	if !l.Allow("reboot") {
		t.Fatal("Allow after 30s = false")
	}
	c.Advance(10 * time.Second)
	if !l.Allow("reboot") {
		t.Error("Allow after 40s total = false, want the carried half token to complete")
	}
}

// ============================================================================
// RetryAfter
// ============================================================================

func TestRetryAfter(t *testing.T) {
	l, c := newLimiter()
	l.SetLimit("reboot", 2, time.Minute)

	if got := l.RetryAfter("reboot"); got != 0 {
		t.Errorf("RetryAfter with tokens = %v, want 0", got)
	}

	l.Allow("reboot")
	l.Allow("reboot")
	if got := l.RetryAfter("reboot"); got != 30*time.Second {
		t.Errorf("RetryAfter = %v, want 30s", got)
	}

	c.Advance(10 * time.Second)
	if got := l.RetryAfter("reboot"); got != 20*time.Second {
		t.Errorf("RetryAfter after 10s = %v, want 20s", got)
	}
}

// ============================================================================
// SetLimit / Close
// ============================================================================

func TestSetLimit_RemoveAndShrink(t *testing.T) {
	l, _ := newLimiter()
	l.SetLimit("reboot", 5, time.Minute)

	l.SetLimit("reboot", 2, time.Minute)
	if got := l.Capacity("reboot"); got.Total != 2 || got.Available != 2 {
		t.Errorf("after shrink = %+v, want total 2 available 2", got)
	}

	l.SetLimit("reboot", 0, time.Minute)
	if l.Capacity("reboot") != nil {
		t.Error("zero capacity should remove the limit")
	}
}

func TestClose(t *testing.T) {
	l, _ := newLimiter()
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if l.Allow("reboot") {
		t.Error("Allow after Close = true")
	}
	if err := l.Close(); err != ErrClosed {
		t.Errorf("second Close = %v, want ErrClosed", err)
	}
}

func TestAllow_Concurrent(t *testing.T) {
	l, _ := newLimiter()
	l.SetLimit("reboot", 10, time.Hour)

	var wg sync.WaitGroup
	var mu sync.Mutex
	granted := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow("reboot") {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if granted != 10 {
		t.Errorf("granted = %d, want 10", granted)
	}
}
