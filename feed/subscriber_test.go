package feed

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/vinayprograms/solanirad/errors"
	"github.com/vinayprograms/solanirad/logging"
	"github.com/vinayprograms/solanirad/metrics"
	"github.com/vinayprograms/solanirad/sensor"
	"github.com/vinayprograms/solanirad/state"
)

const node = "iot_system"

func next(t *testing.T, ch <-chan Update) Update {
	t.Helper()
	select {
	case u, ok := <-ch:
		if !ok {
			t.Fatal("update channel closed")
		}
		return u
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for update")
	}
	return Update{}
}

func newSubscriber(store state.StateStore) *StoreSubscriber {
	return NewStoreSubscriber(store, node, WithLogger(logging.Nop()))
}

func TestSubscribe_InitialThenUpdates(t *testing.T) {
	store := state.NewMemoryStore()
	defer store.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store.Put(ctx, node, []byte(`{"mq137": 10}`), 0)

	ch, err := newSubscriber(store).Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	first := next(t, ch)
	if first.Err != nil || first.Payload.State.Ammonia != 10 {
		t.Fatalf("initial update = %+v", first)
	}

	store.Put(ctx, node, []byte(`{"mq135": 33}`), 0)
	second := next(t, ch)
	if second.Payload.State.VOC != 33 || second.Payload.Present.Has(sensor.Ammonia) {
		t.Errorf("second update = %+v", second)
	}
	if second.Revision <= first.Revision {
		t.Errorf("revisions not increasing: %d then %d", first.Revision, second.Revision)
	}
}

func TestSubscribe_MissingNode(t *testing.T) {
	store := state.NewMemoryStore()
	defer store.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := newSubscriber(store).Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	select {
	case u := <-ch:
		t.Fatalf("unexpected update for missing node: %+v", u)
	case <-time.After(50 * time.Millisecond):
	}

	store.Put(ctx, node, []byte(`{"loadcell": 1}`), 0)
	if u := next(t, ch); !u.Payload.Present.Has(sensor.LoadCell) {
		t.Errorf("update = %+v", u)
	}
}

func TestSubscribe_ArrivalClock(t *testing.T) {
	store := state.NewMemoryStore()
	defer store.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	sub := NewStoreSubscriber(store, node, WithLogger(logging.Nop()),
		WithClock(func() time.Time { return at }))

	store.Put(ctx, node, []byte(`{"uvc": true}`), 0)
	ch, _ := sub.Subscribe(ctx)

	if u := next(t, ch); !u.At.Equal(at) {
		t.Errorf("At = %v, want %v", u.At, at)
	}
}

func TestSubscribe_BadPayloadAndDelete(t *testing.T) {
	store := state.NewMemoryStore()
	defer store.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, _ := newSubscriber(store).Subscribe(ctx)

	store.Put(ctx, node, []byte(`{not json`), 0)
	bad := next(t, ch)
	if !errors.Is(bad.Err, errors.ErrCodeInvalidInput) {
		t.Errorf("bad payload err = %v, want INVALID_INPUT", bad.Err)
	}

	store.Delete(ctx, node)
	if u := next(t, ch); u.Err != nil || !u.Payload.Empty {
		t.Errorf("delete update = %+v, want empty payload", u)
	}
}

func TestSubscribe_CancelReleases(t *testing.T) {
	store := state.NewMemoryStore()
	defer store.Close()
	ctx, cancel := context.WithCancel(context.Background())

	ch, _ := newSubscriber(store).Subscribe(ctx)
	cancel()

	select {
	case u, ok := <-ch:
		if ok {
			t.Errorf("expected closed channel, got %+v", u)
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}
}

func TestSubscribe_StoreClosedReportsFeedLost(t *testing.T) {
	store := state.NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, _ := newSubscriber(store).Subscribe(ctx)
	store.Close()

	u := next(t, ch)
	if !errors.Is(u.Err, errors.ErrCodeFeedLost) {
		t.Errorf("err = %v, want FEED_LOST", u.Err)
	}
	if _, ok := <-ch; ok {
		t.Error("channel should close after the final error")
	}
}

func TestSubscribe_InvalidKey(t *testing.T) {
	store := state.NewMemoryStore()
	defer store.Close()

	_, err := NewStoreSubscriber(store, "bad key").Subscribe(context.Background())
	if !errors.Is(err, errors.ErrCodeInvalidConfig) {
		t.Errorf("err = %v, want INVALID_CONFIG", err)
	}
}

func overflowCount(t *testing.T, m *metrics.Metrics) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != "solanirad_feed_dropped_total" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "reason" && label.GetValue() == "overflow" {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestSubscribe_BurstEndsOnNewest(t *testing.T) {
	store := state.NewMemoryStore()
	defer store.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()
	sub := NewStoreSubscriber(store, node, WithLogger(logging.Nop()), WithMetrics(m))
	ch, err := sub.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	const n = 300
	for i := 0; i < n; i++ {
		store.Put(ctx, node, []byte(fmt.Sprintf(`{"mq137": %d}`, i)), 0)
	}

	received := 0
	for {
		u := next(t, ch)
		if u.Err != nil {
			t.Fatalf("update error: %v", u.Err)
		}
		received++
		if u.Payload.State.Ammonia == n-1 {
			break
		}
	}

	dropped := overflowCount(t, m)
	if dropped == 0 {
		t.Error("expected overflow drops to be counted")
	}
	if got := float64(received) + dropped; got != n {
		t.Errorf("received %d + dropped %v = %v, want %d", received, dropped, got, n)
	}
}
