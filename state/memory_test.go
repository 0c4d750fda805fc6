package state

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

// ============================================================================
// LEVEL 1: Unit Tests - Basic Get/Put/Delete
// ============================================================================

func TestMemoryStore_Get_NotFound(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	_, err := s.Get(context.Background(), "nonexistent")
	if err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_PutGet(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	ctx := context.Background()

	key := "iot_system"
	value := []byte(`{"mq137":12.5}`)

	if err := s.Put(ctx, key, value, 0); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := s.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != string(value) {
		t.Errorf("expected %s, got %s", value, got)
	}
}

func TestMemoryStore_GetKeyValue(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	ctx := context.Background()

	if err := s.Put(ctx, "iot_system", []byte("a"), 0); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	first, _ := s.GetKeyValue(ctx, "iot_system")

	time.Sleep(2 * time.Millisecond)
	if err := s.Put(ctx, "iot_system", []byte("b"), 0); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	second, err := s.GetKeyValue(ctx, "iot_system")
	if err != nil {
		t.Fatalf("GetKeyValue failed: %v", err)
	}

	if second.Revision <= first.Revision {
		t.Errorf("revision should increase: %d -> %d", first.Revision, second.Revision)
	}
	if !second.Created.Equal(first.Created) {
		t.Error("created time should survive an update")
	}
	if !second.Modified.After(first.Modified) {
		t.Error("modified time should advance")
	}
	if second.Operation != OpPut {
		t.Errorf("expected OpPut, got %v", second.Operation)
	}
}

func TestMemoryStore_Delete(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	ctx := context.Background()

	key := "iot_system.control.reboot"
	if err := s.Put(ctx, key, []byte("true"), 0); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := s.Delete(ctx, key); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.Get(ctx, key); err != ErrNotFound {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}

	// Deleting again is not an error
	if err := s.Delete(ctx, key); err != nil {
		t.Errorf("Delete of nonexistent key should not error: %v", err)
	}
}

func TestMemoryStore_CanceledContext(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.Put(ctx, "iot_system", []byte("x"), 0); err != context.Canceled {
		t.Errorf("Put with canceled ctx: got %v", err)
	}
	if _, err := s.Get(ctx, "iot_system"); err != context.Canceled {
		t.Errorf("Get with canceled ctx: got %v", err)
	}
}

// ============================================================================
// LEVEL 2: Watch
// ============================================================================

func recv(t *testing.T, ch <-chan *KeyValue) *KeyValue {
	t.Helper()
	select {
	case kv, ok := <-ch:
		if !ok {
			t.Fatal("watch channel closed unexpectedly")
		}
		return kv
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for watch notification")
	}
	return nil
}

func TestMemoryStore_Watch(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	ctx := context.Background()

	// Existing values are not replayed
	s.Put(ctx, "iot_system", []byte("before"), 0)

	ch, err := s.Watch(ctx, "iot_system")
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}

	s.Put(ctx, "iot_system.control.reboot", []byte("true"), 0) // not matched
	s.Put(ctx, "iot_system", []byte("after"), 0)

	kv := recv(t, ch)
	if kv.Key != "iot_system" || string(kv.Value) != "after" {
		t.Errorf("unexpected notification %s=%s", kv.Key, kv.Value)
	}
	if kv.Operation != OpPut {
		t.Errorf("expected OpPut, got %v", kv.Operation)
	}
}

func TestMemoryStore_Watch_Delete(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	ctx := context.Background()

	s.Put(ctx, "iot_system", []byte("x"), 0)
	ch, _ := s.Watch(ctx, "iot_*")
	s.Delete(ctx, "iot_system")

	kv := recv(t, ch)
	if kv.Operation != OpDelete {
		t.Errorf("expected OpDelete, got %v", kv.Operation)
	}
}

func TestMemoryStore_Watch_BurstKeepsNewest(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	ctx := context.Background()

	ch, err := s.Watch(ctx, "iot_system")
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}

	const n = 300
	for i := 0; i < n; i++ {
		s.Put(ctx, "iot_system", []byte(fmt.Sprintf(`{"mq137": %d}`, i)), 0)
	}

	var last *KeyValue
	var received, superseded uint64
	for len(ch) > 0 {
		last = <-ch
		received++
		superseded += last.Superseded
	}
	if last == nil {
		t.Fatal("no notifications delivered")
	}
	if want := fmt.Sprintf(`{"mq137": %d}`, n-1); string(last.Value) != want {
		t.Errorf("last value = %s, want %s", last.Value, want)
	}
	if received+superseded != n {
		t.Errorf("received %d + superseded %d, want %d", received, superseded, n)
	}
}

func TestMemoryStore_Watch_ContextCancel(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := s.Watch(ctx, "*")
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected channel to close after cancel")
		}
	case <-time.After(time.Second):
		t.Fatal("watch channel not closed after cancel")
	}

	// Store keeps working for others
	if err := s.Put(context.Background(), "iot_system", []byte("x"), 0); err != nil {
		t.Errorf("Put after watcher cancel: %v", err)
	}
}

func TestMemoryStore_CloseReleasesWatchers(t *testing.T) {
	s := NewMemoryStore()
	ch, _ := s.Watch(context.Background(), "*")

	s.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("watch channel not closed after store close")
	}
}

// ============================================================================
// LEVEL 3: TTL, lifecycle, validation
// ============================================================================

func TestMemoryStore_TTLExpiry(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	ctx := context.Background()

	if err := s.Put(ctx, "iot_system.control.reboot", []byte("true"), 50*time.Millisecond); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if _, err := s.Get(ctx, "iot_system.control.reboot"); err != nil {
		t.Fatalf("Get before expiry: %v", err)
	}

	time.Sleep(80 * time.Millisecond)

	if _, err := s.Get(ctx, "iot_system.control.reboot"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound after expiry, got %v", err)
	}
}

func TestMemoryStore_OperationsAfterClose(t *testing.T) {
	s := NewMemoryStore()
	s.Close()
	ctx := context.Background()

	if err := s.Put(ctx, "k", []byte("v"), 0); err != ErrClosed {
		t.Errorf("Put after close: got %v", err)
	}
	if _, err := s.Get(ctx, "k"); err != ErrClosed {
		t.Errorf("Get after close: got %v", err)
	}
	if err := s.Delete(ctx, "k"); err != ErrClosed {
		t.Errorf("Delete after close: got %v", err)
	}
	if _, err := s.Watch(ctx, "*"); err != ErrClosed {
		t.Errorf("Watch after close: got %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("double Close: %v", err)
	}
}

func TestMemoryStore_Validation(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	ctx := context.Background()

	if err := s.Put(ctx, "bad key", []byte("v"), 0); err != ErrInvalidKey {
		t.Errorf("expected ErrInvalidKey, got %v", err)
	}
	if err := s.Put(ctx, "iot_system", []byte("v"), -time.Second); err != ErrInvalidTTL {
		t.Errorf("expected ErrInvalidTTL, got %v", err)
	}
}

func TestMemoryStore_ValueIsolation(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	ctx := context.Background()

	value := []byte("original")
	s.Put(ctx, "iot_system", value, 0)
	value[0] = 'X'

	got, _ := s.Get(ctx, "iot_system")
	if string(got) != "original" {
		t.Errorf("stored value mutated through caller slice: %s", got)
	}
	got[0] = 'Y'
	again, _ := s.Get(ctx, "iot_system")
	if string(again) != "original" {
		t.Errorf("stored value mutated through returned slice: %s", again)
	}
}

func TestMemoryStore_ConcurrentPut(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if err := s.Put(ctx, fmt.Sprintf("node.%d", n), []byte("v"), 0); err != nil {
				t.Errorf("Put %d: %v", n, err)
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < 50; i++ {
		if _, err := s.Get(ctx, fmt.Sprintf("node.%d", i)); err != nil {
			t.Errorf("Get node.%d: %v", i, err)
		}
	}
}

func BenchmarkMemoryStore_Put(b *testing.B) {
	s := NewMemoryStore()
	defer s.Close()
	ctx := context.Background()
	value := []byte(`{"mq137":12.5,"scd41":{"co2":640}}`)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.Put(ctx, "iot_system", value, 0)
	}
}
