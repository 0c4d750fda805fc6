package state

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// MemoryStore implements StateStore using in-memory storage.
// Used by tests and by the standalone demo with the built-in simulator.
type MemoryStore struct {
	mu       sync.RWMutex
	data     map[string]*entry
	watchers map[*watcher]struct{}
	revision uint64
	closed   atomic.Bool

	// For TTL cleanup
	cleanupTicker *time.Ticker
	done          chan struct{}
}

type entry struct {
	value    []byte
	revision uint64
	created  time.Time
	modified time.Time
	expires  time.Time // Zero means no expiry
}

type watcher struct {
	pattern string
	ch      chan *KeyValue
}

// NewMemoryStore creates a new in-memory state store.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		data:          make(map[string]*entry),
		watchers:      make(map[*watcher]struct{}),
		cleanupTicker: time.NewTicker(time.Second),
		done:          make(chan struct{}),
	}
	go s.cleanupLoop()
	return s
}

// cleanupLoop removes expired entries periodically.
func (s *MemoryStore) cleanupLoop() {
	for {
		select {
		case <-s.cleanupTicker.C:
			s.cleanupExpired()
		case <-s.done:
			return
		}
	}
}

// cleanupExpired removes entries that have expired.
func (s *MemoryStore) cleanupExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for key, e := range s.data {
		if !e.expires.IsZero() && now.After(e.expires) {
			delete(s.data, key)
			s.revision++
			s.notifyWatchers(key, nil, OpDelete, s.revision, now)
		}
	}
}

// lookup returns a live entry. Must be called with lock held.
func (s *MemoryStore) lookup(key string) (*entry, bool) {
	e, ok := s.data[key]
	if !ok {
		return nil, false
	}
	if !e.expires.IsZero() && time.Now().After(e.expires) {
		return nil, false
	}
	return e, true
}

// Get retrieves a value by key.
func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	kv, err := s.GetKeyValue(ctx, key)
	if err != nil {
		return nil, err
	}
	return kv.Value, nil
}

// GetKeyValue retrieves the full KeyValue entry.
func (s *MemoryStore) GetKeyValue(ctx context.Context, key string) (*KeyValue, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	if s.closed.Load() {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.lookup(key)
	if !ok {
		return nil, ErrNotFound
	}

	// Return a copy to prevent mutation
	val := make([]byte, len(e.value))
	copy(val, e.value)

	return &KeyValue{
		Key:       key,
		Value:     val,
		Revision:  e.revision,
		Operation: OpPut,
		Created:   e.created,
		Modified:  e.modified,
	}, nil
}

// Put stores a value with optional TTL.
func (s *MemoryStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if err := ValidateTTL(ttl); err != nil {
		return err
	}
	if s.closed.Load() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		return ErrClosed
	}

	now := time.Now()
	s.revision++
	rev := s.revision

	// Copy value to prevent external mutation
	val := make([]byte, len(value))
	copy(val, value)

	var expires time.Time
	if ttl > 0 {
		expires = now.Add(ttl)
	}

	created := now
	if existing, ok := s.lookup(key); ok {
		created = existing.created
	}

	s.data[key] = &entry{
		value:    val,
		revision: rev,
		created:  created,
		modified: now,
		expires:  expires,
	}

	s.notifyWatchers(key, val, OpPut, rev, now)
	return nil
}

// Delete removes a key.
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if s.closed.Load() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data[key]; ok {
		delete(s.data, key)
		s.revision++
		s.notifyWatchers(key, nil, OpDelete, s.revision, time.Now())
	}

	return nil
}

// Watch delivers changes to keys matching a pattern until ctx is done.
func (s *MemoryStore) Watch(ctx context.Context, pattern string) (<-chan *KeyValue, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	w := &watcher{
		pattern: pattern,
		ch:      make(chan *KeyValue, 64),
	}

	s.mu.Lock()
	if s.watchers == nil {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	s.watchers[w] = struct{}{}
	s.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-s.done:
			return // Close already closed the channel
		}
		s.removeWatcher(w)
	}()

	return w.ch, nil
}

func (s *MemoryStore) removeWatcher(w *watcher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.watchers[w]; ok {
		delete(s.watchers, w)
		close(w.ch)
	}
}

// notifyWatchers sends notifications to matching watchers.
// Must be called with lock held.
func (s *MemoryStore) notifyWatchers(key string, value []byte, op Operation, rev uint64, at time.Time) {
	for w := range s.watchers {
		if !MatchPattern(w.pattern, key) {
			continue
		}
		kv := &KeyValue{
			Key:       key,
			Value:     value,
			Revision:  rev,
			Operation: op,
			Modified:  at,
		}
		deliverLatest(w.ch, kv)
	}
}

// Close shuts down the store.
func (s *MemoryStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}

	s.cleanupTicker.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	close(s.done)
	for w := range s.watchers {
		close(w.ch)
	}
	s.watchers = nil
	s.data = nil

	return nil
}
