package state

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// NATSStore implements StateStore using NATS JetStream KV.
type NATSStore struct {
	conn   *nats.Conn
	js     jetstream.JetStream
	kv     jetstream.KeyValue
	config NATSStoreConfig
	closed atomic.Bool
	done   chan struct{}
}

// NATSStoreConfig holds NATS KV store configuration.
type NATSStoreConfig struct {
	// Conn is the NATS connection to use.
	Conn *nats.Conn

	// Bucket is the KV bucket name.
	Bucket string

	// TTL is the default TTL for entries (0 = no default).
	TTL time.Duration

	// History is the number of revisions to keep per key.
	// Default: 1
	History int

	// MaxValueSize is the maximum value size in bytes.
	// Default: 64KB
	MaxValueSize int32

	// OpTimeout bounds each Get/Put/Delete when the caller's context has
	// no deadline. Default: 5s
	OpTimeout time.Duration
}

// DefaultNATSStoreConfig returns configuration with sensible defaults.
func DefaultNATSStoreConfig() NATSStoreConfig {
	return NATSStoreConfig{
		Bucket:       "solanirad",
		History:      1,
		MaxValueSize: 64 * 1024,
		OpTimeout:    5 * time.Second,
	}
}

// NewNATSStore binds to (creating if needed) a JetStream KV bucket.
func NewNATSStore(cfg NATSStoreConfig) (*NATSStore, error) {
	if cfg.Conn == nil {
		return nil, fmt.Errorf("nats connection required")
	}
	defaults := DefaultNATSStoreConfig()
	if cfg.Bucket == "" {
		cfg.Bucket = defaults.Bucket
	}
	if cfg.History <= 0 {
		cfg.History = defaults.History
	}
	if cfg.MaxValueSize <= 0 {
		cfg.MaxValueSize = defaults.MaxValueSize
	}
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = defaults.OpTimeout
	}

	js, err := jetstream.New(cfg.Conn)
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:       cfg.Bucket,
		TTL:          cfg.TTL,
		History:      uint8(cfg.History),
		MaxValueSize: cfg.MaxValueSize,
	})
	if err != nil {
		return nil, fmt.Errorf("create kv bucket: %w", err)
	}

	return &NATSStore{
		conn:   cfg.Conn,
		js:     js,
		kv:     kv,
		config: cfg,
		done:   make(chan struct{}),
	}, nil
}

// opContext applies the default timeout unless ctx already has a deadline.
func (s *NATSStore) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.config.OpTimeout)
}

// Connected reports whether the underlying NATS connection is up.
func (s *NATSStore) Connected() bool {
	return !s.closed.Load() && s.conn.IsConnected()
}

// Get retrieves a value by key.
func (s *NATSStore) Get(ctx context.Context, key string) ([]byte, error) {
	kv, err := s.GetKeyValue(ctx, key)
	if err != nil {
		return nil, err
	}
	return kv.Value, nil
}

// GetKeyValue retrieves the full KeyValue entry.
func (s *NATSStore) GetKeyValue(ctx context.Context, key string) (*KeyValue, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	if s.closed.Load() {
		return nil, ErrClosed
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	entry, err := s.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("kv get: %w", err)
	}

	return fromEntry(entry), nil
}

// fromEntry converts a JetStream KV entry. NATS KV only records the time
// of the revision, so Created and Modified are the same.
func fromEntry(entry jetstream.KeyValueEntry) *KeyValue {
	return &KeyValue{
		Key:       entry.Key(),
		Value:     entry.Value(),
		Revision:  entry.Revision(),
		Operation: opFromNATS(entry.Operation()),
		Created:   entry.Created(),
		Modified:  entry.Created(),
	}
}

// opFromNATS converts NATS operation to our Operation type.
func opFromNATS(op jetstream.KeyValueOp) Operation {
	switch op {
	case jetstream.KeyValuePut:
		return OpPut
	case jetstream.KeyValueDelete, jetstream.KeyValuePurge:
		return OpDelete
	default:
		return OpPut
	}
}

// Put stores a value. NATS KV TTL is bucket-level, so a non-zero ttl is
// validated but otherwise governed by the bucket configuration.
func (s *NATSStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if err := ValidateTTL(ttl); err != nil {
		return err
	}
	if s.closed.Load() {
		return ErrClosed
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	if _, err := s.kv.Put(ctx, key, value); err != nil {
		return fmt.Errorf("kv put: %w", err)
	}
	return nil
}

// Delete removes a key.
func (s *NATSStore) Delete(ctx context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if s.closed.Load() {
		return ErrClosed
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	err := s.kv.Delete(ctx, key)
	if err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return fmt.Errorf("kv delete: %w", err)
	}
	return nil
}

// natsPattern converts a trailing-* pattern to a NATS subject wildcard.
func natsPattern(pattern string) string {
	if pattern == "*" {
		return ">"
	}
	if strings.HasSuffix(pattern, "*") {
		return strings.TrimSuffix(pattern, "*") + ">"
	}
	return pattern
}

// Watch delivers puts made after the call to keys matching pattern.
func (s *NATSStore) Watch(ctx context.Context, pattern string) (<-chan *KeyValue, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	opts := []jetstream.WatchOpt{jetstream.UpdatesOnly(), jetstream.IgnoreDeletes()}

	var watcher jetstream.KeyWatcher
	var err error
	if p := natsPattern(pattern); p == ">" {
		watcher, err = s.kv.WatchAll(ctx, opts...)
	} else {
		watcher, err = s.kv.Watch(ctx, p, opts...)
	}
	if err != nil {
		return nil, fmt.Errorf("kv watch: %w", err)
	}

	ch := make(chan *KeyValue, 64)
	go s.watchLoop(ctx, watcher, ch, pattern)
	return ch, nil
}

// watchLoop forwards watch updates until ctx is done or the store closes.
func (s *NATSStore) watchLoop(ctx context.Context, watcher jetstream.KeyWatcher, ch chan *KeyValue, pattern string) {
	defer close(ch)
	defer watcher.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case entry, ok := <-watcher.Updates():
			if !ok {
				return
			}
			if entry == nil {
				continue // Initial sync complete marker
			}

			// Filter by our pattern if NATS pattern was broader
			if !MatchPattern(pattern, entry.Key()) {
				continue
			}

			deliverLatest(ch, fromEntry(entry))
		}
	}
}

// Close shuts down the store. The NATS connection belongs to the caller.
func (s *NATSStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	close(s.done)
	return nil
}
