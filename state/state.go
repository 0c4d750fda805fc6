package state

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrNotFound    = errors.New("key not found")
	ErrClosed      = errors.New("store closed")
	ErrInvalidKey  = errors.New("invalid key")
	ErrInvalidTTL  = errors.New("invalid TTL")
	ErrWatchClosed = errors.New("watch closed")
)

// maxKeyLen bounds key length; JetStream KV rejects longer subjects.
const maxKeyLen = 1024

// Operation is the kind of change a KeyValue records.
type Operation int

const (
	OpPut Operation = iota
	OpDelete
)

func (o Operation) String() string {
	switch o {
	case OpPut:
		return "put"
	case OpDelete:
		return "delete"
	}
	return "unknown"
}

// KeyValue is one revision of a key. Value is nil for OpDelete.
type KeyValue struct {
	Key        string
	Value      []byte
	Revision   uint64
	Operation  Operation
	Created    time.Time
	Modified   time.Time
	// Superseded counts older watch updates dropped in favor of this one
	// because the watcher fell behind.
	Superseded uint64
}

// deliverLatest queues kv on ch without blocking. A full channel loses its
// oldest entry so the newest change always arrives.
func deliverLatest(ch chan *KeyValue, kv *KeyValue) {
	for {
		select {
		case ch <- kv:
			return
		default:
		}
		select {
		case old := <-ch:
			kv.Superseded += old.Superseded + 1
		default:
		}
	}
}

// Reader reads current values.
type Reader interface {
	// Get returns ErrNotFound for a missing key.
	Get(ctx context.Context, key string) ([]byte, error)
	GetKeyValue(ctx context.Context, key string) (*KeyValue, error)
}

// Writer changes values. The dashboard only ever writes commands.
type Writer interface {
	// Put stores value. A zero ttl never expires.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete is a no-op for a missing key.
	Delete(ctx context.Context, key string) error
}

// Watcher streams changes.
type Watcher interface {
	// Watch delivers changes to keys matching pattern that happen after
	// the call. A trailing * matches any suffix. The channel closes when
	// ctx is done, the watch fails or the store closes.
	Watch(ctx context.Context, pattern string) (<-chan *KeyValue, error)
}

// WatchReader is what a feed subscriber needs: an initial read followed
// by a change stream.
type WatchReader interface {
	Reader
	Watcher
}

// StateStore is the full key-value store.
type StateStore interface {
	Reader
	Writer
	Watcher
	Close() error
}

// ValidateKey rejects empty, overlong, space-containing and dot-edged keys.
func ValidateKey(key string) error {
	switch {
	case key == "", len(key) > maxKeyLen:
		return ErrInvalidKey
	case strings.ContainsAny(key, " \t\n"):
		return ErrInvalidKey
	case key[0] == '.' || key[len(key)-1] == '.':
		return ErrInvalidKey
	}
	return nil
}

// ValidateTTL rejects negative TTLs.
func ValidateTTL(ttl time.Duration) error {
	if ttl < 0 {
		return ErrInvalidTTL
	}
	return nil
}

// MatchPattern reports whether key matches pattern. "iot_system.*" matches
// "iot_system.control.reboot"; "*" matches everything.
func MatchPattern(pattern, key string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		return strings.HasPrefix(key, prefix)
	}
	return pattern == key
}
