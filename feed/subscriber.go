package feed

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/vinayprograms/solanirad/errors"
	"github.com/vinayprograms/solanirad/logging"
	"github.com/vinayprograms/solanirad/metrics"
	"github.com/vinayprograms/solanirad/state"
)

// Subscriber delivers updates for one node until ctx is done.
type Subscriber interface {
	// Subscribe starts delivery. The channel is closed when ctx is done or
	// after a final Update carrying the subscription error.
	Subscribe(ctx context.Context) (<-chan Update, error)
}

// StoreSubscriber watches a single key in a state store.
type StoreSubscriber struct {
	store  state.WatchReader
	key    string
	logger  *logging.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// Option configures a StoreSubscriber.
type Option func(*StoreSubscriber)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *StoreSubscriber) {
		s.logger = l
	}
}

// WithMetrics counts updates the store dropped because delivery fell behind.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *StoreSubscriber) {
		s.metrics = m
	}
}

// WithClock overrides the arrival clock. Tests use this.
func WithClock(now func() time.Time) Option {
	return func(s *StoreSubscriber) {
		s.now = now
	}
}

// NewStoreSubscriber creates a subscriber for key.
func NewStoreSubscriber(store state.WatchReader, key string, opts ...Option) *StoreSubscriber {
	s := &StoreSubscriber{
		store:  store,
		key:    key,
		logger: logging.New().WithComponent("feed"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Key returns the watched key.
func (s *StoreSubscriber) Key() string {
	return s.key
}

// Subscribe emits the current node value, if any, then every later change.
func (s *StoreSubscriber) Subscribe(ctx context.Context) (<-chan Update, error) {
	if err := state.ValidateKey(s.key); err != nil {
		return nil, errors.InvalidConfig("invalid feed key", errors.WithKey(s.key), errors.WithCause(err))
	}

	// Watch before reading so nothing written in between is missed.
	watchCtx, cancel := context.WithCancel(ctx)
	changes, err := s.store.Watch(watchCtx, s.key)
	if err != nil {
		cancel()
		return nil, errors.Wrap(err, "watch feed",
			errors.WithKey(s.key), errors.WithCategory(errors.CategoryTransient))
	}

	// The first slot of the buffer holds the initial read.
	out := make(chan Update, 16)
	var last uint64
	initial, err := s.store.GetKeyValue(ctx, s.key)
	switch {
	case err == nil:
		last = initial.Revision
		out <- s.decode(initial)
	case stderrors.Is(err, state.ErrNotFound):
		s.logger.Info("feed node missing", map[string]interface{}{"key": s.key})
	default:
		out <- Update{At: s.now(), Err: errors.Unavailable("read feed",
			errors.WithKey(s.key), errors.WithCause(err))}
	}

	go func() {
		defer close(out)
		defer cancel()

		for {
			select {
			case <-ctx.Done():
				return
			case kv, ok := <-changes:
				if !ok {
					if ctx.Err() == nil {
						s.send(ctx, out, Update{At: s.now(), Err: errors.New(errors.ErrCodeFeedLost,
							"feed subscription ended", errors.WithKey(s.key))})
					}
					return
				}
				if kv.Revision != 0 && kv.Revision <= last {
					continue // already delivered by the initial read
				}
				last = kv.Revision
				s.superseded(kv)
				if !s.send(ctx, out, s.decode(kv)) {
					return
				}
			}
		}
	}()

	return out, nil
}

// superseded records updates the store discarded in favor of kv.
func (s *StoreSubscriber) superseded(kv *state.KeyValue) {
	if kv.Superseded == 0 {
		return
	}
	for i := uint64(0); i < kv.Superseded; i++ {
		s.metrics.FeedDropped("overflow")
	}
	s.logger.Warn("feed updates superseded", map[string]interface{}{
		"key":     s.key,
		"dropped": kv.Superseded,
	})
}

// decode turns a store entry into an Update stamped with the arrival time.
func (s *StoreSubscriber) decode(kv *state.KeyValue) Update {
	u := Update{At: s.now(), Revision: kv.Revision}
	if kv.Operation == state.OpDelete {
		u.Payload = Payload{Empty: true}
		return u
	}
	p, err := Parse(kv.Value)
	if err != nil {
		u.Err = errors.Wrap(err, "parse feed", errors.WithKey(s.key))
		return u
	}
	u.Payload = p
	return u
}

func (s *StoreSubscriber) send(ctx context.Context, out chan<- Update, u Update) bool {
	select {
	case out <- u:
		return true
	case <-ctx.Done():
		return false
	}
}
