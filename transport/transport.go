package transport

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/vinayprograms/solanirad/logging"
	"github.com/vinayprograms/solanirad/metrics"
)

// Common errors.
var (
	ErrClosed = errors.New("transport closed")
)

// Transport names used in logs and metrics.
const (
	TransportSSE       = "sse"
	TransportWebSocket = "websocket"
)

// Message is one event as sent to clients.
type Message struct {
	// Event names the payload kind, e.g. "view" or "notification".
	Event string `json:"event"`

	// Seq increases by one per published event.
	Seq uint64 `json:"seq"`

	// Data is the JSON-encoded payload.
	Data json.RawMessage `json:"data"`
}

// Config holds hub configuration.
type Config struct {
	// ClientBufferSize is the number of messages queued per client.
	// Default: 16
	ClientBufferSize int

	// HeartbeatInterval sends SSE comments as keepalive (0 = disabled).
	// Default: 30s
	HeartbeatInterval time.Duration

	// PingInterval for WebSocket keepalive pings (0 = disabled).
	// Default: 30s
	PingInterval time.Duration

	// WriteTimeout for WebSocket writes.
	// Default: 10s
	WriteTimeout time.Duration

	// MaxMessageSize limits incoming WebSocket frames.
	// Default: 4KB
	MaxMessageSize int64

	// Replay lists events whose last message is sent to new clients.
	// Default: ["view"]
	Replay []string

	// CheckOrigin validates WebSocket origins. Nil allows all.
	CheckOrigin func(r *http.Request) bool
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		ClientBufferSize:  16,
		HeartbeatInterval: 30 * time.Second,
		PingInterval:      30 * time.Second,
		WriteTimeout:      10 * time.Second,
		MaxMessageSize:    4 * 1024,
		Replay:            []string{"view"},
	}
}

// client is one attached stream.
type client struct {
	id        string
	transport string
	ch        chan []byte
	dropped   atomic.Uint64
}

// Hub fans published events out to SSE and WebSocket clients.
type Hub struct {
	config  Config
	logger  *logging.Logger
	metrics *metrics.Metrics

	seq  atomic.Uint64
	done chan struct{}

	mu      sync.RWMutex
	closed  bool
	clients map[string]*client
	last    map[string][]byte
}

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(h *Hub) {
		h.logger = l
	}
}

// WithMetrics reports client counts.
func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Hub) {
		h.metrics = m
	}
}

// NewHub creates a hub.
func NewHub(cfg Config, opts ...Option) *Hub {
	def := DefaultConfig()
	if cfg.ClientBufferSize <= 0 {
		cfg.ClientBufferSize = def.ClientBufferSize
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = def.MaxMessageSize
	}
	if cfg.Replay == nil {
		cfg.Replay = def.Replay
	}

	h := &Hub{
		config:  cfg,
		logger:  logging.New().WithComponent("transport"),
		done:    make(chan struct{}),
		clients: make(map[string]*client),
		last:    make(map[string][]byte),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Publish marshals v and queues it for every client. Marshal failures are
// logged and the event is dropped.
func (h *Hub) Publish(event string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		h.logger.Error("publish_marshal_failed", map[string]interface{}{
			"event": event,
			"error": err.Error(),
		})
		return
	}
	data, err := json.Marshal(Message{Event: event, Seq: h.seq.Add(1), Data: payload})
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	if h.replayed(event) {
		h.last[event] = data
	}
	for _, c := range h.clients {
		select {
		case c.ch <- data:
		default:
			c.dropped.Add(1)
		}
	}
}

func (h *Hub) replayed(event string) bool {
	for _, e := range h.config.Replay {
		if e == event {
			return true
		}
	}
	return false
}

// Clients returns the number of attached clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client. Later Publish calls are ignored.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	close(h.done)
	for id, c := range h.clients {
		close(c.ch)
		delete(h.clients, id)
	}
	h.metrics.StreamClients(TransportSSE, 0)
	h.metrics.StreamClients(TransportWebSocket, 0)
	return nil
}

// attach registers a client and preloads it with replayed messages.
func (h *Hub) attach(transport string) (*client, error) {
	c := &client{
		id:        uuid.New().String(),
		transport: transport,
		ch:        make(chan []byte, h.config.ClientBufferSize+len(h.config.Replay)),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrClosed
	}
	for _, e := range h.config.Replay {
		if data, ok := h.last[e]; ok {
			c.ch <- data
		}
	}
	h.clients[c.id] = c
	n := h.countLocked(transport)
	h.mu.Unlock()

	h.metrics.StreamClients(transport, n)
	h.logger.Info("client_attached", map[string]interface{}{
		"client":    c.id,
		"transport": transport,
	})
	return c, nil
}

// detach removes a client if it is still registered.
func (h *Hub) detach(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c.id]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c.id)
	n := h.countLocked(c.transport)
	h.mu.Unlock()

	h.metrics.StreamClients(c.transport, n)
	fields := map[string]interface{}{
		"client":    c.id,
		"transport": c.transport,
	}
	if d := c.dropped.Load(); d > 0 {
		fields["dropped"] = d
	}
	h.logger.Info("client_detached", fields)
}

func (h *Hub) countLocked(transport string) int {
	n := 0
	for _, c := range h.clients {
		if c.transport == transport {
			n++
		}
	}
	return n
}
