package transport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// HandleSSE is an HTTP handler for SSE connections.
// Mount this at your SSE endpoint (e.g., /events).
func (h *Hub) HandleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	c, err := h.attach(TransportSSE)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	defer h.detach(c)

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
	w.WriteHeader(http.StatusOK)

	// Flush headers immediately to establish connection
	flusher.Flush()

	var heartbeat <-chan time.Time
	if h.config.HeartbeatInterval > 0 {
		ticker := time.NewTicker(h.config.HeartbeatInterval)
		defer ticker.Stop()
		heartbeat = ticker.C
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-h.done:
			return
		case <-heartbeat:
			fmt.Fprintf(w, ": heartbeat\n\n")
			flusher.Flush()
		case data, ok := <-c.ch:
			if !ok {
				return
			}
			if err := writeSSE(w, data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// writeSSE writes one message as an SSE event. The event and id fields
// mirror the message so browsers can use addEventListener per event.
func writeSSE(w io.Writer, data []byte) error {
	var head struct {
		Event string `json:"event"`
		Seq   uint64 `json:"seq"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "event: %s\nid: %d\ndata: %s\n\n", head.Event, head.Seq, data)
	return err
}

// SSEClient reads a hub's SSE stream.
type SSEClient struct {
	url    string
	client *http.Client
	recv   chan *Message
	done   chan struct{}
	mu     sync.Mutex
	closed bool
}

// NewSSEClient creates a client for the stream at url.
func NewSSEClient(url string) *SSEClient {
	return &SSEClient{
		url:    url,
		client: &http.Client{},
		recv:   make(chan *Message, 16),
		done:   make(chan struct{}),
	}
}

// Recv returns the channel of received messages. It is closed when the
// stream ends.
func (c *SSEClient) Recv() <-chan *Message {
	return c.recv
}

// Connect opens the stream and starts reading in the background.
func (c *SSEClient) Connect(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return fmt.Errorf("sse stream returned %d", resp.StatusCode)
	}

	go c.readLoop(ctx, resp.Body)
	return nil
}

// Close stops delivery.
func (c *SSEClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.done)
	return nil
}

// readLoop accumulates data lines until a blank line ends the event.
func (c *SSEClient) readLoop(ctx context.Context, body io.ReadCloser) {
	defer body.Close()
	defer close(c.recv)

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	var dataBuffer bytes.Buffer

	for scanner.Scan() {
		line := scanner.Text()

		if line == "" {
			if dataBuffer.Len() > 0 {
				var msg Message
				if err := json.Unmarshal(dataBuffer.Bytes(), &msg); err == nil {
					select {
					case c.recv <- &msg:
					case <-ctx.Done():
						return
					case <-c.done:
						return
					}
				}
				dataBuffer.Reset()
			}
			continue
		}

		if data, ok := strings.CutPrefix(line, "data:"); ok {
			dataBuffer.WriteString(strings.TrimPrefix(data, " "))
		}
	}
}
