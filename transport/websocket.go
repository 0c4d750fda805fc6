package transport

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// NewWebSocketUpgrader creates an upgrader for accepting WebSocket connections.
func NewWebSocketUpgrader(checkOrigin func(r *http.Request) bool) *websocket.Upgrader {
	if checkOrigin == nil {
		checkOrigin = func(r *http.Request) bool { return true }
	}
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     checkOrigin,
	}
}

// HandleWebSocket upgrades the request and streams hub messages as text
// frames until either side closes.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := NewWebSocketUpgrader(h.config.CheckOrigin).Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		h.logger.Warn("websocket_upgrade_failed", map[string]interface{}{"error": err.Error()})
		return
	}
	defer conn.Close()

	c, err := h.attach(TransportWebSocket)
	if err != nil {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(time.Second))
		return
	}
	defer h.detach(c)

	conn.SetReadLimit(h.config.MaxMessageSize)

	gone := make(chan struct{})
	go readLoop(conn, gone)

	h.writeLoop(conn, c, gone)
}

// readLoop discards incoming frames. It exists so control frames are
// processed and a closed peer is noticed.
func readLoop(conn *websocket.Conn, gone chan<- struct{}) {
	defer close(gone)
	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(conn *websocket.Conn, c *client, gone <-chan struct{}) {
	ticker := h.createPingTicker()
	defer ticker.Stop()

	for {
		select {
		case <-gone:
			return
		case <-h.done:
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second)); err != nil {
				return
			}
		case data, ok := <-c.ch:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}
	}
}

// createPingTicker creates a ticker for keepalive pings.
func (h *Hub) createPingTicker() *time.Ticker {
	if h.config.PingInterval > 0 {
		return time.NewTicker(h.config.PingInterval)
	}
	// Return a ticker that never fires
	ticker := time.NewTicker(time.Hour)
	ticker.Stop()
	return ticker
}
