package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSSE_Stream(t *testing.T) {
	hub := newTestHub(Config{HeartbeatInterval: 0})
	defer hub.Close()

	hub.Publish("view", map[string]bool{"connected": true})

	server := httptest.NewServer(http.HandlerFunc(hub.HandleSSE))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client := NewSSEClient(server.URL)
	defer client.Close()
	if err := client.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	// Replayed view arrives first.
	select {
	case msg := <-client.Recv():
		if msg.Event != "view" || string(msg.Data) != `{"connected":true}` {
			t.Errorf("first message = %+v", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for replayed view")
	}

	waitClients(t, hub, 1)
	hub.Publish("notification", map[string]string{"id": "n1"})

	select {
	case msg := <-client.Recv():
		if msg.Event != "notification" || msg.Seq != 2 {
			t.Errorf("second message = %+v", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for notification")
	}
}

func TestSSE_HubClosedEndsStream(t *testing.T) {
	hub := newTestHub(Config{HeartbeatInterval: 0})

	server := httptest.NewServer(http.HandlerFunc(hub.HandleSSE))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client := NewSSEClient(server.URL)
	if err := client.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	waitClients(t, hub, 1)

	hub.Close()

	select {
	case _, ok := <-client.Recv():
		if ok {
			t.Error("expected stream to end")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not end")
	}
}

func TestSSE_RejectedAfterClose(t *testing.T) {
	hub := newTestHub(DefaultConfig())
	hub.Close()

	rec := httptest.NewRecorder()
	hub.HandleSSE(rec, httptest.NewRequest(http.MethodGet, "/events", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func waitClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for hub.Clients() != n {
		if time.Now().After(deadline) {
			t.Fatalf("Clients() = %d, want %d", hub.Clients(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
