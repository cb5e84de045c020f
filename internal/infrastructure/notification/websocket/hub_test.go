package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dreschagin/vrops-selfmon/internal/application/dto"
	"github.com/dreschagin/vrops-selfmon/pkg/logger"
	"github.com/gorilla/websocket"
)

func newHubServer(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()
	log := logger.New("error")
	upgrader := websocket.Upgrader{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		NewClient(hub, conn, log).Serve()
	}))
	t.Cleanup(server.Close)
	return server
}

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func waitForClients(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != want {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d clients, got %d", want, hub.ClientCount())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func readMessage(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg map[string]interface{}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	return msg
}

func TestHub_BroadcastsRunEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(logger.New("error"))
	go hub.Run(ctx)

	conn := dial(t, newHubServer(t, hub))
	waitForClients(t, hub, 1)

	hub.BroadcastRunEvent(&dto.RunEventDTO{Type: "state", RunID: "run-1", State: "collecting"})

	msg := readMessage(t, conn)
	if msg["type"] != "state" {
		t.Fatalf("expected state message, got %v", msg)
	}
	data, ok := msg["data"].(map[string]interface{})
	if !ok || data["run_id"] != "run-1" || data["state"] != "collecting" {
		t.Fatalf("unexpected payload: %v", msg["data"])
	}
}

func TestHub_ReplaysLastEventToNewClient(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(logger.New("error"))
	go hub.Run(ctx)
	server := newHubServer(t, hub)

	first := dial(t, server)
	waitForClients(t, hub, 1)
	hub.BroadcastRunEvent(&dto.RunEventDTO{Type: "finished", RunID: "run-7", State: "done"})
	readMessage(t, first)

	second := dial(t, server)
	msg := readMessage(t, second)
	if msg["type"] != "finished" {
		t.Fatalf("expected replayed finished event, got %v", msg)
	}
}

func TestHub_StopClosesClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(logger.New("error"))
	go hub.Run(ctx)

	conn := dial(t, newHubServer(t, hub))
	waitForClients(t, hub, 1)

	cancel()
	waitForClients(t, hub, 0)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("expected connection to be closed")
	}

	hub.BroadcastRunEvent(nil)
	if hub.Register(&Client{}) {
		t.Fatal("expected register to fail after stop")
	}
}
