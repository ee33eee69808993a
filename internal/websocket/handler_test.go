package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	ws "github.com/coder/websocket"
)

func readMessage(t *testing.T, ctx context.Context, conn *ws.Conn) Message {
	t.Helper()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal %s: %v", data, err)
	}
	return msg
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("client count = %d, want %d", hub.ClientCount(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHandleWebSocket(t *testing.T) {
	hub := quietHub()
	scope := func(r *http.Request) (int64, bool) { return 7, true }
	srv := httptest.NewServer(HandleWebSocket(hub, scope, nil))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := ws.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow()

	if got := readMessage(t, ctx, conn); got.Type != "connected" || got.UnitID != 7 {
		t.Errorf("greeting = %+v, want connected for unit 7", got)
	}

	if err := conn.Write(ctx, ws.MessageText, []byte(`{"type":"ping"}`)); err != nil {
		t.Fatalf("write ping: %v", err)
	}
	if got := readMessage(t, ctx, conn); got.Type != "pong" {
		t.Errorf("reply type = %q, want pong", got.Type)
	}

	waitForClients(t, hub, 1)
	hub.BroadcastUnit(8, NewMessage("swap", "created", 1, nil))
	hub.BroadcastUnit(7, NewMessage("swap", "created", 2, nil))
	if got := readMessage(t, ctx, conn); got.ID != 2 {
		t.Errorf("received swap %d, want 2", got.ID)
	}

	conn.Close(ws.StatusNormalClosure, "")
	waitForClients(t, hub, 0)
}

func TestHandleWebSocketRefused(t *testing.T) {
	hub := quietHub()
	scope := func(r *http.Request) (int64, bool) { return 0, false }
	srv := httptest.NewServer(HandleWebSocket(hub, scope, nil))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, resp, err := ws.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err == nil {
		t.Fatal("dial succeeded, want refusal")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("response = %v, want 403", resp)
	}
	if hub.ClientCount() != 0 {
		t.Errorf("client count = %d, want 0", hub.ClientCount())
	}
}
