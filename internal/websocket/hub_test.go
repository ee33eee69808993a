package websocket

import (
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
)

func quietHub() *Hub {
	return NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// mockClient creates a Client with a send channel but no connection.
func mockClient(hub *Hub, unitID int64) *Client {
	return &Client{
		hub:    hub,
		send:   make(chan []byte, sendBufferSize),
		unitID: unitID,
	}
}

func drain(c *Client) []Message {
	var out []Message
	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				return out
			}
			var m Message
			json.Unmarshal(data, &m)
			out = append(out, m)
		default:
			return out
		}
	}
}

func TestRegisterUnregister(t *testing.T) {
	hub := quietHub()
	a, b, admin := mockClient(hub, 7), mockClient(hub, 7), mockClient(hub, 0)
	for _, c := range []*Client{a, b, admin} {
		hub.Register(c)
	}
	if got := hub.ClientCount(); got != 3 {
		t.Fatalf("ClientCount = %d, want 3", got)
	}

	hub.Unregister(a)
	hub.Unregister(a)
	if got := hub.ClientCount(); got != 2 {
		t.Fatalf("ClientCount after unregister = %d, want 2", got)
	}
	if _, ok := <-a.send; ok {
		t.Error("send channel should be closed after unregister")
	}

	hub.Unregister(b)
	hub.Unregister(admin)
	if got := hub.ClientCount(); got != 0 {
		t.Fatalf("ClientCount = %d, want 0", got)
	}
	if len(hub.units) != 0 {
		t.Errorf("empty unit sets should be dropped, have %d", len(hub.units))
	}
}

func TestBroadcastUnit(t *testing.T) {
	hub := quietHub()
	admin, mine, other := mockClient(hub, 0), mockClient(hub, 7), mockClient(hub, 8)
	for _, c := range []*Client{admin, mine, other} {
		hub.Register(c)
	}

	hub.BroadcastUnit(7, NewMessage("swap", "approved", 3, map[string]any{"schedule_id": 1}))

	for name, c := range map[string]*Client{"admin": admin, "unit": mine} {
		got := drain(c)
		if len(got) != 1 {
			t.Fatalf("%s received %d messages, want 1", name, len(got))
		}
		if got[0].Type != "swap_approved" || got[0].ID != 3 || got[0].UnitID != 7 {
			t.Errorf("%s received %+v", name, got[0])
		}
	}
	if got := drain(other); len(got) != 0 {
		t.Errorf("client of another unit received %+v", got)
	}
}

func TestBroadcastUnitZeroReachesAdminsOnce(t *testing.T) {
	hub := quietHub()
	admin := mockClient(hub, 0)
	hub.Register(admin)

	hub.BroadcastUnit(0, NewMessage("unit", "updated", 1, nil))
	if got := drain(admin); len(got) != 1 {
		t.Errorf("admin received %d messages, want 1", len(got))
	}
}

func TestBroadcastFullBuffer(t *testing.T) {
	hub := quietHub()
	c := mockClient(hub, 7)
	hub.Register(c)

	for i := 0; i < sendBufferSize+3; i++ {
		hub.BroadcastUnit(7, NewMessage("chore_completion", "completed", int64(i), nil))
	}

	got := drain(c)
	if len(got) != sendBufferSize {
		t.Fatalf("received %d messages, want %d", len(got), sendBufferSize)
	}
	if last := got[len(got)-1].ID; last != sendBufferSize-1 {
		t.Errorf("last delivered id = %d, want %d", last, sendBufferSize-1)
	}
}

func TestBroadcastEmptyHub(t *testing.T) {
	quietHub().BroadcastUnit(7, NewMessage("request", "updated", 1, nil))
}

func TestNewMessage(t *testing.T) {
	msg := NewMessage("chore_completion", "missed", 5, nil)
	want := Message{Type: "chore_completion_missed", Entity: "chore_completion", Action: "missed", ID: 5}
	if msg.Type != want.Type || msg.Entity != want.Entity || msg.Action != want.Action || msg.ID != want.ID {
		t.Errorf("NewMessage = %+v, want %+v", msg, want)
	}
}

func TestConcurrentAccess(t *testing.T) {
	hub := quietHub()
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(unit int64) {
			defer wg.Done()
			c := mockClient(hub, unit)
			hub.Register(c)
			hub.BroadcastUnit(unit, NewMessage("swap", "created", 0, nil))
			drain(c)
			hub.Unregister(c)
		}(int64(i % 3))
	}
	wg.Wait()

	if got := hub.ClientCount(); got != 0 {
		t.Errorf("ClientCount = %d, want 0", got)
	}
}
