// Package websocket pushes change events to connected browsers, scoped by
// unit so tenants only hear about their own house.
package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Message is a change event pushed to connected clients. Clients refetch
// the entity named by Entity and ID rather than trusting the payload.
type Message struct {
	Type   string         `json:"type"`
	Entity string         `json:"entity,omitempty"`
	Action string         `json:"action,omitempty"`
	ID     int64          `json:"id,omitempty"`
	UnitID int64          `json:"unit_id,omitempty"`
	Extra  map[string]any `json:"extra,omitempty"`
}

// NewMessage builds an event whose Type is "<entity>_<action>".
func NewMessage(entity, action string, id int64, extra map[string]any) Message {
	return Message{
		Type:   entity + "_" + action,
		Entity: entity,
		Action: action,
		ID:     id,
		Extra:  extra,
	}
}

// Hub tracks connected clients by the unit they watch. Unit 0 holds the
// admin connections, which receive every unit's events.
type Hub struct {
	mu     sync.RWMutex
	units  map[int64]map[*Client]struct{}
	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		units:  make(map[int64]map[*Client]struct{}),
		logger: logger,
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.units[c.unitID]
	if !ok {
		set = make(map[*Client]struct{})
		h.units[c.unitID] = set
	}
	set[c] = struct{}{}
}

// Unregister removes c and closes its send channel. Repeated calls are
// no-ops.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.units[c.unitID]
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.units, c.unitID)
	}
	close(c.send)
}

// BroadcastUnit delivers msg to the clients watching unitID and to every
// admin client. A client whose buffer is full misses the event.
func (h *Hub) BroadcastUnit(unitID int64, msg Message) {
	msg.UnitID = unitID
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal broadcast", "type", msg.Type, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	dropped := 0
	for _, set := range []map[*Client]struct{}{h.units[unitID], h.units[0]} {
		for c := range set {
			if !c.enqueue(data) {
				dropped++
			}
		}
		if unitID == 0 {
			break
		}
	}
	if dropped > 0 {
		h.logger.Warn("websocket buffer full", "type", msg.Type, "unit_id", unitID, "dropped", dropped)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.units {
		n += len(set)
	}
	return n
}
