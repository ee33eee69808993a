package websocket

import (
	"context"
	"encoding/json"
	"time"

	ws "github.com/coder/websocket"
)

const (
	sendBufferSize = 16
	pingInterval   = 30 * time.Second
	writeTimeout   = 10 * time.Second
	maxInboundSize = 512
)

// Client is one live connection. unitID scopes what it receives; 0 means
// every unit, which is how admin connections are registered.
type Client struct {
	hub    *Hub
	conn   *ws.Conn
	send   chan []byte
	unitID int64
}

// NewClient creates a Client tied to the given hub and connection.
func NewClient(hub *Hub, conn *ws.Conn, unitID int64) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		unitID: unitID,
	}
}

// UnitID returns the unit the client watches.
func (c *Client) UnitID() int64 { return c.unitID }

// Run registers the client, greets it with a "connected" message, and
// serves the connection until the peer goes away or ctx ends.
func (c *Client) Run(ctx context.Context) {
	c.conn.SetReadLimit(maxInboundSize)
	c.hub.Register(c)
	defer c.hub.Unregister(c)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if hello, err := json.Marshal(Message{Type: "connected", UnitID: c.unitID}); err == nil {
		c.enqueue(hello)
	}

	go c.writePump(ctx, cancel)
	c.readPump(ctx)
}

func (c *Client) enqueue(data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// readPump answers application pings and ignores anything else. Browsers
// cannot send protocol pings, so {"type":"ping"} gets a {"type":"pong"}.
func (c *Client) readPump(ctx context.Context) {
	for {
		typ, data, err := c.conn.Read(ctx)
		if err != nil {
			return
		}
		if typ != ws.MessageText {
			continue
		}
		var in struct {
			Type string `json:"type"`
		}
		if json.Unmarshal(data, &in) != nil || in.Type != "ping" {
			continue
		}
		c.enqueue([]byte(`{"type":"pong"}`))
	}
}

// writePump owns all writes to the connection. A failed write or ping
// cancels the read side too.
func (c *Client) writePump(ctx context.Context, cancel context.CancelFunc) {
	defer cancel()
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.write(ctx, msg); err != nil {
				c.hub.logger.Debug("websocket write", "unit_id", c.unitID, "error", err)
				return
			}
		case <-ticker.C:
			pctx, pcancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Ping(pctx)
			pcancel()
			if err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (c *Client) write(ctx context.Context, msg []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return c.conn.Write(ctx, ws.MessageText, msg)
}
