package websocket

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	ws "github.com/coder/websocket"
)

const (
	sendBufferSize = 16
	pingInterval   = 30 * time.Second

	// Clients only send subscription frames.
	readLimit = 4096
)

// subscribeRequest narrows the notices a client receives to the named
// entities ("meeting", "category", "settings", ...). An empty list restores
// the full stream.
type subscribeRequest struct {
	Subscribe []string `json:"subscribe"`
}

// Client is one UI connection receiving state-change notices.
type Client struct {
	hub      *Hub
	conn     *ws.Conn
	send     chan []byte
	entities atomic.Pointer[map[string]bool]
}

// NewClient creates a Client tied to the given hub and connection.
func NewClient(hub *Hub, conn *ws.Conn) *Client {
	c := &Client{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}
	if conn != nil {
		conn.SetReadLimit(readLimit)
	}
	return c
}

// Subscribe limits delivery to notices for the given entities. No entities
// means every notice.
func (c *Client) Subscribe(entities ...string) {
	if len(entities) == 0 {
		c.entities.Store(nil)
		return
	}
	set := make(map[string]bool, len(entities))
	for _, e := range entities {
		set[e] = true
	}
	c.entities.Store(&set)
}

// wants reports whether a notice about entity should be delivered.
func (c *Client) wants(entity string) bool {
	set := c.entities.Load()
	return set == nil || (*set)[entity]
}

// Run registers the client, starts the write pump, and runs the read pump.
// It blocks until the connection is closed, then unregisters.
func (c *Client) Run(ctx context.Context) {
	c.hub.Register(c)
	defer c.hub.Unregister(c)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go c.writePump(ctx)
	c.readPump(ctx)
}

// readPump applies subscription frames until the connection closes.
// Frames over readLimit close the connection.
func (c *Client) readPump(ctx context.Context) {
	for {
		typ, data, err := c.conn.Read(ctx)
		if err != nil {
			return
		}
		if typ != ws.MessageText {
			continue
		}
		var req subscribeRequest
		if err := json.Unmarshal(data, &req); err != nil {
			c.hub.logger.Debug("ignoring malformed client frame", "error", err)
			continue
		}
		c.Subscribe(req.Subscribe...)
	}
}

// writePump drains the send channel and pings to detect stale connections.
func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, pingInterval)
			err := c.conn.Write(writeCtx, ws.MessageText, msg)
			cancel()
			if err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.Ping(ctx); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
