// Package websocket pushes state-change notices to connected UI clients.
package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/dukerupert/huddle/internal/model"
)

// Hub maintains the set of active WebSocket clients and broadcasts notices.
// It is the notification sink the state cache publishes to.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *slog.Logger
	dropped atomic.Int64
}

// NewHub creates a new Hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger,
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

// Unregister removes a client from the hub and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// Notify broadcasts n to every client.
func (h *Hub) Notify(n model.Notice) {
	h.Broadcast(n)
}

// Broadcast sends a notice to every client subscribed to its entity.
func (h *Hub) Broadcast(n model.Notice) {
	data, err := json.Marshal(n)
	if err != nil {
		h.logger.Error("marshal broadcast", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		if !c.wants(n.Entity) {
			continue
		}
		select {
		case c.send <- data:
		default:
			// Client buffer full: drop rather than block the publisher.
			if h.dropped.Add(1)%100 == 1 {
				h.logger.Warn("dropping notices for slow client", "type", n.Type, "dropped_total", h.dropped.Load())
			}
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped returns how many notices were dropped for slow clients.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}
