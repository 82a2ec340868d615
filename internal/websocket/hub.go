package websocket

import (
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Hub fans server-side events out to every connected notification client.
// Each client serializes its own writes, so broadcasts may run from any
// goroutine (storage error emit, queue abandonment, timer expiry)
// concurrently with the connection's ping replies.
type Hub struct {
	mu      sync.Mutex
	clients map[*Client]struct{}
	log     zerolog.Logger
}

// NewHub creates an empty notification hub.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		log:     log.With().Str("component", "ws_hub").Logger(),
	}
}

// Register wraps a connection and adds it to the broadcast set.
func (h *Hub) Register(conn *websocket.Conn) *Client {
	c := newClient(conn)
	h.mu.Lock()
	h.clients[c] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()
	h.log.Debug().Int("clients", count).Msg("client registered")
	return c
}

// Unregister removes a client. Safe to call twice.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	delete(h.clients, c)
	count := len(h.clients)
	h.mu.Unlock()
	h.log.Debug().Int("clients", count).Msg("client unregistered")
}

// Broadcast sends a typed event to every client. Clients whose write
// fails are dropped and closed. The client set is snapshotted first so
// slow writes never hold the hub lock.
func (h *Hub) Broadcast(v interface{}) {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		if err := c.Send(v); err != nil {
			h.log.Warn().Err(err).Msg("dropping unresponsive client")
			c.Close()
			h.Unregister(c)
		}
	}
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects all clients.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.Close()
		delete(h.clients, c)
	}
}
