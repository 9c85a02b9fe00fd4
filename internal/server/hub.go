package server

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/centerback/centerback-go/internal/service"
)

const writeDeadline = 5 * time.Second

// wsClient serializes writes to one connection. Alerts arrive from
// concurrent dispatcher goroutines and gorilla/websocket allows only one
// concurrent writer per connection.
type wsClient struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsClient) send(summary service.AlertSummary) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	return c.conn.WriteJSON(summary)
}

// Hub fans new-alert summaries out to connected websocket clients. A slow or
// dead client is dropped rather than blocking the broadcast.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu    sync.Mutex
	conns map[*websocket.Conn]*wsClient
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The dashboard is served from another origin in development.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logger,
		conns:  make(map[*websocket.Conn]*wsClient),
	}
}

// ServeHTTP upgrades the request and keeps the connection registered until
// the client goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", "error", err)
		return
	}

	h.mu.Lock()
	h.conns[conn] = &wsClient{conn: conn}
	count := len(h.conns)
	h.mu.Unlock()

	h.logger.Debug("websocket client connected", "clients", count)

	// Drain reads so close frames and pings are processed; exit on error.
	go func() {
		defer h.drop(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Broadcast sends the summary to every connected client.
func (h *Hub) Broadcast(summary service.AlertSummary) {
	h.mu.Lock()
	clients := make([]*wsClient, 0, len(h.conns))
	for _, client := range h.conns {
		clients = append(clients, client)
	}
	h.mu.Unlock()

	for _, client := range clients {
		if err := client.send(summary); err != nil {
			h.drop(client.conn)
		}
	}
}

// Close disconnects all clients.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.conns {
		conn.Close()
	}
	h.conns = make(map[*websocket.Conn]*wsClient)
}

func (h *Hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.conns, conn)
	h.mu.Unlock()
	conn.Close()
}

var _ service.Broadcaster = (*Hub)(nil)
