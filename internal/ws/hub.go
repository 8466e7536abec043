package ws

import (
	"context"
	"sync"

	"github.com/softwarepar/backend/internal/monitoring"
	"go.uber.org/zap"
)

// Hub tracks live connections per user. A user may hold several tabs open,
// so each user maps to a set of clients.
type Hub struct {
	clients map[uint]map[*Client]struct{}
	stopped bool
	mu      sync.RWMutex
	logger  *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[uint]map[*Client]struct{}),
		logger:  logger.Named("ws"),
	}
}

// Run blocks until ctx is cancelled, then closes every remaining connection
// and refuses new ones.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	defer h.mu.Unlock()
	h.stopped = true
	for userID, set := range h.clients {
		for client := range set {
			close(client.send)
			monitoring.WebSocketConnections.Dec()
		}
		delete(h.clients, userID)
	}
	h.logger.Info("websocket hub stopped")
}

// Register adds a client. It reports false once the hub has stopped.
func (h *Hub) Register(client *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return false
	}

	set, ok := h.clients[client.userID]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[client.userID] = set
	}
	set[client] = struct{}{}

	monitoring.WebSocketConnections.Inc()
	h.logger.Debug("client registered", zap.Uint("user_id", client.userID))
	return true
}

// Unregister drops a client and closes its send channel. Safe to call more
// than once.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.clients[client.userID]
	if !ok {
		return
	}
	if _, ok := set[client]; !ok {
		return
	}
	delete(set, client)
	if len(set) == 0 {
		delete(h.clients, client.userID)
	}
	close(client.send)
	monitoring.WebSocketConnections.Dec()
	h.logger.Debug("client unregistered", zap.Uint("user_id", client.userID))
}

// SendToUser queues message on every connection of userID and returns how
// many accepted it. Connections with a full buffer are dropped.
func (h *Hub) SendToUser(userID uint, message interface{}) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for client := range h.clients[userID] {
		select {
		case client.send <- message:
			delivered++
		default:
			h.logger.Warn("dropping slow client", zap.Uint("user_id", userID))
			go h.Unregister(client)
		}
	}
	return delivered
}

// ConnectionCount returns the number of live connections
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.clients {
		n += len(set)
	}
	return n
}

// IsConnected reports whether userID has at least one live connection
func (h *Hub) IsConnected(userID uint) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID]) > 0
}
