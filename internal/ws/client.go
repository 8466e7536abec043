package ws

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 256
)

// Message is the envelope for every frame the server writes
type Message struct {
	Type      string      `json:"type"`
	Message   string      `json:"message,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Client is one upgraded connection owned by a user
type Client struct {
	userID uint
	conn   *websocket.Conn
	send   chan interface{}
	hub    *Hub
	logger *zap.Logger
	now    func() time.Time
}

func newClient(hub *Hub, conn *websocket.Conn, userID uint, logger *zap.Logger) *Client {
	return &Client{
		userID: userID,
		conn:   conn,
		send:   make(chan interface{}, sendBuffer),
		hub:    hub,
		logger: logger.With(zap.Uint("user_id", userID)),
		now:    time.Now,
	}
}

// readPump echoes each JSON frame back to the sender until the peer goes away
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(c.now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(c.now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read failed", zap.Error(err))
			}
			return
		}

		var data json.RawMessage
		if err := json.Unmarshal(raw, &data); err != nil {
			c.enqueue(Message{Type: "error", Message: "invalid JSON message", Timestamp: c.now().UTC()})
			continue
		}
		c.enqueue(Message{Type: "echo", Data: data, Timestamp: c.now().UTC()})
	}
}

func (c *Client) enqueue(msg interface{}) {
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if _, live := c.hub.clients[c.userID][c]; !live {
		return
	}
	select {
	case c.send <- msg:
	default:
		c.logger.Warn("send buffer full, dropping frame")
	}
}

// writePump drains the send channel and keeps the connection alive with pings
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(c.now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				c.logger.Warn("websocket write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(c.now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
