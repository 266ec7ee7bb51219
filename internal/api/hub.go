package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/selivandex/trendcast/pkg/logger"
	"github.com/selivandex/trendcast/pkg/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// trendEvent is the wire envelope pushed to subscribers
type trendEvent struct {
	Type string                 `json:"type"`
	Data []models.EmergingTrend `json:"data"`
	At   time.Time              `json:"at"`
}

// Hub fans emerging-trend updates out to websocket subscribers.
// Satisfies analysis.Broadcaster.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]bool
	closed  bool
}

// NewHub creates a subscriber hub
func NewHub() *Hub {
	return &Hub{clients: make(map[*client]bool)}
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// BroadcastTrends pushes the shortlist to every connected subscriber.
// A subscriber too slow to drain its buffer is dropped rather than
// allowed to block the rest.
func (h *Hub) BroadcastTrends(trends []models.EmergingTrend) {
	payload, err := json.Marshal(trendEvent{
		Type: "emerging_trends",
		Data: trends,
		At:   time.Now().UTC(),
	})
	if err != nil {
		logger.Error("failed to marshal trend event", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			go h.drop(c)
		}
	}
}

// ServeWS upgrades the connection and registers the subscriber
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{hub: h, conn: conn, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[c] = true
	count := len(h.clients)
	h.mu.Unlock()

	logger.Debug("websocket subscriber connected",
		zap.String("remote", r.RemoteAddr),
		zap.Int("subscribers", count),
	)

	go c.writePump()
	go c.readPump()
}

// Close disconnects all subscribers
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}

// Subscribers returns the current connection count
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		logger.Debug("dropped slow websocket subscriber")
	}
}

// readPump discards inbound messages; the stream is one-way. Reading is
// still required to process control frames and detect disconnects.
func (c *client) readPump() {
	defer func() {
		c.hub.drop(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
