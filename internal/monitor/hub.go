package monitor

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"artnetnode/internal/logger"
	"artnetnode/internal/node"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	clientBuffer = 32
	writeWait    = 5 * time.Second
)

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// Hub fans node events out to websocket clients. Slow clients lose events.
type Hub struct {
	log      *logger.Log
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]*client
	closed  bool
}

var _ node.EventSink = (*Hub)(nil)

func NewHub(log logger.Logger) *Hub {
	return &Hub{
		log: log.With(logger.Fields{"module": "monitor"}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		clients: make(map[string]*client),
	}
}

// Publish never blocks the caller.
func (h *Hub) Publish(e node.Event) {
	msg, err := json.Marshal(e)
	if err != nil {
		h.log.Errorf("marshal event: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.log.Warnf("client %s is slow, event %s dropped", c.id, e.Type)
		}
	}
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and streams events until the client leaves.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debugf("websocket upgrade: %v", err)
		return
	}

	c := &client{id: uuid.NewString(), conn: conn, send: make(chan []byte, clientBuffer)}
	if !h.add(c) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(writeWait))
		conn.Close()
		return
	}
	h.log.Debugf("client %s connected from %s", c.id, r.RemoteAddr)

	go h.writeLoop(c)
	h.readLoop(c)
}

// Close disconnects every client. Later connections are refused.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, c := range h.clients {
		delete(h.clients, id)
		c.close()
	}
}

func (h *Hub) add(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c.id] = c
	return true
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.id]; ok {
		delete(h.clients, c.id)
		c.close()
	}
}

// readLoop discards client messages and detects disconnects.
func (h *Hub) readLoop(c *client) {
	defer func() {
		h.remove(c)
		h.log.Debugf("client %s disconnected", c.id)
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	defer c.conn.Close()
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.log.Debugf("client %s write: %v", c.id, err)
			h.remove(c)
			return
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
}
