package ipcserver

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sabachan/sabachan/internal/apierr"
	"github.com/sabachan/sabachan/internal/types"
)

// wsBufferSize is the per-client outbound buffer before a slow client
// is disconnected instead of blocking the broadcaster.
const wsBufferSize = 256

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsClient is one connected dashboard websocket.
type wsClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Hub fans broadcast messages (instance state transitions) out to every
// connected dashboard over websocket.
type Hub struct {
	mu         sync.RWMutex
	clients    map[*wsClient]bool
	register   chan *wsClient
	unregister chan *wsClient
	broadcast  chan []byte
}

// NewHub builds an empty Hub; call Run in its own goroutine.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*wsClient]bool),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		broadcast:  make(chan []byte, wsBufferSize),
	}
}

// Run is the hub's event loop; it never returns.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					close(c.send)
					delete(h.clients, c)
				}
			}
			h.mu.Unlock()
		}
	}
}

// BroadcastJSON marshals msg and fans it out to every connected client.
func (h *Hub) BroadcastJSON(msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[IPC] hub: marshal broadcast: %v", err)
		return
	}
	h.broadcast <- data
}

// ClientCount reports the number of connected websocket clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (c *wsClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
		// inbound messages from the dashboard aren't processed; this socket
		// is a one-way broadcast channel.
	}
}

func (c *wsClient) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// handleWebSocket upgrades to a dashboard-wide event stream (instance
// state transitions).
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[IPC] websocket upgrade failed: %v", err)
		return
	}

	c := &wsClient{hub: s.hub, conn: conn, send: make(chan []byte, wsBufferSize)}
	s.hub.register <- c
	go c.writePump()
	c.readPump()
}

// handleConsoleStream upgrades to a per-instance live console tail,
// pushing every new line from the managed process's broadcast channel.
func (s *Server) handleConsoleStream(w http.ResponseWriter, r *http.Request) {
	inst, err := s.lookupInstance(r)
	if err != nil {
		writeError(w, err)
		return
	}
	mp, ok := s.Supervisor.Procs.Get(inst.ID)
	if !ok {
		writeError(w, apierr.ErrNotRunning)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[IPC] console stream upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	lines, unsubscribe := mp.Subscribe()
	defer unsubscribe()

	conn.SetReadDeadline(time.Now().Add(24 * time.Hour))
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for line := range lines {
		data, err := json.Marshal(types.WSMessage{Type: types.WSTypeConsoleLine, Data: line})
		if err != nil {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
}
