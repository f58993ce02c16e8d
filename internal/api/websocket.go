package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ernie/crewvoice/internal/domain"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 30 * time.Second
	wsSendBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// WebSocketClient is a dashboard connection. A client with a channel filter
// only receives events of that game channel and global events.
type WebSocketClient struct {
	conn    *websocket.Conn
	send    chan []byte
	channel string
}

func (c *WebSocketClient) wants(channel string) bool {
	return c.channel == "" || channel == "" || c.channel == channel
}

// outbound is an encoded event and the channel it concerns
type outbound struct {
	channel string
	data    []byte
}

// WebSocketHub fans domain events out to dashboard connections
type WebSocketHub struct {
	mu      sync.Mutex
	clients map[*WebSocketClient]struct{}
	closed  bool

	queue chan outbound
}

// NewWebSocketHub creates a hub; Run must be started for events to flow
func NewWebSocketHub() *WebSocketHub {
	return &WebSocketHub{
		clients: make(map[*WebSocketClient]struct{}),
		queue:   make(chan outbound, 256),
	}
}

// Run delivers queued events until ctx ends, then disconnects every client
func (h *WebSocketHub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			h.closed = true
			for c := range h.clients {
				h.dropLocked(c)
			}
			h.mu.Unlock()
			return
		case msg := <-h.queue:
			h.deliver(msg)
		}
	}
}

func (h *WebSocketHub) deliver(msg outbound) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if !c.wants(msg.channel) {
			continue
		}
		select {
		case c.send <- msg.data:
		default:
			log.Printf("Dashboard %s is not keeping up, disconnecting", c.conn.RemoteAddr())
			h.dropLocked(c)
		}
	}
}

// add registers c, reporting false once the hub has shut down
func (h *WebSocketHub) add(c *WebSocketClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	log.Printf("Dashboard connected from %s (%d connected)", c.conn.RemoteAddr(), len(h.clients))
	return true
}

func (h *WebSocketHub) remove(c *WebSocketClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		h.dropLocked(c)
		log.Printf("Dashboard disconnected from %s (%d connected)", c.conn.RemoteAddr(), len(h.clients))
	}
}

// dropLocked forgets c and closes its send queue. h.mu must be held.
func (h *WebSocketHub) dropLocked(c *WebSocketClient) {
	delete(h.clients, c)
	close(c.send)
}

// Broadcast queues an event for every interested client
func (h *WebSocketHub) Broadcast(event domain.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("Error encoding %s event: %v", event.Type, err)
		return
	}
	select {
	case h.queue <- outbound{channel: event.Channel, data: data}:
	default:
		log.Printf("Dashboard queue full, dropping %s event", event.Type)
	}
}

// ClientCount returns the number of connected clients
func (h *WebSocketHub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// handleWebSocket attaches a dashboard. The optional channel query parameter
// restricts events to one game channel.
func (r *Router) handleWebSocket(w http.ResponseWriter, req *http.Request) {
	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	c := &WebSocketClient{
		conn:    conn,
		send:    make(chan []byte, wsSendBuffer),
		channel: req.URL.Query().Get("channel"),
	}
	if !r.wsHub.add(c) {
		conn.Close()
		return
	}

	go c.writeLoop()
	c.readLoop(r.wsHub)
}

// readLoop discards client messages and keeps the read deadline fresh
// until the connection fails
func (c *WebSocketClient) readLoop(h *WebSocketHub) {
	defer func() {
		h.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNoStatusReceived) {
				log.Printf("WebSocket error from %s: %v", c.conn.RemoteAddr(), err)
			}
			return
		}
	}
}

// writeLoop sends one event per text message and pings between events
func (c *WebSocketClient) writeLoop() {
	ping := time.NewTicker(wsPingPeriod)
	defer func() {
		ping.Stop()
		c.conn.Close()
	}()

	for {
		var err error
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			err = c.conn.WriteMessage(websocket.TextMessage, data)
		case <-ping.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			err = c.conn.WriteMessage(websocket.PingMessage, nil)
		}
		if err != nil {
			return
		}
	}
}
