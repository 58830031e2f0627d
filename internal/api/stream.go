package api

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/londonpotato1/standx-maker-bot/internal/metrics"
)

// hubMessage pairs an already-marshalled event with the symbol it concerns,
// so the hub can filter delivery per client without re-decoding JSON.
type hubMessage struct {
	symbol string // empty for symbol-agnostic events (e.g. a full snapshot)
	data   []byte
}

// Hub manages WebSocket clients and broadcasts events to them, routing each
// symbol-scoped event only to clients subscribed to that symbol — a fleet
// running many symbols would otherwise push every other symbol's order/fill
// chatter to a client watching one ladder.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan hubMessage
	mu         sync.RWMutex
	logger     *slog.Logger
}

// Client represents a connected WebSocket client. symbols is the set of
// tickers it subscribed to via the ?symbol= query parameter; a nil/empty set
// means "all symbols".
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	symbols map[string]bool
}

// wants reports whether this client should receive an event for symbol.
func (c *Client) wants(symbol string) bool {
	if symbol == "" || len(c.symbols) == 0 {
		return true
	}
	return c.symbols[symbol]
}

// NewHub creates a new WebSocket hub
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan hubMessage, 256),
		logger:     logger.With("component", "ws-hub"),
	}
}

// Run starts the hub's main loop (should be called in a goroutine)
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			metrics.DashboardClients.Inc()
			h.logger.Info("client connected", "count", len(h.clients), "symbols", client.symbols)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				metrics.DashboardClients.Dec()
			}
			h.mu.Unlock()
			h.logger.Info("client disconnected", "count", len(h.clients))

		case message := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				if !client.wants(message.symbol) {
					continue
				}
				select {
				case client.send <- message.data:
				default:
					// Client can't keep up, close it
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// BroadcastEvent sends a symbol-scoped event to every client subscribed to
// that symbol (or to every client, if the event carries no symbol).
func (h *Hub) BroadcastEvent(evt DashboardEvent) {
	data, err := json.Marshal(evt)
	if err != nil {
		h.logger.Error("failed to marshal event", "error", err)
		return
	}

	select {
	case h.broadcast <- hubMessage{symbol: evt.Symbol, data: data}:
	default:
		h.logger.Warn("broadcast channel full, dropping event")
	}
}

// BroadcastSnapshot sends a full dashboard snapshot to every connected
// client, regardless of symbol subscription.
func (h *Hub) BroadcastSnapshot(snapshot DashboardSnapshot) {
	evt := DashboardEvent{
		Type:      "snapshot",
		Timestamp: time.Now(),
		Data:      snapshot,
	}
	h.BroadcastEvent(evt)
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024 // 512 KB
)

// writePump pumps messages from the hub to the websocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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

// readPump pumps messages from the websocket connection to the hub
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, _, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Error("websocket error", "error", err)
			}
			break
		}
		// Dashboard is read-only, ignore any client messages
	}
}

// NewClient creates a new WebSocket client and starts its pumps. symbols, if
// non-empty, restricts delivery to events for those tickers; an empty set
// subscribes to every symbol.
func NewClient(hub *Hub, conn *websocket.Conn, symbols []string) *Client {
	filter := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		filter[s] = true
	}

	client := &Client{
		hub:     hub,
		conn:    conn,
		send:    make(chan []byte, 256),
		symbols: filter,
	}

	client.hub.register <- client

	// Start pumps
	go client.writePump()
	go client.readPump()

	return client
}
