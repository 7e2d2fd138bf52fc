package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/abrezinsky/votosafe/internal/auth"
	"github.com/abrezinsky/votosafe/internal/logger"
	"github.com/abrezinsky/votosafe/internal/models"
)

// Message types pushed to clients
const (
	TypeSessionCountdown = "session_countdown"
	TypeSessionExpired   = "session_expired"
	TypeVoteCast         = "vote_cast"
	TypeElectionsUpdated = "elections_updated"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 256

	// defaultResync bounds how long a cached expiry is trusted before the
	// session is looked up again, which picks up logouts and refreshes.
	defaultResync = 15 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for now
	},
}

// ClientGauge receives the connected client count
type ClientGauge interface {
	SetClients(n int)
}

// Hub maintains the set of active clients, broadcasts messages to them
// and pushes each logged-in client its session countdown.
type Hub struct {
	log        logger.Logger
	sessions   auth.SessionResolver
	clients    map[*Client]bool
	broadcast  chan models.WSMessage
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	tick       time.Duration
	resync     time.Duration
	gauge      ClientGauge
}

// Client is a middleman between the websocket connection and the hub
type Client struct {
	hub   *Hub
	conn  *websocket.Conn
	send  chan models.WSMessage
	token string

	// Owned by the hub goroutine. Ticks count down from expiresAt and only
	// go back to the resolver when it lapses, resync passes or stale is set.
	expiresAt  time.Time
	resolvedAt time.Time
	stale      bool
}

// New creates a new Hub. sessions resolves the token a client connected with.
func New(log logger.Logger, sessions auth.SessionResolver) *Hub {
	return &Hub{
		log:        log,
		sessions:   sessions,
		clients:    make(map[*Client]bool),
		broadcast:  make(chan models.WSMessage, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		tick:       time.Second,
		resync:     defaultResync,
	}
}

// SetTickInterval changes the countdown period. Call before Run.
func (h *Hub) SetTickInterval(d time.Duration) {
	h.tick = d
}

// SetResyncInterval changes how long a client's cached session expiry is
// used before it is resolved again. Call before Run.
func (h *Hub) SetResyncInterval(d time.Duration) {
	h.resync = d
}

// SetGauge reports client count changes to g. Call before Run.
func (h *Hub) SetGauge(g ClientGauge) {
	h.gauge = g
}

// Run handles clients, broadcasts and the countdown until ctx is done
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.tick)
	defer func() {
		ticker.Stop()
		for c := range h.clients {
			h.drop(c)
		}
		close(h.done)
		h.log.Info("WebSocket hub stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.clients[client] = true
			h.clientsChanged()
			h.log.Debug("Client connected", "total_clients", len(h.clients))
			if client.token != "" {
				h.countdown(ctx, client)
			}

		case client := <-h.unregister:
			if h.clients[client] {
				h.drop(client)
			}
			h.log.Debug("Client disconnected", "total_clients", len(h.clients))

		case message := <-h.broadcast:
			for client := range h.clients {
				// A vote refreshes the voter's session
				if message.Type == TypeVoteCast {
					client.stale = true
				}
				h.deliver(client, message)
			}

		case <-ticker.C:
			for client := range h.clients {
				if client.token != "" {
					h.countdown(ctx, client)
				}
			}
		}
	}
}

// countdown pushes the remaining session time, or session_expired once
// the session is gone. Expired sessions are deleted by the resolver.
func (h *Hub) countdown(ctx context.Context, c *Client) {
	now := time.Now()
	if c.stale || !now.Before(c.expiresAt) || now.Sub(c.resolvedAt) >= h.resync {
		sess, err := h.sessions.Current(ctx, c.token)
		if err != nil {
			c.token = ""
			h.deliver(c, models.WSMessage{Type: TypeSessionExpired, Payload: map[string]any{}})
			return
		}
		c.expiresAt = sess.ExpiresAt
		c.resolvedAt = now
		c.stale = false
	}
	remaining := int(c.expiresAt.Sub(now).Round(time.Second) / time.Second)
	if remaining < 0 {
		remaining = 0
	}
	h.deliver(c, models.WSMessage{
		Type:    TypeSessionCountdown,
		Payload: map[string]any{"seconds_remaining": remaining},
	})
}

// deliver queues message for c, dropping the client when its buffer is full
func (h *Hub) deliver(c *Client, message models.WSMessage) {
	select {
	case c.send <- message:
	default:
		h.drop(c)
	}
}

func (h *Hub) drop(c *Client) {
	if !h.clients[c] {
		return
	}
	delete(h.clients, c)
	close(c.send)
	h.clientsChanged()
}

func (h *Hub) clientsChanged() {
	if h.gauge != nil {
		h.gauge.SetClients(len(h.clients))
	}
}

// BroadcastMessage sends a message to all connected clients. It never
// blocks; messages are dropped when the hub is stopped or backed up.
func (h *Hub) BroadcastMessage(msgType string, payload any) {
	select {
	case h.broadcast <- models.WSMessage{Type: msgType, Payload: payload}:
	case <-h.done:
	default:
		h.log.Warn("Broadcast dropped", "type", msgType)
	}
}

// BroadcastVoteCast implements services.Broadcaster
func (h *Hub) BroadcastVoteCast(electionID string, totalVotes int) {
	h.BroadcastMessage(TypeVoteCast, map[string]any{
		"election_id": electionID,
		"total_votes": totalVotes,
	})
}

// BroadcastElectionsChanged implements services.Broadcaster
func (h *Hub) BroadcastElectionsChanged() {
	h.BroadcastMessage(TypeElectionsUpdated, map[string]any{})
}

// readPump pumps messages from the websocket connection to the hub
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Debug("WebSocket error", "error", err)
			}
			break
		}

		var msg models.WSMessage
		if err := json.Unmarshal(message, &msg); err == nil {
			c.hub.log.Debug("Received message", "type", msg.Type)
		}
	}
}

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
			if err := c.conn.WriteJSON(message); err != nil {
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

// ServeWs handles websocket requests from clients. A session cookie or
// bearer token on the upgrade request subscribes the client to its
// countdown.
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("WebSocket upgrade error", "error", err)
		return
	}

	client := &Client{
		hub:   h,
		conn:  conn,
		send:  make(chan models.WSMessage, sendBuffer),
		token: auth.TokenFromRequest(r),
	}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	// Allow collection of memory referenced by the caller by doing all work in new goroutines
	go client.writePump()
	go client.readPump()
}
