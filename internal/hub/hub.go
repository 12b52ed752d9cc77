// Package hub keeps the set of connected dashboard clients and fans live
// updates out to them over websockets.
package hub

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/afikmenashe/alert-engine/internal/alerterr"
)

const (
	// writeTimeout is the deadline for a single write to a client.
	writeTimeout = 10 * time.Second

	// pongWait is how long to wait for a pong before treating the
	// connection as dead.
	pongWait = 60 * time.Second

	// pingPeriod must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// sendBufSize is the per-client outgoing message buffer depth.
	sendBufSize = 16

	// MessageTypeStats is the envelope type of a stats snapshot.
	MessageTypeStats = "stats"
)

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("hub is closed")

var errBufferFull = errors.New("send buffer full")

// Envelope is the JSON message sent to clients.
type Envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// SnapshotFunc returns the stats snapshot sent to each client on connect.
type SnapshotFunc func() any

// Hub manages websocket clients. Publish iterates a copy of the client
// set, so clients may connect and disconnect concurrently.
type Hub struct {
	upgrader websocket.Upgrader
	snapshot SnapshotFunc

	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool
}

// client is one connected dashboard. send is closed exactly once, under mu.
type client struct {
	id   string
	conn *websocket.Conn

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

// New creates a hub. snapshot may be nil, in which case clients receive no
// initial state.
func New(snapshot SnapshotFunc, allowedOrigins ...string) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin(allowedOrigins),
		},
		snapshot: snapshot,
		clients:  make(map[*client]struct{}),
	}
}

func checkOrigin(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set[origin]
	}
}

// ServeWS upgrades the connection, registers the client, sends it the
// current stats snapshot, and serves it until the connection closes.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader has already written the error response.
		slog.Debug("Websocket upgrade failed", "error", err)
		return
	}

	c := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, sendBufSize),
	}
	if !h.register(c) {
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down")) //nolint:errcheck
		conn.Close()
		return
	}
	defer h.unregister(c)

	slog.Debug("Dashboard client connected", "client_id", c.id, "remote_addr", r.RemoteAddr)

	if h.snapshot != nil {
		if data, err := encode(MessageTypeStats, h.snapshot()); err == nil {
			c.trySend(data)
		} else {
			slog.Error("Failed to encode stats snapshot", "error", err)
		}
	}

	go c.writePump()
	c.readPump() // blocks until connection closes
}

// Publish marshals a {type, data} envelope once and offers it to every
// connected client. A client whose buffer is full or closed is removed.
// It returns the number of clients that accepted the message; per-client
// failures are only logged.
func (h *Hub) Publish(msgType string, data any) (int, error) {
	msg, err := encode(msgType, data)
	if err != nil {
		return 0, err
	}

	h.mu.RLock()
	if h.closed {
		h.mu.RUnlock()
		return 0, ErrClosed
	}
	targets := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, c := range targets {
		if c.trySend(msg) {
			delivered++
			continue
		}
		berr := &alerterr.BroadcastError{ClientID: c.id, Err: errBufferFull}
		slog.Warn("Dropping dashboard client", "client_id", c.id, "error", berr)
		h.unregister(c)
	}
	return delivered, nil
}

// Ready returns ErrClosed once the hub has been closed.
func (h *Hub) Ready() error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return ErrClosed
	}
	return nil
}

// ClientCount returns the number of currently connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client and rejects further publishes.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		c.close()
		delete(h.clients, c)
	}
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.close()
	}
	h.mu.Unlock()
}

func encode(msgType string, data any) ([]byte, error) {
	msg, err := json.Marshal(Envelope{Type: msgType, Data: data})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s envelope: %w", msgType, err)
	}
	return msg, nil
}

func (c *client) trySend(msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// writePump drains the send channel to the connection and keeps it alive
// with pings. Runs in its own goroutine per client.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump handles control frames and detects disconnects. Dashboards
// never send data, so anything they send is discarded.
func (c *client) readPump() {
	defer c.conn.Close()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}
