// Package hub fans chat messages out to the WebSocket connections subscribed
// to a session.
package hub

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"assistant/internal/logging"
)

// ErrBufferFull is returned when a connection's send buffer is full.
var ErrBufferFull = errors.New("send buffer full")

// ErrStopped is returned once the hub's Run loop has exited.
var ErrStopped = errors.New("hub stopped")

const sendBuffer = 256

// Connection represents a single WebSocket connection.
type Connection struct {
	ID        string
	SessionID string
	Conn      *websocket.Conn
	Send      chan []byte
	mu        sync.Mutex
}

// sessionMessage is queued for every connection of a session.
type sessionMessage struct {
	sessionID string
	data      []byte
}

// Hub manages all WebSocket connections.
type Hub struct {
	// Connections indexed by connection ID
	connections map[string]*Connection

	// Sessions maps session_id to set of connection IDs
	sessions map[string]map[string]bool

	unregister chan *Connection
	broadcast  chan sessionMessage
	done       chan struct{}

	logger *slog.Logger
	mu     sync.RWMutex
}

// NewHub creates a new Hub. Call Run to start delivering messages.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		connections: make(map[string]*Connection),
		sessions:    make(map[string]map[string]bool),
		unregister:  make(chan *Connection),
		broadcast:   make(chan sessionMessage, sendBuffer),
		done:        make(chan struct{}),
		logger:      logging.Component(logger, "hub"),
	}
}

// Run delivers messages until ctx is cancelled, then closes every connection's
// send channel.
func (h *Hub) Run(ctx context.Context) {
	defer h.stop()
	for {
		select {
		case <-ctx.Done():
			return

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.connections[conn.ID]; ok {
				delete(h.connections, conn.ID)
				h.unbindLocked(conn)
				close(conn.Send)
			}
			h.mu.Unlock()
			h.logger.Debug("connection unregistered", slog.String("connection_id", conn.ID))

		case msg := <-h.broadcast:
			h.mu.RLock()
			for connID := range h.sessions[msg.sessionID] {
				conn, ok := h.connections[connID]
				if !ok {
					continue
				}
				select {
				case conn.Send <- msg.data:
				default:
					h.logger.Warn("connection buffer full, closing", slog.String("connection_id", connID))
					go h.Unregister(conn)
				}
			}
			h.mu.RUnlock()
		}
	}
}

func (h *Hub) stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	close(h.done)
	for id, conn := range h.connections {
		close(conn.Send)
		delete(h.connections, id)
	}
	h.sessions = make(map[string]map[string]bool)
}

func (h *Hub) stopped() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// NewConnection wraps ws; it is not registered until Register is called.
func (h *Hub) NewConnection(ws *websocket.Conn) *Connection {
	return &Connection{
		ID:   uuid.New().String(),
		Conn: ws,
		Send: make(chan []byte, sendBuffer),
	}
}

// Register registers a connection with the hub. The connection can be sent
// to as soon as Register returns.
func (h *Hub) Register(conn *Connection) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped() {
		return ErrStopped
	}
	h.connections[conn.ID] = conn
	if conn.SessionID != "" {
		h.bindLocked(conn, conn.SessionID)
	}
	h.logger.Debug("connection registered",
		slog.String("connection_id", conn.ID),
		slog.String("session_id", conn.SessionID))
	return nil
}

// Unregister unregisters a connection from the hub.
func (h *Hub) Unregister(conn *Connection) {
	select {
	case h.unregister <- conn:
	case <-h.done:
	}
}

// BindSession subscribes a connection to a session, leaving any previous one.
func (h *Hub) BindSession(conn *Connection, sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unbindLocked(conn)
	h.bindLocked(conn, sessionID)
}

// SessionOf returns the session the connection is bound to.
func (h *Hub) SessionOf(conn *Connection) string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return conn.SessionID
}

func (h *Hub) bindLocked(conn *Connection, sessionID string) {
	conn.SessionID = sessionID
	if h.sessions[sessionID] == nil {
		h.sessions[sessionID] = make(map[string]bool)
	}
	h.sessions[sessionID][conn.ID] = true
}

func (h *Hub) unbindLocked(conn *Connection) {
	if conn.SessionID == "" || h.sessions[conn.SessionID] == nil {
		return
	}
	delete(h.sessions[conn.SessionID], conn.ID)
	if len(h.sessions[conn.SessionID]) == 0 {
		delete(h.sessions, conn.SessionID)
	}
}

// Broadcast queues data for all connections of a session.
func (h *Hub) Broadcast(sessionID string, data []byte) error {
	if h.stopped() {
		return ErrStopped
	}
	select {
	case h.broadcast <- sessionMessage{sessionID: sessionID, data: data}:
		return nil
	case <-h.done:
		return ErrStopped
	}
}

// BroadcastJSON sends a JSON message to all connections of a session.
func (h *Hub) BroadcastJSON(sessionID string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return h.Broadcast(sessionID, data)
}

// SendJSONToConnection sends a JSON message to a specific connection.
func (h *Hub) SendJSONToConnection(conn *Connection, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.connections[conn.ID]; !ok {
		return ErrStopped
	}
	select {
	case conn.Send <- data:
		return nil
	default:
		return ErrBufferFull
	}
}

// ConnectionCount returns the number of active connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// SessionCount returns the number of sessions with at least one subscriber.
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// HasSubscribers checks if a session has any active connections.
func (h *Hub) HasSubscribers(sessionID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID]) > 0
}

// WriteMessage writes a frame with an optional deadline; writes are serialized.
func (c *Connection) WriteMessage(messageType int, data []byte, deadline time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !deadline.IsZero() {
		if err := c.Conn.SetWriteDeadline(deadline); err != nil {
			return err
		}
	}
	return c.Conn.WriteMessage(messageType, data)
}

// Close closes the underlying socket.
func (c *Connection) Close() error {
	return c.Conn.Close()
}
