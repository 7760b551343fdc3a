// Package hub fans workspace updates out to websocket connections.
package hub

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/xiaot623/gogo/workdesk/internal/domain"
)

// SendBufferSize is the per-connection outbound queue length.
const SendBufferSize = 256

var (
	// ErrBufferFull is returned when a connection's send queue is full.
	ErrBufferFull = errors.New("send buffer full")
	// ErrClosed is returned when sending to an unregistered connection.
	ErrClosed = errors.New("connection closed")
)

// Connection represents a single WebSocket connection.
type Connection struct {
	ID          string
	WorkspaceID string
	Conn        *websocket.Conn
	Send        chan []byte
	mu          sync.Mutex
}

// Hub manages all WebSocket connections.
type Hub struct {
	// Connections indexed by connection ID
	connections map[string]*Connection

	// workspaces maps workspace_id to its connection IDs
	workspaces map[string]map[string]bool

	broadcast chan *workspaceMessage

	logger zerolog.Logger
	mu     sync.RWMutex
}

type workspaceMessage struct {
	workspaceID string
	data        []byte
}

// NewHub creates a new Hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		connections: make(map[string]*Connection),
		workspaces:  make(map[string]map[string]bool),
		broadcast:   make(chan *workspaceMessage, SendBufferSize),
		logger:      logger,
	}
}

// Run starts the hub's main loop and returns when ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

func (h *Hub) remove(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.connections[conn.ID]; !ok {
		return
	}
	delete(h.connections, conn.ID)
	if ids := h.workspaces[conn.WorkspaceID]; ids != nil {
		delete(ids, conn.ID)
		if len(ids) == 0 {
			delete(h.workspaces, conn.WorkspaceID)
		}
	}
	close(conn.Send)
	h.logger.Debug().Str("conn_id", conn.ID).Msg("connection unregistered")
}

func (h *Hub) deliver(msg *workspaceMessage) {
	var slow []*Connection
	h.mu.RLock()
	for connID := range h.workspaces[msg.workspaceID] {
		conn, ok := h.connections[connID]
		if !ok {
			continue
		}
		select {
		case conn.Send <- msg.data:
		default:
			slow = append(slow, conn)
		}
	}
	h.mu.RUnlock()

	// Buffer full, close the connection.
	for _, conn := range slow {
		h.logger.Warn().Str("conn_id", conn.ID).Msg("connection buffer full, closing")
		h.remove(conn)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, conn := range h.connections {
		close(conn.Send)
		delete(h.connections, id)
	}
	h.workspaces = make(map[string]map[string]bool)
}

// NewConnection wraps ws for workspaceID. It is not registered yet.
func (h *Hub) NewConnection(ws *websocket.Conn, workspaceID string) *Connection {
	return &Connection{
		ID:          uuid.New().String(),
		WorkspaceID: workspaceID,
		Conn:        ws,
		Send:        make(chan []byte, SendBufferSize),
	}
}

// Register registers a connection with the hub. It takes effect before
// Register returns.
func (h *Hub) Register(conn *Connection) {
	h.mu.Lock()
	h.connections[conn.ID] = conn
	if h.workspaces[conn.WorkspaceID] == nil {
		h.workspaces[conn.WorkspaceID] = make(map[string]bool)
	}
	h.workspaces[conn.WorkspaceID][conn.ID] = true
	h.mu.Unlock()
	h.logger.Debug().Str("conn_id", conn.ID).Str("workspace_id", conn.WorkspaceID).Msg("connection registered")
}

// Unregister unregisters a connection from the hub. Unregistering twice
// is harmless.
func (h *Hub) Unregister(conn *Connection) {
	h.remove(conn)
}

// Publish queues u for every connection of workspaceID. It never blocks;
// when the queue is full the update is dropped.
func (h *Hub) Publish(workspaceID string, u domain.Update) {
	data, err := json.Marshal(u)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to encode update")
		return
	}
	select {
	case h.broadcast <- &workspaceMessage{workspaceID: workspaceID, data: data}:
	default:
		h.logger.Warn().Str("workspace_id", workspaceID).Str("type", string(u.Type)).Msg("broadcast queue full, dropping update")
	}
}

// SendJSON queues v for a single connection.
func (h *Hub) SendJSON(conn *Connection, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.connections[conn.ID]; !ok {
		return ErrClosed
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

// HasConnections reports whether workspaceID has any listener.
func (h *Hub) HasConnections(workspaceID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.workspaces[workspaceID]) > 0
}

// WriteMessage writes a message to the connection with proper locking.
func (c *Connection) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Conn.WriteMessage(messageType, data)
}

// SetWriteDeadline sets the write deadline for the connection.
func (c *Connection) SetWriteDeadline(t time.Time) error {
	return c.Conn.SetWriteDeadline(t)
}

// SetReadDeadline sets the read deadline for the connection.
func (c *Connection) SetReadDeadline(t time.Time) error {
	return c.Conn.SetReadDeadline(t)
}

// Close closes the connection.
func (c *Connection) Close() error {
	return c.Conn.Close()
}
