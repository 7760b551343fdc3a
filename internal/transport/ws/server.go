// Package ws provides WebSocket server functionality for workspace pushes.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/xiaot623/gogo/workdesk/internal/domain"
	"github.com/xiaot623/gogo/workdesk/internal/hub"
)

// Inbound message types.
const (
	TypeCancel = "cancel"
	TypePing   = "ping"
	TypePong   = "pong"
	TypeError  = "error"
)

// Error codes sent to clients.
const (
	ErrorCodeInvalidMessage = "invalid_message"
	ErrorCodeCancelFailed   = "cancel_failed"
)

// Config holds the connection timeouts.
type Config struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	PingInterval   time.Duration
	MaxMessageSize int64
}

// Workspaces is the part of the service the socket needs.
type Workspaces interface {
	Caller(ctx context.Context, id string) (domain.User, error)
	CancelTurn(ctx context.Context, id string) error
}

// Message is the envelope of every inbound and outbound control message.
type Message struct {
	Type    string `json:"type"`
	Ts      int64  `json:"ts,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// Server handles WebSocket connections.
type Server struct {
	cfg        Config
	hub        *hub.Hub
	workspaces Workspaces
	upgrader   websocket.Upgrader
	logger     zerolog.Logger
}

// NewServer creates a new WebSocket server.
func NewServer(cfg Config, h *hub.Hub, workspaces Workspaces, logger zerolog.Logger) *Server {
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 60 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.PingInterval <= 0 || cfg.PingInterval >= cfg.ReadTimeout {
		cfg.PingInterval = cfg.ReadTimeout * 9 / 10
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = 65536
	}
	return &Server{
		cfg:        cfg,
		hub:        h,
		workspaces: workspaces,
		logger:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// HandleWebSocket upgrades the request and streams the workspace's
// updates until either side closes.
// GET /ws?workspace_id=
func (s *Server) HandleWebSocket(c echo.Context) error {
	workspaceID := c.QueryParam("workspace_id")
	if workspaceID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "workspace_id is required"})
	}
	if _, err := s.workspaces.Caller(c.Request().Context(), workspaceID); err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "workspace not found"})
	}

	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to upgrade websocket")
		return nil
	}

	conn := s.hub.NewConnection(ws, workspaceID)
	s.hub.Register(conn)
	ws.SetReadLimit(s.cfg.MaxMessageSize)

	go s.writePump(conn)
	go s.readPump(conn)

	return nil
}

// readPump reads messages from the WebSocket connection.
func (s *Server) readPump(conn *hub.Connection) {
	defer func() {
		s.hub.Unregister(conn)
		conn.Close()
	}()

	conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	conn.Conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		return nil
	})

	for {
		_, data, err := conn.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Warn().Err(err).Str("conn_id", conn.ID).Msg("websocket read failed")
			}
			return
		}
		s.handleMessage(conn, data)
	}
}

// writePump writes queued updates and keepalive pings.
func (s *Server) writePump(conn *hub.Connection) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if !ok {
				// Hub closed the channel
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				s.logger.Debug().Err(err).Str("conn_id", conn.ID).Msg("websocket write failed")
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage dispatches inbound control messages.
func (s *Server) handleMessage(conn *hub.Connection, data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError(conn, ErrorCodeInvalidMessage, "invalid JSON message")
		return
	}

	switch msg.Type {
	case TypePing:
		s.send(conn, Message{Type: TypePong, Ts: time.Now().UnixMilli()})
	case TypeCancel:
		if err := s.workspaces.CancelTurn(context.Background(), conn.WorkspaceID); err != nil {
			s.sendError(conn, ErrorCodeCancelFailed, "workspace not found")
		}
	default:
		s.sendError(conn, ErrorCodeInvalidMessage, "unknown message type: "+msg.Type)
	}
}

func (s *Server) sendError(conn *hub.Connection, code, message string) {
	s.send(conn, Message{Type: TypeError, Ts: time.Now().UnixMilli(), Code: code, Message: message})
}

func (s *Server) send(conn *hub.Connection, msg Message) {
	if err := s.hub.SendJSON(conn, msg); err != nil {
		s.logger.Debug().Err(err).Str("conn_id", conn.ID).Msg("dropping control message")
	}
}
