package http

import (
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"assistant/internal/domain"
	"assistant/internal/hub"
	"assistant/internal/protocol"
)

// handleWebSocket upgrades the request and subscribes the connection to the
// session named by ?sessionId=, when present.
func (s *Server) handleWebSocket(c echo.Context) error {
	if s.deps.Hub == nil {
		return echo.ErrServiceUnavailable
	}
	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", slog.Any("error", err))
		return nil
	}

	conn := s.deps.Hub.NewConnection(ws)
	if err := s.deps.Hub.Register(conn); err != nil {
		_ = ws.Close()
		return nil
	}
	ws.SetReadLimit(s.deps.WS.MaxMessageBytes)

	go s.writePump(conn)
	go s.readPump(conn)

	if sessionID := c.QueryParam("sessionId"); sessionID != "" {
		s.subscribe(conn, sessionID, "")
	}
	return nil
}

// readPump reads messages from the WebSocket connection.
func (s *Server) readPump(conn *hub.Connection) {
	defer func() {
		s.deps.Hub.Unregister(conn)
		_ = conn.Close()
	}()

	_ = conn.Conn.SetReadDeadline(time.Now().Add(s.deps.WS.ReadTimeout))
	conn.Conn.SetPongHandler(func(string) error {
		return conn.Conn.SetReadDeadline(time.Now().Add(s.deps.WS.ReadTimeout))
	})

	for {
		_, message, err := conn.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Warn("websocket read failed",
					slog.String("connection_id", conn.ID),
					slog.Any("error", err))
			}
			return
		}
		s.handleMessage(conn, message)
	}
}

// writePump writes messages to the WebSocket connection.
func (s *Server) writePump(conn *hub.Connection) {
	ticker := time.NewTicker(s.deps.WS.PingInterval)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			deadline := time.Now().Add(s.deps.WS.WriteTimeout)
			if !ok {
				// Hub closed the channel
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{}, deadline)
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, message, deadline); err != nil {
				s.logger.Debug("websocket write failed",
					slog.String("connection_id", conn.ID),
					slog.Any("error", err))
				return
			}

		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil, time.Now().Add(s.deps.WS.WriteTimeout)); err != nil {
				return
			}
		}
	}
}

// handleMessage dispatches incoming messages to appropriate handlers.
func (s *Server) handleMessage(conn *hub.Connection, data []byte) {
	var base protocol.BaseMessage
	if err := json.Unmarshal(data, &base); err != nil {
		s.sendError(conn, "", protocol.ErrorCodeInvalidMessage, "invalid JSON message")
		return
	}

	switch base.Type {
	case protocol.TypeSubscribe:
		s.subscribe(conn, base.SessionID, base.RequestID)
	case protocol.TypeChatMessage:
		s.handleChatMessage(conn, data)
	case protocol.TypeChatWelcome:
		sessionID := s.deps.Hub.SessionOf(conn)
		if sessionID == "" {
			s.sendError(conn, base.RequestID, protocol.ErrorCodeSessionRequired, "subscribe first")
			return
		}
		s.send(conn, protocol.NewChatReply(s.deps.Chat.GetWelcomeMessage(sessionID), base.RequestID))
	default:
		s.sendError(conn, base.RequestID, protocol.ErrorCodeInvalidMessage, "unknown message type: "+base.Type)
	}
}

func (s *Server) subscribe(conn *hub.Connection, sessionID, requestID string) {
	if sessionID == "" {
		sessionID = NewSessionID()
	}
	s.deps.Hub.BindSession(conn, sessionID)
	s.send(conn, protocol.SubscribedMessage{
		BaseMessage: protocol.NewBase(protocol.TypeSubscribed, sessionID, requestID),
	})
}

// handleChatMessage answers off the read loop so a slow generator does not
// stall the connection.
func (s *Server) handleChatMessage(conn *hub.Connection, data []byte) {
	var msg protocol.ChatMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError(conn, "", protocol.ErrorCodeInvalidMessage, "invalid chat message")
		return
	}
	sessionID := s.deps.Hub.SessionOf(conn)
	if sessionID == "" {
		s.sendError(conn, msg.RequestID, protocol.ErrorCodeSessionRequired, "subscribe first")
		return
	}
	if strings.TrimSpace(msg.Content) == "" {
		s.sendError(conn, msg.RequestID, protocol.ErrorCodeEmptyContent, "content is required")
		return
	}

	in := domain.InboundMessage{Content: msg.Content, SessionID: sessionID}
	s.publish(s.deps.Chat.UserMessage(in), msg.RequestID)
	go func() {
		out := s.deps.Chat.ProcessMessage(s.baseCtx, in)
		s.publish(out, msg.RequestID)
	}()
}

func (s *Server) send(conn *hub.Connection, v any) {
	if err := s.deps.Hub.SendJSONToConnection(conn, v); err != nil {
		s.logger.Debug("send failed",
			slog.String("connection_id", conn.ID),
			slog.Any("error", err))
	}
}

func (s *Server) sendError(conn *hub.Connection, requestID, code, message string) {
	s.send(conn, protocol.ErrorMessage{
		BaseMessage: protocol.NewBase(protocol.TypeError, s.deps.Hub.SessionOf(conn), requestID),
		Code:        code,
		Message:     message,
	})
}
