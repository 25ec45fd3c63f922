package http

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"assistant/internal/domain"
	"assistant/internal/knowledge"
	"assistant/internal/protocol"
)

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Content   string `json:"content"`
	SessionID string `json:"sessionId"`
}

// ErrorResponse is returned for rejected requests.
type ErrorResponse struct {
	Error string `json:"error"`
}

// NewSessionID allocates an id for clients that did not bring one.
func NewSessionID() string {
	return "sess_" + uuid.New().String()[:8]
}

func (s *Server) handleHealth(c echo.Context) error {
	resp := map[string]any{
		"status":   "healthy",
		"chunks":   s.deps.Knowledge.Len(),
		"sessions": s.deps.Sessions.Stats(time.Now()),
		"summary":  s.deps.Summary,
	}
	if s.deps.Hub != nil {
		resp["connections"] = s.deps.Hub.ConnectionCount()
	}
	return c.JSON(http.StatusOK, resp)
}

// handleChat runs one message through the assistant and returns the reply.
// WebSocket subscribers of the session see both sides of the exchange.
func (s *Server) handleChat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}
	if strings.TrimSpace(req.Content) == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "content is required"})
	}
	if req.SessionID == "" {
		req.SessionID = NewSessionID()
	}

	in := domain.InboundMessage{Content: req.Content, SessionID: req.SessionID}
	s.publish(s.deps.Chat.UserMessage(in), "")
	out := s.deps.Chat.ProcessMessage(c.Request().Context(), in)
	s.publish(out, "")
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleWelcome(c echo.Context) error {
	sessionID := c.QueryParam("sessionId")
	if sessionID == "" {
		sessionID = NewSessionID()
	}
	return c.JSON(http.StatusOK, s.deps.Chat.GetWelcomeMessage(sessionID))
}

func (s *Server) handleKnowledgeSearch(c echo.Context) error {
	q := c.QueryParam("q")
	if strings.TrimSpace(q) == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "q is required"})
	}
	results := s.deps.Knowledge.SearchKeywords(q)
	if results == nil {
		results = []string{}
	}
	return c.JSON(http.StatusOK, map[string]any{
		"query":   q,
		"results": results,
	})
}

// handleKnowledgeContext shows how a query ranks against the corpus.
func (s *Server) handleKnowledgeContext(c echo.Context) error {
	q := c.QueryParam("q")
	if strings.TrimSpace(q) == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "q is required"})
	}
	k := s.deps.TopK
	if raw := c.QueryParam("k"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "k must be a positive integer"})
		}
		k = n
	}
	results := s.deps.Knowledge.Rank(q, k)
	return c.JSON(http.StatusOK, map[string]any{
		"query":   q,
		"k":       k,
		"results": results,
		"context": knowledge.JoinContext(results),
	})
}

func (s *Server) handleGetSession(c echo.Context) error {
	id := c.Param("session_id")
	snap, ok := s.deps.Sessions.Get(id)
	if !ok {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "session not found"})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"session": snap,
		"idle":    snap.IsIdle(time.Now(), s.deps.Sessions.IdleAfter()),
	})
}

// publish fans msg out to WebSocket subscribers, if any.
func (s *Server) publish(msg domain.OutboundMessage, requestID string) {
	if s.deps.Hub == nil || !s.deps.Hub.HasSubscribers(msg.SessionID) {
		return
	}
	if err := s.deps.Hub.BroadcastJSON(msg.SessionID, protocol.NewChatReply(msg, requestID)); err != nil {
		s.logger.Warn("publish failed",
			slog.String("session_id", msg.SessionID),
			slog.Any("error", err))
	}
}
