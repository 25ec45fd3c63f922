// Package http exposes the assistant over REST and WebSocket.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"assistant/internal/domain"
	"assistant/internal/hub"
	"assistant/internal/knowledge"
	"assistant/internal/logging"
	"assistant/internal/session"
)

// ChatService answers chat messages.
type ChatService interface {
	ProcessMessage(ctx context.Context, msg domain.InboundMessage) domain.OutboundMessage
	GetWelcomeMessage(sessionID string) domain.OutboundMessage
	UserMessage(msg domain.InboundMessage) domain.OutboundMessage
}

// KnowledgeIndex is the read side of the knowledge base.
type KnowledgeIndex interface {
	Len() int
	Rank(query string, k int) []knowledge.Result
	SearchKeywords(query string) []string
}

// SessionReader exposes session state for diagnostics.
type SessionReader interface {
	Get(id string) (session.Snapshot, bool)
	Stats(now time.Time) session.Stats
	IdleAfter() time.Duration
}

// WSConfig tunes WebSocket connections.
type WSConfig struct {
	PingInterval    time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	MaxMessageBytes int64
}

// Deps bundles what the server routes to.
type Deps struct {
	Chat      ChatService
	Knowledge KnowledgeIndex
	Sessions  SessionReader
	Hub       *hub.Hub
	Summary   string
	TopK      int
	WS        WSConfig
	Logger    *slog.Logger
}

// Server is the public HTTP server.
type Server struct {
	echo     *echo.Echo
	deps     Deps
	logger   *slog.Logger
	upgrader websocket.Upgrader
	baseCtx  context.Context
	cancel   context.CancelFunc
}

// NewServer creates the server and registers its routes.
func NewServer(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.TopK <= 0 {
		deps.TopK = knowledge.DefaultTopK
	}
	applyWSDefaults(&deps.WS)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	logger := logging.Component(deps.Logger, "http")
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		echo:   e,
		deps:   deps,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		baseCtx: ctx,
		cancel:  cancel,
	}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:   true,
		LogURI:      true,
		LogMethod:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				attrs = append(attrs, slog.String("error", v.Error.Error()))
				logger.LogAttrs(c.Request().Context(), slog.LevelWarn, "request", attrs...)
				return nil
			}
			logger.LogAttrs(c.Request().Context(), slog.LevelInfo, "request", attrs...)
			return nil
		},
	}))

	e.GET("/health", s.handleHealth)
	api := e.Group("/api")
	api.POST("/chat", s.handleChat)
	api.GET("/chat/welcome", s.handleWelcome)
	api.GET("/knowledge/search", s.handleKnowledgeSearch)
	api.GET("/knowledge/context", s.handleKnowledgeContext)
	api.GET("/sessions/:session_id", s.handleGetSession)
	e.GET("/ws", s.handleWebSocket)

	return s
}

func applyWSDefaults(c *WSConfig) {
	if c.PingInterval <= 0 {
		c.PingInterval = 30 * time.Second
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 60 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.MaxMessageBytes <= 0 {
		c.MaxMessageBytes = 64 * 1024
	}
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.echo }

// Start starts the HTTP server.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown stops accepting requests and cancels in-flight WebSocket work.
func (s *Server) Shutdown(ctx context.Context) error {
	defer s.cancel()
	return s.echo.Shutdown(ctx)
}
