// Package service routes chat messages between sessions, retrieval and generation.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"assistant/internal/domain"
	"assistant/internal/knowledge"
	"assistant/internal/logging"
)

const (
	// FallbackMessage is returned whenever generation fails.
	FallbackMessage = "I'm sorry, I'm having trouble answering right now. Please try again in a moment."
	// WelcomeMessage greets a new visitor.
	WelcomeMessage = "Hi! I'm the service shop assistant. Ask me about maintenance, repairs, prices or booking, or type /help to see what I can do."

	DefaultMaxTokens         = 500
	DefaultTemperature       = 0.7
	DefaultGenerationTimeout = 30 * time.Second
)

// errBlankGeneration marks a generator that returned only whitespace.
var errBlankGeneration = errors.New("generator returned blank text")

// Orchestrator answers inbound chat messages.
type Orchestrator struct {
	sessions    domain.SessionStore
	retriever   domain.Retriever
	generator   domain.Generator
	logger      *slog.Logger
	topK        int
	maxTokens   int
	temperature float32
	timeout     time.Duration
	now         func() time.Time
	newID       func() string
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

func WithTopK(k int) Option {
	return func(o *Orchestrator) {
		if k > 0 {
			o.topK = k
		}
	}
}

// WithGeneration sets the token budget, sampling temperature and per-call timeout.
func WithGeneration(maxTokens int, temperature float32, timeout time.Duration) Option {
	return func(o *Orchestrator) {
		if maxTokens > 0 {
			o.maxTokens = maxTokens
		}
		if temperature >= 0 {
			o.temperature = temperature
		}
		if timeout > 0 {
			o.timeout = timeout
		}
	}
}

// WithClock overrides time.Now for message timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func NewOrchestrator(sessions domain.SessionStore, retriever domain.Retriever, generator domain.Generator, opts ...Option) (*Orchestrator, error) {
	if sessions == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if retriever == nil {
		return nil, fmt.Errorf("retriever is required")
	}
	if generator == nil {
		return nil, fmt.Errorf("generator is required")
	}
	o := &Orchestrator{
		sessions:    sessions,
		retriever:   retriever,
		generator:   generator,
		logger:      slog.Default(),
		topK:        knowledge.DefaultTopK,
		maxTokens:   DefaultMaxTokens,
		temperature: DefaultTemperature,
		timeout:     DefaultGenerationTimeout,
		now:         time.Now,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = logging.Component(o.logger, "orchestrator")
	return o, nil
}

// ProcessMessage records msg, answers it and records the answer. It never
// fails: generation errors produce FallbackMessage, which is not recorded.
func (o *Orchestrator) ProcessMessage(ctx context.Context, msg domain.InboundMessage) domain.OutboundMessage {
	if err := o.sessions.AddUserMessage(msg.SessionID, msg.Content); err != nil {
		o.logger.Warn("failed to record user message",
			slog.String("session_id", msg.SessionID),
			slog.Any("error", err))
	}

	if cmd := ParseCommand(msg.Content); cmd != CommandNone {
		o.logger.Debug("command",
			slog.String("session_id", msg.SessionID),
			slog.String("command", cmd.String()))
		return o.reply(msg.SessionID, cmd.Response())
	}

	retrieved := o.retriever.RetrieveRelevantContext(msg.Content, o.topK)
	text, err := o.generate(ctx, domain.GenerationRequest{
		Query:       msg.Content,
		Context:     retrieved,
		SessionID:   msg.SessionID,
		MaxTokens:   o.maxTokens,
		Temperature: o.temperature,
	})
	if err != nil {
		o.logger.Error("generation failed",
			slog.String("session_id", msg.SessionID),
			slog.String("generator", o.generator.Name()),
			slog.Any("error", err))
		return o.message(msg.SessionID, FallbackMessage, domain.MessageTypeSystem)
	}
	return o.reply(msg.SessionID, text)
}

func (o *Orchestrator) generate(ctx context.Context, req domain.GenerationRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	start := time.Now()
	text, err := o.generator.Generate(ctx, req)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", errBlankGeneration
	}
	o.logger.Debug("generated",
		slog.String("session_id", req.SessionID),
		slog.Duration("took", time.Since(start)))
	return text, nil
}

// reply records content as a bot message and wraps it.
func (o *Orchestrator) reply(sessionID, content string) domain.OutboundMessage {
	if err := o.sessions.AddBotMessage(sessionID, content); err != nil {
		o.logger.Warn("failed to record bot message",
			slog.String("session_id", sessionID),
			slog.Any("error", err))
	}
	return o.message(sessionID, content, domain.MessageTypeBot)
}

func (o *Orchestrator) message(sessionID, content string, typ domain.MessageType) domain.OutboundMessage {
	return domain.OutboundMessage{
		ID:        o.newID(),
		Content:   content,
		SessionID: sessionID,
		Type:      typ,
		Timestamp: o.now(),
	}
}

// GetWelcomeMessage returns the greeting for sessionID. It does not touch
// the session store, so greetings never count toward history.
func (o *Orchestrator) GetWelcomeMessage(sessionID string) domain.OutboundMessage {
	return o.message(sessionID, WelcomeMessage, domain.MessageTypeBot)
}

// UserMessage wraps inbound content for transports that echo it back.
func (o *Orchestrator) UserMessage(msg domain.InboundMessage) domain.OutboundMessage {
	return o.message(msg.SessionID, msg.Content, domain.MessageTypeUser)
}
