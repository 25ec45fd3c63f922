package domain

import (
	"context"
	"time"
)

// MessageType tags who produced an outbound message.
type MessageType string

const (
	MessageTypeUser   MessageType = "user"
	MessageTypeBot    MessageType = "bot"
	MessageTypeSystem MessageType = "system"
)

// InboundMessage is a chat message delivered by a transport.
type InboundMessage struct {
	Content   string `json:"content"`
	SessionID string `json:"sessionId"`
}

// OutboundMessage is what the assistant hands back to a transport.
type OutboundMessage struct {
	ID        string      `json:"id"`
	Content   string      `json:"content"`
	SessionID string      `json:"sessionId"`
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
}

// GenerationRequest carries everything the text generator needs for one answer.
type GenerationRequest struct {
	Query       string
	Context     string
	SessionID   string
	MaxTokens   int
	Temperature float32
}

// Generator produces a natural-language answer from a query and retrieved context.
// Implementations are external collaborators; their failures are opaque to callers.
type Generator interface {
	Name() string
	Generate(ctx context.Context, req GenerationRequest) (string, error)
}

// Chunker splits corpus text into retrieval units.
type Chunker interface {
	Chunk(text string) []string
}

// Retriever ranks knowledge chunks for a query.
type Retriever interface {
	RetrieveRelevantContext(query string, k int) string
	SearchKeywords(query string) []string
}

// Summarizer produces a brief summary of the provided text.
type Summarizer interface {
	Summarize(text string, maxSentences int) (string, error)
}

// SessionStore records conversation history per session.
type SessionStore interface {
	AddUserMessage(sessionID, content string) error
	AddBotMessage(sessionID, content string) error
}
