// Package protocol defines the WebSocket messages exchanged with chat clients.
package protocol

import (
	"time"

	"assistant/internal/domain"
)

// Message types from client to server
const (
	TypeSubscribe   = "subscribe"
	TypeChatMessage = "chat.message"
	TypeChatWelcome = "chat.welcome"
)

// Message types from server to client
const (
	TypeSubscribed = "subscribed"
	TypeChatReply  = "chat.reply"
	TypeError      = "error"
)

// Error codes
const (
	ErrorCodeInvalidMessage  = "invalid_message"
	ErrorCodeSessionRequired = "session_required"
	ErrorCodeEmptyContent    = "empty_content"
)

// BaseMessage contains common fields for all messages.
type BaseMessage struct {
	Type      string `json:"type"`
	Ts        int64  `json:"ts"`
	RequestID string `json:"request_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// SubscribeMessage binds the connection to a session; a blank session id
// asks the server to allocate one.
type SubscribeMessage struct {
	BaseMessage
}

// SubscribedMessage acknowledges a subscription.
type SubscribedMessage struct {
	BaseMessage
}

// ChatMessage carries a user's chat text.
type ChatMessage struct {
	BaseMessage
	Content string `json:"content"`
}

// ChatReplyMessage publishes one outbound message to every subscriber of a session.
type ChatReplyMessage struct {
	BaseMessage
	Message domain.OutboundMessage `json:"message"`
}

// ErrorMessage reports a rejected client message.
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewBase stamps a message header with the current time.
func NewBase(typ, sessionID, requestID string) BaseMessage {
	return BaseMessage{
		Type:      typ,
		Ts:        time.Now().UnixMilli(),
		RequestID: requestID,
		SessionID: sessionID,
	}
}

// NewChatReply wraps msg for publication.
func NewChatReply(msg domain.OutboundMessage, requestID string) ChatReplyMessage {
	return ChatReplyMessage{
		BaseMessage: NewBase(TypeChatReply, msg.SessionID, requestID),
		Message:     msg,
	}
}
