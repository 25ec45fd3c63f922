package session

import (
	"sync"
	"time"
)

// Context is the mutable state of one conversation.
type Context struct {
	mu           sync.Mutex
	id           string
	createdAt    time.Time
	lastActivity time.Time
	userMessages []string
	botMessages  []string
	messageCount int
	removed      bool
}

// Snapshot is an immutable copy of a Context.
type Snapshot struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActivity time.Time `json:"lastActivity"`
	UserMessages []string  `json:"userMessages"`
	BotMessages  []string  `json:"botMessages"`
	MessageCount int       `json:"messageCount"`
}

// IsIdle reports whether the snapshot had no activity for longer than after.
func (s Snapshot) IsIdle(now time.Time, after time.Duration) bool {
	return now.Sub(s.LastActivity) > after
}

// append returns false when the context was already removed from its store.
func (c *Context) append(content string, user bool, max int, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.removed {
		return false
	}
	if user {
		c.userMessages = pushBounded(c.userMessages, content, max)
	} else {
		c.botMessages = pushBounded(c.botMessages, content, max)
	}
	c.messageCount++
	c.lastActivity = now
	return true
}

func pushBounded(history []string, msg string, max int) []string {
	history = append(history, msg)
	if over := len(history) - max; over > 0 {
		history = append(history[:0:0], history[over:]...)
	}
	return history
}

func (c *Context) snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		ID:           c.id,
		CreatedAt:    c.createdAt,
		LastActivity: c.lastActivity,
		UserMessages: append([]string{}, c.userMessages...),
		BotMessages:  append([]string{}, c.botMessages...),
		MessageCount: c.messageCount,
	}
}
