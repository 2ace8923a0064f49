package core

import (
	"context"
	"time"
)

// ConversationStore owns the lifecycle of opaque session identifiers. The
// router never interprets, caches or expires them.
type ConversationStore interface {
	Create(ctx context.Context) (string, error)
	Exists(ctx context.Context, sessionID string) (bool, error)
}

// Message is one transcript entry of a conversation.
type Message struct {
	Role      string    `json:"role"`             // user, assistant
	Author    string    `json:"author,omitempty"` // responding agent for assistant messages
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// HistoryStore is implemented by conversation stores that also keep the
// transcript. Completion services use it to load context and record replies.
type HistoryStore interface {
	Append(ctx context.Context, sessionID string, msgs ...Message) error
	Messages(ctx context.Context, sessionID string) ([]Message, error)
}

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleTool      = "tool"
)

// NewUserMessage builds a user transcript entry stamped with the current time.
func NewUserMessage(text string) Message {
	return Message{Role: RoleUser, Text: text, CreatedAt: time.Now().UTC()}
}

// NewAssistantMessage builds an assistant transcript entry authored by agent.
func NewAssistantMessage(agent, text string) Message {
	return Message{Role: RoleAssistant, Author: agent, Text: text, CreatedAt: time.Now().UTC()}
}
