// Package domain defines the core types shared across parley.
package domain

import (
	"time"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// DefaultConversationTitle is assigned when a conversation is created
// without an explicit title.
const DefaultConversationTitle = "New Chat"

// Conversation represents an assistant chat session owned by a single user.
// Ownership is fixed at creation and never transfers.
type Conversation struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message is a single entry in a conversation.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"` // "user" or "assistant"
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
	// Seq is a store-assigned monotonically increasing position within the
	// conversation. It breaks created_at ties so reads see a total order.
	Seq int64 `json:"seq"`
}

// ConversationWithMessages is a conversation with its full message history.
type ConversationWithMessages struct {
	Conversation
	Messages []Message `json:"messages"`
}

// CreateConversationRequest is the input for the create-conversation endpoint.
type CreateConversationRequest struct {
	Title string `json:"title"`
}

// UpdateConversationRequest is the input for renaming a conversation.
type UpdateConversationRequest struct {
	Title string `json:"title"`
}

// SendMessageRequest is the input for the send-message endpoint.
type SendMessageRequest struct {
	Content string `json:"content"`
}

// SendMessageResponse carries the persisted user message and the assistant
// reply produced for it.
type SendMessageResponse struct {
	UserMessage      Message `json:"user_message"`
	AssistantMessage Message `json:"assistant_message"`
}

// EditMessageRequest is the input for editing the latest user message.
type EditMessageRequest struct {
	Content string `json:"content"`
}
