// Package storage defines the durable store contracts for conversations and
// messages, plus in-memory implementations used for quick start and tests.
package storage

import (
	"context"

	"parley/internal/domain"
)

// ConversationStore provides storage operations for conversations.
type ConversationStore interface {
	// CreateConversation persists a new conversation.
	CreateConversation(ctx context.Context, conv domain.Conversation) error

	// GetConversation returns the conversation row (no messages).
	GetConversation(ctx context.Context, id string) (domain.Conversation, error)

	// ListConversations returns all conversations owned by ownerID,
	// ordered by updated_at desc.
	ListConversations(ctx context.Context, ownerID string) ([]domain.Conversation, error)

	// UpdateConversationTitle renames a conversation.
	UpdateConversationTitle(ctx context.Context, id, title string) (domain.Conversation, error)

	// DeleteConversation removes a conversation and its messages.
	DeleteConversation(ctx context.Context, id string) error

	// DeleteConversationsByOwner removes every conversation owned by
	// ownerID, with messages. Returns the number of conversations removed.
	DeleteConversationsByOwner(ctx context.Context, ownerID string) (int, error)
}

// MessageStore provides storage operations for ordered conversation messages.
// The store assigns message IDs, timestamps, and sequence positions; the
// (created_at, seq) pair defines a stable total order per conversation.
type MessageStore interface {
	// AppendMessage persists a new message at the end of the conversation
	// and bumps the conversation's updated_at.
	AppendMessage(ctx context.Context, conversationID, role, content string) (domain.Message, error)

	// ListMessages returns messages in ascending order. When limit > 0,
	// only the most recent limit messages are returned (still ascending).
	ListMessages(ctx context.Context, conversationID string, limit int) ([]domain.Message, error)

	// GetMessage returns a message by ID, or ErrNotFound.
	GetMessage(ctx context.Context, id string) (domain.Message, error)

	// LatestMessage returns the last message of a conversation, or
	// ErrNotFound when the conversation has no messages.
	LatestMessage(ctx context.Context, conversationID string) (domain.Message, error)

	// UpdateMessageContent replaces a message's content in place. ID, role,
	// and position are unchanged.
	UpdateMessageContent(ctx context.Context, id, content string) (domain.Message, error)

	// DeleteMessagesFrom removes every message in the conversation with
	// seq >= fromSeq (inclusive). Returns the number removed.
	DeleteMessagesFrom(ctx context.Context, conversationID string, fromSeq int64) (int, error)
}

// Store is the combined durable store consumed by the chat core.
type Store interface {
	ConversationStore
	MessageStore

	// Ping checks connectivity to the backing store.
	Ping(ctx context.Context) error

	// Close releases resources held by the store.
	Close() error
}
