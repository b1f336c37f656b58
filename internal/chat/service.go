// Package chat implements the conversation and generation orchestration
// core: ownership enforcement, message lifecycle invariants, and the
// cancellation protocol for in-flight generations.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"parley/internal/domain"
	"parley/internal/observability"
	"parley/internal/storage"
)

// ConversationService enforces ownership on top of the conversation store.
// AssertOwnership is the single authorization primitive of the core; every
// orchestrator operation composes on top of it.
type ConversationService struct {
	store  storage.Store
	logger observability.Logger
}

// NewConversationService creates a ConversationService.
func NewConversationService(store storage.Store, logger observability.Logger) *ConversationService {
	if logger == nil {
		logger = observability.NewLogger(observability.DefaultConfig())
	}
	return &ConversationService{store: store, logger: logger.WithComponent("conversations")}
}

// AssertOwnership fails with ErrAccessDenied when the conversation does not
// exist or is owned by someone else.
func (s *ConversationService) AssertOwnership(ctx context.Context, conversationID, principalID string) error {
	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrAccessDenied
		}
		return fmt.Errorf("lookup conversation: %w", err)
	}
	if conv.OwnerID != principalID {
		return ErrAccessDenied
	}
	return nil
}

// Create persists a new conversation owned by principalID. An empty title
// gets the default.
func (s *ConversationService) Create(ctx context.Context, principalID, title string) (domain.Conversation, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = domain.DefaultConversationTitle
	}
	now := time.Now().UTC()
	conv := domain.Conversation{
		ID:        uuid.New().String(),
		OwnerID:   principalID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateConversation(ctx, conv); err != nil {
		return domain.Conversation{}, fmt.Errorf("create conversation: %w", err)
	}
	s.logger.InfoContext(ctx, "conversation created", "conversation_id", conv.ID)
	return conv, nil
}

// Get returns the conversation after an ownership check.
func (s *ConversationService) Get(ctx context.Context, conversationID, principalID string) (domain.Conversation, error) {
	if err := s.AssertOwnership(ctx, conversationID, principalID); err != nil {
		return domain.Conversation{}, err
	}
	return s.store.GetConversation(ctx, conversationID)
}

// List returns every conversation owned by principalID, most recently
// updated first.
func (s *ConversationService) List(ctx context.Context, principalID string) ([]domain.Conversation, error) {
	return s.store.ListConversations(ctx, principalID)
}

// Rename updates the title of an owned conversation.
func (s *ConversationService) Rename(ctx context.Context, conversationID, principalID, title string) (domain.Conversation, error) {
	if err := s.AssertOwnership(ctx, conversationID, principalID); err != nil {
		return domain.Conversation{}, err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return domain.Conversation{}, fmt.Errorf("title required: %w", storage.ErrValidation)
	}
	return s.store.UpdateConversationTitle(ctx, conversationID, title)
}

// Delete removes a conversation and its messages if owned by principalID.
// Deleting a missing or non-owned conversation is a no-op success; callers
// that need not-found semantics check with AssertOwnership first.
func (s *ConversationService) Delete(ctx context.Context, conversationID, principalID string) error {
	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("lookup conversation: %w", err)
	}
	if conv.OwnerID != principalID {
		return nil
	}
	if err := s.store.DeleteConversation(ctx, conversationID); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("delete conversation: %w", err)
	}
	s.logger.InfoContext(ctx, "conversation deleted", "conversation_id", conversationID)
	return nil
}

// DeleteAll removes every conversation owned by principalID.
func (s *ConversationService) DeleteAll(ctx context.Context, principalID string) error {
	n, err := s.store.DeleteConversationsByOwner(ctx, principalID)
	if err != nil {
		return fmt.Errorf("delete conversations: %w", err)
	}
	s.logger.InfoContext(ctx, "conversations deleted", "count", n)
	return nil
}
