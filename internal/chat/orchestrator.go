package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"parley/internal/domain"
	"parley/internal/observability"
	"parley/internal/storage"
)

// MessageOrchestrator composes ownership checks, the message store, and the
// generation coordinator into the externally visible chat operations.
type MessageOrchestrator struct {
	convs        *ConversationService
	store        storage.Store
	coord        *GenerationCoordinator
	systemPrompt string
	logger       observability.Logger
}

// NewMessageOrchestrator creates a MessageOrchestrator. An empty
// systemPrompt selects the built-in default.
func NewMessageOrchestrator(convs *ConversationService, store storage.Store, coord *GenerationCoordinator, systemPrompt string, logger observability.Logger) *MessageOrchestrator {
	if systemPrompt == "" {
		systemPrompt = defaultSystemPrompt
	}
	if logger == nil {
		logger = observability.NewLogger(observability.DefaultConfig())
	}
	return &MessageOrchestrator{
		convs:        convs,
		store:        store,
		coord:        coord,
		systemPrompt: systemPrompt,
		logger:       logger.WithComponent("orchestrator"),
	}
}

// SendMessage persists the user message, runs a generation over the
// conversation's recent history, and persists the assistant reply.
//
// The user message is never rolled back: a cancelled send returns ErrAborted
// and a failed generation returns ErrGenerationFailed, but in both cases the
// user's text stays in history.
func (o *MessageOrchestrator) SendMessage(ctx context.Context, conversationID, principalID, content string) (*domain.SendMessageResponse, error) {
	if err := o.convs.AssertOwnership(ctx, conversationID, principalID); err != nil {
		return nil, err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("message content required: %w", storage.ErrValidation)
	}

	userMsg, err := o.store.AppendMessage(ctx, conversationID, domain.RoleUser, content)
	if err != nil {
		return nil, fmt.Errorf("persist user message: %w", err)
	}
	o.maybeTitle(ctx, conversationID, content)

	text, err := o.coord.Run(ctx, conversationID, historyContext(o.store, conversationID, o.systemPrompt))
	if err != nil {
		if errors.Is(err, ErrCancelled) {
			return nil, ErrAborted
		}
		o.logger.ErrorContext(ctx, "generation failed", "conversation_id", conversationID, "error", err)
		return nil, ErrGenerationFailed
	}

	assistantMsg, err := o.store.AppendMessage(ctx, conversationID, domain.RoleAssistant, text)
	if err != nil {
		return nil, fmt.Errorf("persist assistant message: %w", err)
	}

	return &domain.SendMessageResponse{
		UserMessage:      userMsg,
		AssistantMessage: assistantMsg,
	}, nil
}

// StopGeneration cancels the in-flight generation for the conversation, if
// any. Always succeeds from the caller's perspective.
func (o *MessageOrchestrator) StopGeneration(ctx context.Context, conversationID string) {
	o.coord.Cancel(ctx, conversationID)
}

// EditMessage replaces the content of the latest user message in place.
// Only the most recent message of a conversation may be edited, and only if
// its role is "user".
func (o *MessageOrchestrator) EditMessage(ctx context.Context, messageID, principalID, content string) (domain.Message, error) {
	msg, err := o.store.GetMessage(ctx, messageID)
	if err != nil {
		return domain.Message{}, err
	}
	if err := o.convs.AssertOwnership(ctx, msg.ConversationID, principalID); err != nil {
		return domain.Message{}, err
	}
	if msg.Role != domain.RoleUser {
		return domain.Message{}, ErrForbidden
	}
	latest, err := o.store.LatestMessage(ctx, msg.ConversationID)
	if err != nil {
		return domain.Message{}, fmt.Errorf("find latest message: %w", err)
	}
	if latest.ID != msg.ID {
		return domain.Message{}, ErrNotLast
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return domain.Message{}, fmt.Errorf("message content required: %w", storage.ErrValidation)
	}
	return o.store.UpdateMessageContent(ctx, messageID, content)
}

// DeleteMessagesAfter removes the referenced message and every message
// chronologically after it in the conversation. Returns the number removed.
func (o *MessageOrchestrator) DeleteMessagesAfter(ctx context.Context, conversationID, principalID, messageID string) (int, error) {
	if err := o.convs.AssertOwnership(ctx, conversationID, principalID); err != nil {
		return 0, err
	}
	msg, err := o.store.GetMessage(ctx, messageID)
	if err != nil {
		return 0, err
	}
	if msg.ConversationID != conversationID {
		return 0, ErrInvalidMessage
	}
	n, err := o.store.DeleteMessagesFrom(ctx, conversationID, msg.Seq)
	if err != nil {
		return 0, fmt.Errorf("delete messages: %w", err)
	}
	o.logger.InfoContext(ctx, "messages deleted", "conversation_id", conversationID, "count", n)
	return n, nil
}

// ListMessages returns the conversation's messages in order after an
// ownership check.
func (o *MessageOrchestrator) ListMessages(ctx context.Context, conversationID, principalID string) ([]domain.Message, error) {
	if err := o.convs.AssertOwnership(ctx, conversationID, principalID); err != nil {
		return nil, err
	}
	return o.store.ListMessages(ctx, conversationID, 0)
}

// maybeTitle sets a derived title when the conversation still carries the
// default one. Best-effort; failures are logged and ignored.
func (o *MessageOrchestrator) maybeTitle(ctx context.Context, conversationID, content string) {
	conv, err := o.store.GetConversation(ctx, conversationID)
	if err != nil || conv.Title != domain.DefaultConversationTitle {
		return
	}
	if _, err := o.store.UpdateConversationTitle(ctx, conversationID, titleFromContent(content)); err != nil {
		o.logger.DebugContext(ctx, "title update failed", "conversation_id", conversationID, "error", err)
	}
}
