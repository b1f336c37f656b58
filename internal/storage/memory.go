package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"parley/internal/domain"
)

// MemoryStore is an in-memory implementation of Store. It is thread-safe and
// suitable for development and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	convs    map[string]domain.Conversation
	messages map[string][]domain.Message // keyed by conversation ID, append order
	nextSeq  map[string]int64
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		convs:    make(map[string]domain.Conversation),
		messages: make(map[string][]domain.Message),
		nextSeq:  make(map[string]int64),
	}
}

func (m *MemoryStore) CreateConversation(_ context.Context, conv domain.Conversation) error {
	if conv.ID == "" || conv.OwnerID == "" {
		return fmt.Errorf("id and owner_id required: %w", ErrValidation)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.convs[conv.ID]; ok {
		return fmt.Errorf("conversation %s: %w", conv.ID, ErrConflict)
	}
	m.convs[conv.ID] = conv
	m.messages[conv.ID] = []domain.Message{}
	m.nextSeq[conv.ID] = 1
	return nil
}

func (m *MemoryStore) GetConversation(_ context.Context, id string) (domain.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	conv, ok := m.convs[id]
	if !ok {
		return domain.Conversation{}, ErrNotFound
	}
	return conv, nil
}

func (m *MemoryStore) ListConversations(_ context.Context, ownerID string) ([]domain.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]domain.Conversation, 0)
	for _, c := range m.convs {
		if c.OwnerID == ownerID {
			result = append(result, c)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].UpdatedAt.After(result[j].UpdatedAt)
	})
	return result, nil
}

func (m *MemoryStore) UpdateConversationTitle(_ context.Context, id, title string) (domain.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.convs[id]
	if !ok {
		return domain.Conversation{}, ErrNotFound
	}
	conv.Title = title
	conv.UpdatedAt = time.Now().UTC()
	m.convs[id] = conv
	return conv, nil
}

func (m *MemoryStore) DeleteConversation(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.convs[id]; !ok {
		return ErrNotFound
	}
	delete(m.convs, id)
	delete(m.messages, id)
	delete(m.nextSeq, id)
	return nil
}

func (m *MemoryStore) DeleteConversationsByOwner(_ context.Context, ownerID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, c := range m.convs {
		if c.OwnerID != ownerID {
			continue
		}
		delete(m.convs, id)
		delete(m.messages, id)
		delete(m.nextSeq, id)
		n++
	}
	return n, nil
}

func (m *MemoryStore) AppendMessage(_ context.Context, conversationID, role, content string) (domain.Message, error) {
	if role != domain.RoleUser && role != domain.RoleAssistant && role != domain.RoleSystem {
		return domain.Message{}, fmt.Errorf("invalid role %q: %w", role, ErrValidation)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.convs[conversationID]
	if !ok {
		return domain.Message{}, ErrNotFound
	}

	now := time.Now().UTC()
	msg := domain.Message{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		CreatedAt:      now,
		Seq:            m.nextSeq[conversationID],
	}
	m.nextSeq[conversationID]++
	m.messages[conversationID] = append(m.messages[conversationID], msg)

	conv.UpdatedAt = now
	m.convs[conversationID] = conv
	return msg, nil
}

func (m *MemoryStore) ListMessages(_ context.Context, conversationID string, limit int) ([]domain.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.convs[conversationID]; !ok {
		return nil, ErrNotFound
	}
	msgs := m.messages[conversationID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]domain.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (m *MemoryStore) GetMessage(_ context.Context, id string) (domain.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, msgs := range m.messages {
		for _, msg := range msgs {
			if msg.ID == id {
				return msg, nil
			}
		}
	}
	return domain.Message{}, ErrNotFound
}

func (m *MemoryStore) LatestMessage(_ context.Context, conversationID string) (domain.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	msgs := m.messages[conversationID]
	if len(msgs) == 0 {
		return domain.Message{}, ErrNotFound
	}
	return msgs[len(msgs)-1], nil
}

func (m *MemoryStore) UpdateMessageContent(_ context.Context, id, content string) (domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for convID, msgs := range m.messages {
		for i, msg := range msgs {
			if msg.ID == id {
				msg.Content = content
				m.messages[convID][i] = msg
				return msg, nil
			}
		}
	}
	return domain.Message{}, ErrNotFound
}

func (m *MemoryStore) DeleteMessagesFrom(_ context.Context, conversationID string, fromSeq int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.convs[conversationID]; !ok {
		return 0, ErrNotFound
	}
	msgs := m.messages[conversationID]
	kept := msgs[:0:0]
	deleted := 0
	for _, msg := range msgs {
		if msg.Seq < fromSeq {
			kept = append(kept, msg)
		} else {
			deleted++
		}
	}
	m.messages[conversationID] = kept
	return deleted, nil
}

func (m *MemoryStore) Ping(_ context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }
