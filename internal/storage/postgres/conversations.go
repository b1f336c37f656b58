//go:build postgres

package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"parley/internal/domain"
	"parley/internal/storage"
)

// CreateConversation persists a new conversation.
func (s *Store) CreateConversation(ctx context.Context, conv domain.Conversation) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO conversations (id, owner_id, title, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		conv.ID, conv.OwnerID, conv.Title, conv.CreatedAt, conv.UpdatedAt,
	)
	return storage.WrapIfConflict(err)
}

// GetConversation returns the conversation row.
func (s *Store) GetConversation(ctx context.Context, id string) (domain.Conversation, error) {
	var conv domain.Conversation
	err := s.pool.QueryRow(ctx,
		`SELECT id, owner_id, title, created_at, updated_at FROM conversations WHERE id = $1`, id,
	).Scan(&conv.ID, &conv.OwnerID, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Conversation{}, storage.ErrNotFound
		}
		return domain.Conversation{}, err
	}
	return conv, nil
}

// ListConversations returns the owner's conversations ordered by updated_at desc.
func (s *Store) ListConversations(ctx context.Context, ownerID string) ([]domain.Conversation, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, owner_id, title, created_at, updated_at FROM conversations WHERE owner_id = $1 ORDER BY updated_at DESC`, ownerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.Conversation{}
	for rows.Next() {
		var conv domain.Conversation
		if err := rows.Scan(&conv.ID, &conv.OwnerID, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, conv)
	}
	return result, rows.Err()
}

// UpdateConversationTitle renames a conversation.
func (s *Store) UpdateConversationTitle(ctx context.Context, id, title string) (domain.Conversation, error) {
	var conv domain.Conversation
	err := s.pool.QueryRow(ctx,
		`UPDATE conversations SET title = $1 WHERE id = $2 RETURNING id, owner_id, title, created_at, updated_at`,
		title, id,
	).Scan(&conv.ID, &conv.OwnerID, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Conversation{}, storage.ErrNotFound
		}
		return domain.Conversation{}, err
	}
	return conv, nil
}

// DeleteConversation removes a conversation; its messages go via CASCADE.
func (s *Store) DeleteConversation(ctx context.Context, id string) error {
	res, err := s.pool.Exec(ctx, `DELETE FROM conversations WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// DeleteConversationsByOwner removes every conversation owned by ownerID.
func (s *Store) DeleteConversationsByOwner(ctx context.Context, ownerID string) (int, error) {
	res, err := s.pool.Exec(ctx, `DELETE FROM conversations WHERE owner_id = $1`, ownerID)
	if err != nil {
		return 0, err
	}
	return int(res.RowsAffected()), nil
}
