//go:build postgres

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"parley/internal/domain"
	"parley/internal/storage"
)

const messageColumns = `seq, id, conversation_id, role, content, created_at`

// AppendMessage persists a new message and bumps the conversation's
// updated_at in one transaction.
func (s *Store) AppendMessage(ctx context.Context, conversationID, role, content string) (domain.Message, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.Message{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var exists int
	if err := tx.QueryRow(ctx, `SELECT 1 FROM conversations WHERE id = $1`, conversationID).Scan(&exists); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Message{}, storage.ErrNotFound
		}
		return domain.Message{}, err
	}

	msg := domain.Message{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		CreatedAt:      time.Now().UTC(),
	}
	if err := tx.QueryRow(ctx,
		`INSERT INTO messages (id, conversation_id, role, content, created_at) VALUES ($1, $2, $3, $4, $5) RETURNING seq`,
		msg.ID, msg.ConversationID, msg.Role, msg.Content, msg.CreatedAt,
	).Scan(&msg.Seq); err != nil {
		return domain.Message{}, err
	}

	if _, err := tx.Exec(ctx, `UPDATE conversations SET updated_at = $1 WHERE id = $2`, msg.CreatedAt, conversationID); err != nil {
		return domain.Message{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Message{}, err
	}
	return msg, nil
}

// ListMessages returns messages in ascending order; with limit > 0, the most
// recent limit messages (still ascending).
func (s *Store) ListMessages(ctx context.Context, conversationID string, limit int) ([]domain.Message, error) {
	var exists int
	if err := s.pool.QueryRow(ctx, `SELECT 1 FROM conversations WHERE id = $1`, conversationID).Scan(&exists); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}

	query := `SELECT ` + messageColumns + ` FROM messages WHERE conversation_id = $1 ORDER BY created_at ASC, seq ASC`
	args := []any{conversationID}
	if limit > 0 {
		query = `SELECT ` + messageColumns + ` FROM (
			SELECT ` + messageColumns + ` FROM messages WHERE conversation_id = $1 ORDER BY created_at DESC, seq DESC LIMIT $2
		) recent ORDER BY created_at ASC, seq ASC`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []domain.Message{}
	for rows.Next() {
		var msg domain.Message
		if err := rows.Scan(&msg.Seq, &msg.ID, &msg.ConversationID, &msg.Role, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// GetMessage returns a message by ID.
func (s *Store) GetMessage(ctx context.Context, id string) (domain.Message, error) {
	var msg domain.Message
	err := s.pool.QueryRow(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = $1`, id).
		Scan(&msg.Seq, &msg.ID, &msg.ConversationID, &msg.Role, &msg.Content, &msg.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Message{}, storage.ErrNotFound
		}
		return domain.Message{}, err
	}
	return msg, nil
}

// LatestMessage returns the last message of a conversation.
func (s *Store) LatestMessage(ctx context.Context, conversationID string) (domain.Message, error) {
	var msg domain.Message
	err := s.pool.QueryRow(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE conversation_id = $1 ORDER BY created_at DESC, seq DESC LIMIT 1`,
		conversationID,
	).Scan(&msg.Seq, &msg.ID, &msg.ConversationID, &msg.Role, &msg.Content, &msg.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Message{}, storage.ErrNotFound
		}
		return domain.Message{}, err
	}
	return msg, nil
}

// UpdateMessageContent replaces a message's content in place.
func (s *Store) UpdateMessageContent(ctx context.Context, id, content string) (domain.Message, error) {
	var msg domain.Message
	err := s.pool.QueryRow(ctx,
		`UPDATE messages SET content = $1 WHERE id = $2 RETURNING `+messageColumns,
		content, id,
	).Scan(&msg.Seq, &msg.ID, &msg.ConversationID, &msg.Role, &msg.Content, &msg.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Message{}, storage.ErrNotFound
		}
		return domain.Message{}, err
	}
	return msg, nil
}

// DeleteMessagesFrom removes every message with seq >= fromSeq.
func (s *Store) DeleteMessagesFrom(ctx context.Context, conversationID string, fromSeq int64) (int, error) {
	res, err := s.pool.Exec(ctx,
		`DELETE FROM messages WHERE conversation_id = $1 AND seq >= $2`,
		conversationID, fromSeq,
	)
	if err != nil {
		return 0, err
	}
	return int(res.RowsAffected()), nil
}
