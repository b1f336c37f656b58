//go:build sqlite

package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"parley/internal/domain"
	"parley/internal/storage"
)

const messageColumns = `seq, id, conversation_id, role, content, created_at`

// AppendMessage persists a new message and bumps the conversation's
// updated_at in one transaction.
func (s *Store) AppendMessage(ctx context.Context, conversationID, role, content string) (domain.Message, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Message{}, err
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT 1 FROM conversations WHERE id = ?`, conversationID).Scan(&exists); err != nil {
		if err == sql.ErrNoRows {
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
	res, err := tx.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		msg.ID, msg.ConversationID, msg.Role, msg.Content, formatTime(msg.CreatedAt),
	)
	if err != nil {
		return domain.Message{}, err
	}
	msg.Seq, _ = res.LastInsertId()

	if _, err := tx.ExecContext(ctx, `UPDATE conversations SET updated_at = ? WHERE id = ?`,
		formatTime(msg.CreatedAt), conversationID); err != nil {
		return domain.Message{}, err
	}

	if err := tx.Commit(); err != nil {
		return domain.Message{}, err
	}
	return msg, nil
}

// ListMessages returns messages in ascending order; with limit > 0, the most
// recent limit messages (still ascending).
func (s *Store) ListMessages(ctx context.Context, conversationID string, limit int) ([]domain.Message, error) {
	var exists int
	if err := s.db.QueryRowContext(ctx, `SELECT 1 FROM conversations WHERE id = ?`, conversationID).Scan(&exists); err != nil {
		if err == sql.ErrNoRows {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}

	query := `SELECT ` + messageColumns + ` FROM messages WHERE conversation_id = ? ORDER BY created_at ASC, seq ASC`
	args := []any{conversationID}
	if limit > 0 {
		query = `SELECT ` + messageColumns + ` FROM (
			SELECT ` + messageColumns + ` FROM messages WHERE conversation_id = ? ORDER BY created_at DESC, seq DESC LIMIT ?
		) ORDER BY created_at ASC, seq ASC`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []domain.Message{}
	for rows.Next() {
		msg, err := scanMessage(rows.Scan)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// GetMessage returns a message by ID.
func (s *Store) GetMessage(ctx context.Context, id string) (domain.Message, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = ?`, id)
	msg, err := scanMessage(row.Scan)
	if err == sql.ErrNoRows {
		return domain.Message{}, storage.ErrNotFound
	}
	return msg, err
}

// LatestMessage returns the last message of a conversation.
func (s *Store) LatestMessage(ctx context.Context, conversationID string) (domain.Message, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE conversation_id = ? ORDER BY created_at DESC, seq DESC LIMIT 1`,
		conversationID,
	)
	msg, err := scanMessage(row.Scan)
	if err == sql.ErrNoRows {
		return domain.Message{}, storage.ErrNotFound
	}
	return msg, err
}

// UpdateMessageContent replaces a message's content in place.
func (s *Store) UpdateMessageContent(ctx context.Context, id, content string) (domain.Message, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE messages SET content = ? WHERE id = ?`, content, id)
	if err != nil {
		return domain.Message{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.Message{}, storage.ErrNotFound
	}
	return s.GetMessage(ctx, id)
}

// DeleteMessagesFrom removes every message with seq >= fromSeq.
func (s *Store) DeleteMessagesFrom(ctx context.Context, conversationID string, fromSeq int64) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM messages WHERE conversation_id = ? AND seq >= ?`,
		conversationID, fromSeq,
	)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// scanMessage decodes one message row from a Scan function.
func scanMessage(scan func(dest ...any) error) (domain.Message, error) {
	var msg domain.Message
	var createdAt string
	if err := scan(&msg.Seq, &msg.ID, &msg.ConversationID, &msg.Role, &msg.Content, &createdAt); err != nil {
		return domain.Message{}, err
	}
	msg.CreatedAt = parseTime(createdAt)
	return msg, nil
}
