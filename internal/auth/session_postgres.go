//go:build postgres

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresSessionStore is a PostgreSQL-backed implementation of SessionStore.
type PostgresSessionStore struct {
	pool *pgxpool.Pool
}

// NewPostgresSessionStore creates a new PostgreSQL-backed session store. The
// sessions table is created by the main store's migrations; use the same
// connection string.
func NewPostgresSessionStore(connStr string) (*PostgresSessionStore, error) {
	pool, err := pgxpool.New(context.Background(), connStr)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return &PostgresSessionStore{pool: pool}, nil
}

// NewPostgresSessionStoreFromPool creates a store using an existing pool.
func NewPostgresSessionStoreFromPool(pool *pgxpool.Pool) *PostgresSessionStore {
	return &PostgresSessionStore{pool: pool}
}

func (s *PostgresSessionStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresSessionStore) Create(ctx context.Context, session *Session) error {
	if session == nil {
		return ErrSessionNotFound
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sessions (id, user_id, role, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
	`,
		session.ID, session.UserID, string(session.Role), session.CreatedAt, session.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *PostgresSessionStore) Get(ctx context.Context, id string) (*Session, error) {
	var sess Session
	var role string
	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, role, created_at, expires_at FROM sessions WHERE id = $1`, id,
	).Scan(&sess.ID, &sess.UserID, &role, &sess.CreatedAt, &sess.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query session: %w", err)
	}
	sess.Role = Role(role)
	return &sess, nil
}

func (s *PostgresSessionStore) Delete(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return err
}

func (s *PostgresSessionStore) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID)
	return err
}

func (s *PostgresSessionStore) Cleanup(ctx context.Context) (int, error) {
	res, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at < $1`, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	return int(res.RowsAffected()), nil
}
