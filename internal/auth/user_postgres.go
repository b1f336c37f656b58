//go:build postgres

package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresUserStore is a PostgreSQL-backed implementation of UserStore.
type PostgresUserStore struct {
	pool *pgxpool.Pool
}

// NewPostgresUserStore creates a new PostgreSQL-backed user store. The users
// table is created by the main store's migrations; use the same connection
// string.
func NewPostgresUserStore(connStr string) (*PostgresUserStore, error) {
	pool, err := pgxpool.New(context.Background(), connStr)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return &PostgresUserStore{pool: pool}, nil
}

// NewPostgresUserStoreFromPool creates a store using an existing pool.
func NewPostgresUserStoreFromPool(pool *pgxpool.Pool) *PostgresUserStore {
	return &PostgresUserStore{pool: pool}
}

func (s *PostgresUserStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresUserStore) Create(ctx context.Context, user *User) error {
	if user == nil {
		return ErrUserNotFound
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, username, display_name, role, password_hash, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		user.ID, user.Username, user.DisplayName, string(user.Role),
		user.PasswordHash, user.IsActive, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate") || strings.Contains(err.Error(), "unique") {
			return ErrUserExists
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

const pgUserColumns = `id, username, display_name, role, password_hash, is_active, created_at, updated_at, last_login_at`

func (s *PostgresUserStore) GetByID(ctx context.Context, id string) (*User, error) {
	return s.getOne(ctx, `SELECT `+pgUserColumns+` FROM users WHERE id = $1`, id)
}

func (s *PostgresUserStore) GetByUsername(ctx context.Context, username string) (*User, error) {
	return s.getOne(ctx, `SELECT `+pgUserColumns+` FROM users WHERE LOWER(username) = LOWER($1)`, username)
}

func (s *PostgresUserStore) getOne(ctx context.Context, query string, arg any) (*User, error) {
	var u User
	var role string
	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&u.ID, &u.Username, &u.DisplayName, &role, &u.PasswordHash,
		&u.IsActive, &u.CreatedAt, &u.UpdatedAt, &u.LastLoginAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	u.Role = Role(role)
	return &u, nil
}

func (s *PostgresUserStore) Update(ctx context.Context, user *User) error {
	if user == nil {
		return ErrUserNotFound
	}
	user.UpdatedAt = time.Now().UTC()
	res, err := s.pool.Exec(ctx, `
		UPDATE users SET display_name = $1, role = $2, password_hash = $3, is_active = $4, updated_at = $5, last_login_at = $6
		WHERE id = $7
	`,
		user.DisplayName, string(user.Role), user.PasswordHash, user.IsActive,
		user.UpdatedAt, user.LastLoginAt, user.ID,
	)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if res.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *PostgresUserStore) List(ctx context.Context) ([]*User, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+pgUserColumns+` FROM users ORDER BY username ASC`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var out []*User
	for rows.Next() {
		var u User
		var role string
		if err := rows.Scan(
			&u.ID, &u.Username, &u.DisplayName, &role, &u.PasswordHash,
			&u.IsActive, &u.CreatedAt, &u.UpdatedAt, &u.LastLoginAt,
		); err != nil {
			return nil, err
		}
		u.Role = Role(role)
		out = append(out, &u)
	}
	return out, rows.Err()
}
