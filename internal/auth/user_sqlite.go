//go:build sqlite

package auth

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteUserStore is a SQLite-backed implementation of UserStore.
type SQLiteUserStore struct {
	db *sql.DB
}

// NewSQLiteUserStore creates a new SQLite-backed user store. The users table
// is created by the main store's migrations; use the same DSN.
func NewSQLiteUserStore(dsn string) (*SQLiteUserStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set pragmas: %w", err)
	}
	return &SQLiteUserStore{db: db}, nil
}

// NewSQLiteUserStoreFromDB creates a store using an existing DB connection.
func NewSQLiteUserStoreFromDB(db *sql.DB) *SQLiteUserStore {
	return &SQLiteUserStore{db: db}
}

func (s *SQLiteUserStore) Close() error { return s.db.Close() }

func (s *SQLiteUserStore) Create(ctx context.Context, user *User) error {
	if user == nil {
		return ErrUserNotFound
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, display_name, role, password_hash, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		user.ID, user.Username, user.DisplayName, string(user.Role),
		user.PasswordHash, boolToInt(user.IsActive),
		user.CreatedAt.Format(time.RFC3339Nano), user.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrUserExists
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *SQLiteUserStore) GetByID(ctx context.Context, id string) (*User, error) {
	return s.getOne(ctx, `SELECT id, username, display_name, role, password_hash, is_active, created_at, updated_at, last_login_at FROM users WHERE id = ?`, id)
}

func (s *SQLiteUserStore) GetByUsername(ctx context.Context, username string) (*User, error) {
	return s.getOne(ctx, `SELECT id, username, display_name, role, password_hash, is_active, created_at, updated_at, last_login_at FROM users WHERE username = ? COLLATE NOCASE`, username)
}

func (s *SQLiteUserStore) getOne(ctx context.Context, query string, arg any) (*User, error) {
	row := s.db.QueryRowContext(ctx, query, arg)
	u, err := scanUser(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	return u, nil
}

func (s *SQLiteUserStore) Update(ctx context.Context, user *User) error {
	if user == nil {
		return ErrUserNotFound
	}
	user.UpdatedAt = time.Now().UTC()
	var lastLogin sql.NullString
	if user.LastLoginAt != nil {
		lastLogin = sql.NullString{String: user.LastLoginAt.Format(time.RFC3339Nano), Valid: true}
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET display_name = ?, role = ?, password_hash = ?, is_active = ?, updated_at = ?, last_login_at = ?
		WHERE id = ?
	`,
		user.DisplayName, string(user.Role), user.PasswordHash, boolToInt(user.IsActive),
		user.UpdatedAt.Format(time.RFC3339Nano), lastLogin, user.ID,
	)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *SQLiteUserStore) List(ctx context.Context) ([]*User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, username, display_name, role, password_hash, is_active, created_at, updated_at, last_login_at FROM users ORDER BY username ASC`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var out []*User
	for rows.Next() {
		u, err := scanUser(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// scanUser decodes one user row from a Scan function.
func scanUser(scan func(dest ...any) error) (*User, error) {
	var u User
	var role, createdAt, updatedAt string
	var isActive int
	var lastLogin sql.NullString
	if err := scan(&u.ID, &u.Username, &u.DisplayName, &role, &u.PasswordHash, &isActive, &createdAt, &updatedAt, &lastLogin); err != nil {
		return nil, err
	}
	u.Role = Role(role)
	u.IsActive = isActive != 0
	u.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	u.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	if lastLogin.Valid {
		t, err := time.Parse(time.RFC3339Nano, lastLogin.String)
		if err == nil {
			u.LastLoginAt = &t
		}
	}
	return &u, nil
}
