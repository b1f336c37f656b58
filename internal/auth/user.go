// Package auth provides local user accounts and sessions for parley.
package auth

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"
)

// User errors.
var (
	ErrUserNotFound    = errors.New("user not found")
	ErrUserExists      = errors.New("user already exists")
	ErrInvalidPassword = errors.New("invalid password")
	ErrUserDisabled    = errors.New("user account is disabled")
)

// Role is a coarse account role.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// User represents a local user account. Users are the principals that own
// conversations.
type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	DisplayName  string     `json:"display_name,omitempty"`
	Role         Role       `json:"role"`
	PasswordHash []byte     `json:"-"` // bcrypt hash, never serialized
	IsActive     bool       `json:"is_active"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
}

// copyUser creates a deep copy of a User.
func copyUser(u *User) *User {
	if u == nil {
		return nil
	}
	cpy := *u
	if u.PasswordHash != nil {
		cpy.PasswordHash = make([]byte, len(u.PasswordHash))
		copy(cpy.PasswordHash, u.PasswordHash)
	}
	if u.LastLoginAt != nil {
		t := *u.LastLoginAt
		cpy.LastLoginAt = &t
	}
	return &cpy
}

// UserStore defines the interface for user persistence.
type UserStore interface {
	// Create stores a new user. Fails with ErrUserExists on a duplicate
	// username.
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user by ID. Returns nil, nil if not found.
	GetByID(ctx context.Context, id string) (*User, error)

	// GetByUsername retrieves a user by username (case-insensitive).
	// Returns nil, nil if not found.
	GetByUsername(ctx context.Context, username string) (*User, error)

	// Update replaces a stored user's mutable fields.
	Update(ctx context.Context, user *User) error

	// List returns all users.
	List(ctx context.Context) ([]*User, error)
}

// MemoryUserStore is an in-memory implementation of UserStore.
type MemoryUserStore struct {
	mu    sync.RWMutex
	users map[string]*User // keyed by user ID
}

// NewMemoryUserStore creates an empty in-memory user store.
func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{users: make(map[string]*User)}
}

func (s *MemoryUserStore) Create(_ context.Context, user *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Username, user.Username) {
			return ErrUserExists
		}
	}
	s.users[user.ID] = copyUser(user)
	return nil
}

func (s *MemoryUserStore) GetByID(_ context.Context, id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyUser(s.users[id]), nil
}

func (s *MemoryUserStore) GetByUsername(_ context.Context, username string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Username, username) {
			return copyUser(u), nil
		}
	}
	return nil, nil
}

func (s *MemoryUserStore) Update(_ context.Context, user *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; !ok {
		return ErrUserNotFound
	}
	user.UpdatedAt = time.Now().UTC()
	s.users[user.ID] = copyUser(user)
	return nil
}

func (s *MemoryUserStore) List(_ context.Context) ([]*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, copyUser(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}
