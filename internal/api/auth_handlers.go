package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"parley/internal/auth"
)

type setupRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type userResponse struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	Role        auth.Role `json:"role"`
	CreatedAt   time.Time `json:"created_at"`
}

func toUserResponse(u *auth.User) userResponse {
	return userResponse{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		Role:        u.Role,
		CreatedAt:   u.CreatedAt,
	}
}

const minPasswordLength = 8

// handleSetup creates the initial admin account. It only works while the user
// store is empty; afterwards it always returns 409.
func (s *Server) handleSetup(w http.ResponseWriter, r *http.Request) {
	existing, err := s.userStore.List(r.Context())
	if err != nil {
		s.writeErr(r.Context(), w, http.StatusInternalServerError, "internal error", err.Error())
		return
	}
	if len(existing) > 0 {
		s.writeErr(r.Context(), w, http.StatusConflict, "setup already completed", "")
		return
	}

	var req setupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErr(r.Context(), w, http.StatusBadRequest, "invalid JSON body", err.Error())
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" {
		s.writeErr(r.Context(), w, http.StatusBadRequest, "username is required", "")
		return
	}
	if len(req.Password) < minPasswordLength {
		s.writeErr(r.Context(), w, http.StatusBadRequest, "password must be at least 8 characters", "")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.writeErr(r.Context(), w, http.StatusInternalServerError, "internal error", err.Error())
		return
	}
	now := time.Now().UTC()
	user := &auth.User{
		ID:           uuid.New().String(),
		Username:     req.Username,
		DisplayName:  req.DisplayName,
		Role:         auth.RoleAdmin,
		PasswordHash: hash,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.userStore.Create(r.Context(), user); err != nil {
		s.writeErr(r.Context(), w, http.StatusConflict, "user already exists", "")
		return
	}
	s.logger.InfoContext(r.Context(), "initial admin created", "username", user.Username)
	writeJSON(w, http.StatusCreated, toUserResponse(user))
}

// handleLogin verifies credentials and issues a session cookie. Failures are
// reported uniformly so usernames cannot be enumerated.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErr(r.Context(), w, http.StatusBadRequest, "invalid JSON body", err.Error())
		return
	}

	user, err := s.userStore.GetByUsername(r.Context(), strings.TrimSpace(req.Username))
	if err != nil {
		s.writeErr(r.Context(), w, http.StatusInternalServerError, "internal error", err.Error())
		return
	}
	if user == nil || !user.IsActive {
		s.writeErr(r.Context(), w, http.StatusUnauthorized, "invalid credentials", "")
		return
	}
	if err := auth.VerifyPassword(req.Password, user.PasswordHash); err != nil {
		s.logger.WarnContext(r.Context(), "failed login attempt", "username", req.Username, "client", clientKey(r))
		s.writeErr(r.Context(), w, http.StatusUnauthorized, "invalid credentials", "")
		return
	}

	sid, err := auth.NewSessionID()
	if err != nil {
		s.writeErr(r.Context(), w, http.StatusInternalServerError, "internal error", err.Error())
		return
	}
	now := time.Now().UTC()
	sess := &auth.Session{
		ID:        sid,
		UserID:    user.ID,
		Role:      user.Role,
		CreatedAt: now,
		ExpiresAt: now.Add(auth.DefaultSessionDuration),
	}
	if err := s.sessionStore.Create(r.Context(), sess); err != nil {
		s.writeErr(r.Context(), w, http.StatusInternalServerError, "internal error", err.Error())
		return
	}

	user.LastLoginAt = &now
	user.UpdatedAt = now
	if err := s.userStore.Update(r.Context(), user); err != nil {
		s.logger.WarnContext(r.Context(), "failed to record last login", "error", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sid,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
	})
	s.logger.InfoContext(r.Context(), "login", "username", user.Username)
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// handleLogout invalidates the current session.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := auth.SessionFromContext(r.Context())
	if sess != nil {
		if err := s.sessionStore.Delete(r.Context(), sess.ID); err != nil {
			s.logger.WarnContext(r.Context(), "session delete failed", "error", err)
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

// handleMe returns the authenticated user.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		s.writeErr(r.Context(), w, http.StatusUnauthorized, "authentication required", "")
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}
