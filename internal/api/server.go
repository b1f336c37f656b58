// Package api exposes the chat core over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/getsentry/sentry-go"

	"parley/internal/auth"
	"parley/internal/chat"
	"parley/internal/observability"
	"parley/internal/storage"
)

type apiError struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// Server wires the chat core to HTTP routes.
type Server struct {
	mux          *http.ServeMux
	store        storage.Store
	convs        *chat.ConversationService
	orch         *chat.MessageOrchestrator
	logger       observability.Logger
	userStore    auth.UserStore
	sessionStore auth.SessionStore
}

// NewServer creates a new HTTP server with the given dependencies.
// If logger is nil, a default logger will be used.
func NewServer(mux *http.ServeMux, store storage.Store, convs *chat.ConversationService, orch *chat.MessageOrchestrator, userStore auth.UserStore, sessionStore auth.SessionStore, logger observability.Logger) *Server {
	if logger == nil {
		logger = observability.NewLogger(observability.DefaultConfig())
	}
	return &Server{
		mux:          mux,
		store:        store,
		convs:        convs,
		orch:         orch,
		logger:       logger,
		userStore:    userStore,
		sessionStore: sessionStore,
	}
}

func (s *Server) writeErr(ctx context.Context, w http.ResponseWriter, code int, msg string, detail string) {
	fields := []any{
		"status", code,
		"error", msg,
	}
	if detail != "" {
		fields = append(fields, "detail", detail)
	}
	fields = appendRequestID(ctx, fields)
	if code >= 500 {
		s.logger.ErrorContext(ctx, "request failed", fields...)
		sentry.CaptureMessage(fmt.Sprintf("HTTP %d: %s (detail: %s)", code, msg, detail))
	} else {
		s.logger.WarnContext(ctx, "request failed", fields...)
	}
	writeJSON(w, code, apiError{Error: msg, Detail: detail})
}

// writeChatErr maps a chat- or storage-layer error to the appropriate HTTP
// status code. Deterministic, caller-correctable failures surface verbatim;
// generation failures stay opaque (the cause is already logged by the
// orchestrator).
func (s *Server) writeChatErr(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chat.ErrAccessDenied):
		s.writeErr(ctx, w, http.StatusForbidden, err.Error(), "")
	case errors.Is(err, chat.ErrForbidden):
		s.writeErr(ctx, w, http.StatusForbidden, err.Error(), "")
	case errors.Is(err, chat.ErrNotLast):
		s.writeErr(ctx, w, http.StatusConflict, err.Error(), "")
	case errors.Is(err, chat.ErrInvalidMessage):
		s.writeErr(ctx, w, http.StatusBadRequest, err.Error(), "")
	case errors.Is(err, chat.ErrGenerationFailed):
		s.writeErr(ctx, w, http.StatusBadGateway, "generation failed", "")
	case errors.Is(err, storage.ErrNotFound):
		s.writeErr(ctx, w, http.StatusNotFound, "not found", "")
	case errors.Is(err, storage.ErrConflict):
		s.writeErr(ctx, w, http.StatusConflict, err.Error(), "")
	case errors.Is(err, storage.ErrValidation):
		s.writeErr(ctx, w, http.StatusBadRequest, err.Error(), "")
	default:
		s.writeErr(ctx, w, http.StatusInternalServerError, "internal error", err.Error())
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) { s.status = code; s.ResponseWriter.WriteHeader(code) }

// RegisterRoutes registers all HTTP routes. Health endpoints stay public;
// everything else requires a valid session.
func (s *Server) RegisterRoutes(loginRL Middleware) {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /readyz", s.handleReady)

	s.mux.Handle("POST /api/v1/auth/setup", http.HandlerFunc(s.handleSetup))
	login := http.Handler(http.HandlerFunc(s.handleLogin))
	if loginRL != nil {
		login = loginRL(login)
	}
	s.mux.Handle("POST /api/v1/auth/login", login)

	authMW := SessionAuthMiddleware(s.sessionStore, s.userStore, s.logger.Slog())
	protected := func(pattern string, h http.HandlerFunc) {
		s.mux.Handle(pattern, authMW(h))
	}

	protected("POST /api/v1/auth/logout", s.handleLogout)
	protected("GET /api/v1/auth/me", s.handleMe)

	protected("POST /api/v1/conversations", s.handleCreateConversation)
	protected("GET /api/v1/conversations", s.handleListConversations)
	protected("DELETE /api/v1/conversations", s.handleDeleteAllConversations)
	protected("GET /api/v1/conversations/{id}", s.handleGetConversation)
	protected("PATCH /api/v1/conversations/{id}", s.handleRenameConversation)
	protected("DELETE /api/v1/conversations/{id}", s.handleDeleteConversation)
	protected("POST /api/v1/conversations/{id}/messages", s.handleSendMessage)
	protected("POST /api/v1/conversations/{id}/stop", s.handleStopGeneration)
	protected("DELETE /api/v1/conversations/{id}/messages/{messageID}", s.handleDeleteMessagesAfter)
	protected("PATCH /api/v1/messages/{id}", s.handleEditMessage)
}

// handleHealth reports liveness.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady reports readiness, including store connectivity.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.writeErr(r.Context(), w, http.StatusServiceUnavailable, "store unavailable", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
