package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"parley/internal/auth"
	"parley/internal/chat"
	"parley/internal/llm"
	"parley/internal/storage"
)

// stubProvider returns a canned reply.
type stubProvider struct {
	reply string
	err   error
	delay time.Duration
}

func (s *stubProvider) Complete(ctx context.Context, _ []llm.Message, _ llm.Options) (*llm.Response, error) {
	if s.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.delay):
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return &llm.Response{Content: s.reply, FinishReason: "stop"}, nil
}

func (s *stubProvider) NotifyStop(context.Context, string) error { return nil }
func (s *stubProvider) Name() string                             { return "stub" }
func (s *stubProvider) Available() bool                          { return true }

type testEnv struct {
	handler  http.Handler
	store    *storage.MemoryStore
	users    *auth.MemoryUserStore
	sessions *auth.MemorySessionStore
	coord    *chat.GenerationCoordinator
}

func newTestEnv(t *testing.T, provider llm.Provider) *testEnv {
	t.Helper()
	if provider == nil {
		provider = &stubProvider{reply: "stub reply"}
	}
	st := storage.NewMemoryStore()
	users := auth.NewMemoryUserStore()
	sessions := auth.NewMemorySessionStore()
	convs := chat.NewConversationService(st, nil)
	coord := chat.NewGenerationCoordinator(provider, nil)
	orch := chat.NewMessageOrchestrator(convs, st, coord, "", nil)

	mux := http.NewServeMux()
	srv := NewServer(mux, st, convs, orch, users, sessions, nil)
	srv.RegisterRoutes(nil)

	return &testEnv{handler: mux, store: st, users: users, sessions: sessions, coord: coord}
}

// loginAs creates a user and a live session, returning the session cookie.
func (e *testEnv) loginAs(t *testing.T, username string) (*auth.User, *http.Cookie) {
	t.Helper()
	ctx := context.Background()
	hash, err := auth.HashPassword("test-password-1")
	if err != nil {
		t.Fatal(err)
	}
	now := time.Now().UTC()
	user := &auth.User{
		ID:           uuid.New().String(),
		Username:     username,
		Role:         auth.RoleMember,
		PasswordHash: hash,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := e.users.Create(ctx, user); err != nil {
		t.Fatal(err)
	}

	sid, err := auth.NewSessionID()
	if err != nil {
		t.Fatal(err)
	}
	sess := &auth.Session{ID: sid, UserID: user.ID, Role: user.Role, CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	if err := e.sessions.Create(ctx, sess); err != nil {
		t.Fatal(err)
	}
	return user, &http.Cookie{Name: SessionCookieName, Value: sid}
}

// do sends a request through the full handler and returns the recorder.
func (e *testEnv) do(req *http.Request, cookie *http.Cookie) *httptest.ResponseRecorder {
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}
