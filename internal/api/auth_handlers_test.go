package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSetupThenLoginFlow(t *testing.T) {
	env := newTestEnv(t, nil)

	// First boot: setup creates the admin.
	rec := env.do(httptest.NewRequest(http.MethodPost, "/api/v1/auth/setup",
		strings.NewReader(`{"username":"admin","password":"super-secret-1","display_name":"Admin"}`)), nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("setup: %d %s", rec.Code, rec.Body.String())
	}
	admin := decode[userResponse](t, rec)
	if admin.Username != "admin" || admin.Role != "admin" {
		t.Errorf("unexpected admin: %+v", admin)
	}

	// Setup is one-shot.
	rec = env.do(httptest.NewRequest(http.MethodPost, "/api/v1/auth/setup",
		strings.NewReader(`{"username":"again","password":"super-secret-1"}`)), nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("second setup: expected 409, got %d", rec.Code)
	}

	// Login issues a session cookie.
	rec = env.do(httptest.NewRequest(http.MethodPost, "/api/v1/auth/login",
		strings.NewReader(`{"username":"admin","password":"super-secret-1"}`)), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("login: %d %s", rec.Code, rec.Body.String())
	}
	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == SessionCookieName {
			cookie = c
		}
	}
	if cookie == nil || cookie.Value == "" || !cookie.HttpOnly {
		t.Fatalf("missing or weak session cookie: %+v", cookie)
	}

	// The cookie authenticates /me.
	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil), cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("me: %d", rec.Code)
	}
	me := decode[userResponse](t, rec)
	if me.Username != "admin" {
		t.Errorf("wrong identity: %+v", me)
	}

	// Logout invalidates it.
	rec = env.do(httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil), cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("logout: %d", rec.Code)
	}
	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil), cookie)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("session survived logout: %d", rec.Code)
	}
}

func TestLogin_UniformFailures(t *testing.T) {
	env := newTestEnv(t, nil)
	env.loginAs(t, "alice")

	// Wrong password and unknown user report the same way.
	rec := env.do(httptest.NewRequest(http.MethodPost, "/api/v1/auth/login",
		strings.NewReader(`{"username":"alice","password":"wrong"}`)), nil)
	wrongPass := rec.Code
	rec = env.do(httptest.NewRequest(http.MethodPost, "/api/v1/auth/login",
		strings.NewReader(`{"username":"nobody","password":"wrong"}`)), nil)
	unknownUser := rec.Code

	if wrongPass != http.StatusUnauthorized || unknownUser != http.StatusUnauthorized {
		t.Errorf("expected 401/401, got %d/%d", wrongPass, unknownUser)
	}
}

func TestSetup_Validation(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(httptest.NewRequest(http.MethodPost, "/api/v1/auth/setup",
		strings.NewReader(`{"username":"","password":"super-secret-1"}`)), nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty username: expected 400, got %d", rec.Code)
	}
	rec = env.do(httptest.NewRequest(http.MethodPost, "/api/v1/auth/setup",
		strings.NewReader(`{"username":"admin","password":"short"}`)), nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("short password: expected 400, got %d", rec.Code)
	}
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	env := newTestEnv(t, nil)

	paths := []struct {
		method, path string
	}{
		{http.MethodGet, "/api/v1/conversations"},
		{http.MethodPost, "/api/v1/conversations"},
		{http.MethodGet, "/api/v1/auth/me"},
		{http.MethodPost, "/api/v1/conversations/x/messages"},
	}
	for _, p := range paths {
		rec := env.do(httptest.NewRequest(p.method, p.path, nil), nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s: expected 401, got %d", p.method, p.path, rec.Code)
		}
	}

	// Health endpoints stay open.
	rec := env.do(httptest.NewRequest(http.MethodGet, "/healthz", nil), nil)
	if rec.Code != http.StatusOK {
		t.Errorf("healthz: %d", rec.Code)
	}
	rec = env.do(httptest.NewRequest(http.MethodGet, "/readyz", nil), nil)
	if rec.Code != http.StatusOK {
		t.Errorf("readyz: %d", rec.Code)
	}
}

func TestBearerTokenAuth(t *testing.T) {
	env := newTestEnv(t, nil)
	_, cookie := env.loginAs(t, "alice")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+cookie.Value)
	rec := env.do(req, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("bearer auth failed: %d", rec.Code)
	}
}
