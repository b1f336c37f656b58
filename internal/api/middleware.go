package api

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"parley/internal/auth"
	"parley/internal/observability"
)

// Middleware wraps an http.Handler with additional behavior.
type Middleware func(http.Handler) http.Handler

// ApplyMiddlewares applies middlewares in order; the first in the list is the
// outermost wrapper.
func ApplyMiddlewares(h http.Handler, middlewares ...Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// RequestIDMiddleware ensures every request carries a request ID. An incoming
// X-Request-ID header is honored after sanitization; otherwise a fresh UUID is
// generated. The ID is echoed back and placed in the request context.
func RequestIDMiddleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := sanitizeRequestID(r.Header.Get("X-Request-ID"))
			if reqID == "" {
				reqID = uuid.New().String()
			}
			w.Header().Set("X-Request-ID", reqID)
			ctx := WithRequestID(r.Context(), reqID)
			ctx = observability.WithRequestID(ctx, reqID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

const maxRequestIDLen = 128

// sanitizeRequestID drops IDs containing anything beyond alphanumerics,
// hyphens, underscores, or dots, and anything over-length.
func sanitizeRequestID(id string) string {
	if id == "" || len(id) > maxRequestIDLen {
		return ""
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '-' || c == '_' || c == '.':
		default:
			return ""
		}
	}
	return id
}

// LoggingMiddleware logs each request with status, duration, and request ID,
// recovers from handler panics, and reports errors to Sentry when enabled.
func LoggingMiddleware(logger observability.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			hub := sentry.GetHubFromContext(r.Context())
			if hub == nil {
				hub = sentry.CurrentHub().Clone()
			}
			ctx := sentry.SetHubOnContext(r.Context(), hub)
			r = r.WithContext(ctx)

			defer func() {
				if rv := recover(); rv != nil {
					hub.RecoverWithContext(ctx, rv)
					logger.ErrorContext(ctx, "panic in handler",
						"method", r.Method,
						"path", r.URL.Path,
						"panic", fmt.Sprintf("%v", rv),
					)
					if rec.status == http.StatusOK {
						http.Error(rec, "internal error", http.StatusInternalServerError)
					}
				}
			}()

			next.ServeHTTP(rec, r)

			fields := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration_ms", time.Since(start).Milliseconds(),
				"remote", clientKey(r),
			}
			fields = appendRequestID(r.Context(), fields)
			switch {
			case rec.status >= 500:
				logger.ErrorContext(r.Context(), "http request", fields...)
			case rec.status >= 400:
				logger.WarnContext(r.Context(), "http request", fields...)
			default:
				logger.InfoContext(r.Context(), "http request", fields...)
			}
		})
	}
}

// RateLimitConfig controls the per-client request rate limiter.
type RateLimitConfig struct {
	RPS   float64
	Burst int
	// TrustedProxies lists CIDRs whose X-Forwarded-For header is honored.
	TrustedProxies []*net.IPNet
}

// DefaultRateLimitConfig reads PARLEY_RATE_LIMIT_RPS and
// PARLEY_RATE_LIMIT_BURST, falling back to 25 rps with a burst of 50.
func DefaultRateLimitConfig() RateLimitConfig {
	cfg := RateLimitConfig{RPS: 25, Burst: 50}
	if v := os.Getenv("PARLEY_RATE_LIMIT_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.RPS = f
		}
	}
	if v := os.Getenv("PARLEY_RATE_LIMIT_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Burst = n
		}
	}
	cfg.TrustedProxies = ParseTrustedProxies(os.Getenv("PARLEY_TRUSTED_PROXIES"))
	return cfg
}

// ParseTrustedProxies parses a comma-separated list of CIDRs. Bare IPs get a
// /32 (or /128) suffix. Invalid entries are skipped.
func ParseTrustedProxies(s string) []*net.IPNet {
	var nets []*net.IPNet
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if !strings.Contains(part, "/") {
			if ip := net.ParseIP(part); ip != nil {
				if ip.To4() != nil {
					part += "/32"
				} else {
					part += "/128"
				}
			}
		}
		if _, ipnet, err := net.ParseCIDR(part); err == nil {
			nets = append(nets, ipnet)
		}
	}
	return nets
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimitMiddleware enforces a token-bucket limit per client IP. Buckets
// for idle clients are evicted after ten minutes.
func RateLimitMiddleware(cfg RateLimitConfig, logger observability.Logger) Middleware {
	var (
		mu       sync.Mutex
		visitors = map[string]*visitor{}
	)

	go func() {
		for range time.Tick(time.Minute) {
			mu.Lock()
			for key, v := range visitors {
				if time.Since(v.lastSeen) > 10*time.Minute {
					delete(visitors, key)
				}
			}
			mu.Unlock()
		}
	}()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientKeyWithProxies(r, cfg.TrustedProxies)

			mu.Lock()
			v, ok := visitors[key]
			if !ok {
				v = &visitor{limiter: rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst)}
				visitors[key] = v
			}
			v.lastSeen = time.Now()
			mu.Unlock()

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.Burst))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(int(v.limiter.Tokens())))

			if !v.limiter.Allow() {
				w.Header().Set("Retry-After", "1")
				logger.WarnContext(r.Context(), "rate limit exceeded",
					"client", key,
					"path", r.URL.Path,
				)
				writeJSON(w, http.StatusTooManyRequests, apiError{Error: "rate limit exceeded"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// LoginRateLimitConfig controls the stricter limiter applied to login
// attempts only.
type LoginRateLimitConfig struct {
	RPS   float64
	Burst int
}

// DefaultLoginRateLimitConfig allows one attempt per two seconds with a
// burst of five, overridable via PARLEY_LOGIN_RATE_LIMIT_RPS and
// PARLEY_LOGIN_RATE_LIMIT_BURST.
func DefaultLoginRateLimitConfig() LoginRateLimitConfig {
	cfg := LoginRateLimitConfig{RPS: 0.5, Burst: 5}
	if v := os.Getenv("PARLEY_LOGIN_RATE_LIMIT_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.RPS = f
		}
	}
	if v := os.Getenv("PARLEY_LOGIN_RATE_LIMIT_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Burst = n
		}
	}
	return cfg
}

// LoginRateLimitMiddleware applies a dedicated per-IP limiter to the login
// endpoint to slow credential stuffing.
func LoginRateLimitMiddleware(cfg LoginRateLimitConfig, logger observability.Logger) Middleware {
	var (
		mu       sync.Mutex
		visitors = map[string]*visitor{}
	)

	go func() {
		for range time.Tick(time.Minute) {
			mu.Lock()
			for key, v := range visitors {
				if time.Since(v.lastSeen) > 30*time.Minute {
					delete(visitors, key)
				}
			}
			mu.Unlock()
		}
	}()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientKey(r)

			mu.Lock()
			v, ok := visitors[key]
			if !ok {
				v = &visitor{limiter: rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst)}
				visitors[key] = v
			}
			v.lastSeen = time.Now()
			mu.Unlock()

			if !v.limiter.Allow() {
				w.Header().Set("Retry-After", "2")
				logger.WarnContext(r.Context(), "login rate limit exceeded", "client", key)
				writeJSON(w, http.StatusTooManyRequests, apiError{Error: "too many login attempts"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientKey extracts the client IP from RemoteAddr only. Forwarded headers
// are ignored unless the peer is a trusted proxy.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// clientKeyWithProxies honors the rightmost X-Forwarded-For entry when the
// direct peer is within a trusted proxy range.
func clientKeyWithProxies(r *http.Request, trusted []*net.IPNet) string {
	direct := clientKey(r)
	if len(trusted) == 0 {
		return direct
	}
	ip := net.ParseIP(direct)
	if ip == nil {
		return direct
	}
	inTrusted := false
	for _, n := range trusted {
		if n.Contains(ip) {
			inTrusted = true
			break
		}
	}
	if !inTrusted {
		return direct
	}
	xff := r.Header.Get("X-Forwarded-For")
	if xff == "" {
		return direct
	}
	parts := strings.Split(xff, ",")
	candidate := strings.TrimSpace(parts[len(parts)-1])
	if net.ParseIP(candidate) != nil {
		return candidate
	}
	return direct
}

// SessionCookieName is the cookie holding the session ID.
const SessionCookieName = "parley_session"

// SessionAuthMiddleware rejects requests without a valid, unexpired session
// bound to an active user, and injects the session and user into the request
// context. Credentials are accepted from the session cookie or an
// Authorization bearer token.
func SessionAuthMiddleware(sessions auth.SessionStore, users auth.UserStore, logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sid := sessionIDFromRequest(r)
			if sid == "" {
				writeJSON(w, http.StatusUnauthorized, apiError{Error: "authentication required"})
				return
			}

			sess, err := sessions.Get(r.Context(), sid)
			if err != nil {
				logger.Error("session lookup failed", "error", err)
				writeJSON(w, http.StatusInternalServerError, apiError{Error: "internal error"})
				return
			}
			if sess == nil || !sess.IsValid() {
				writeJSON(w, http.StatusUnauthorized, apiError{Error: "session expired or invalid"})
				return
			}

			user, err := users.GetByID(r.Context(), sess.UserID)
			if err != nil {
				logger.Error("user lookup failed", "error", err, "user_id", sess.UserID)
				writeJSON(w, http.StatusInternalServerError, apiError{Error: "internal error"})
				return
			}
			if user == nil || !user.IsActive {
				writeJSON(w, http.StatusUnauthorized, apiError{Error: "account disabled"})
				return
			}

			ctx := auth.ContextWithSession(r.Context(), sess)
			ctx = auth.ContextWithUser(ctx, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func sessionIDFromRequest(r *http.Request) string {
	if c, err := r.Cookie(SessionCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return ""
}
