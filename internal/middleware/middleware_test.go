package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ok = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestTokenBucketRefillsEachSecond(t *testing.T) {
	now := time.Unix(1700000000, 0)
	tb := NewTokenBucket(2)
	tb.now = func() time.Time { return now }
	tb.lastSec = now.Unix()
	assert.True(t, tb.Allow())
	assert.True(t, tb.Allow())
	assert.False(t, tb.Allow())
	now = now.Add(time.Second)
	assert.True(t, tb.Allow())
}

func TestRateLimitDisabledPassesThrough(t *testing.T) {
	h := RateLimit(false, 1)(ok)
	for i := 0; i < 5; i++ {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusNoContent, rr.Code)
	}
}

func TestRateLimitRejects(t *testing.T) {
	h := RateLimit(true, 1)(ok)
	codes := map[int]int{}
	for i := 0; i < 3; i++ {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		codes[rr.Code]++
	}
	assert.GreaterOrEqual(t, codes[http.StatusTooManyRequests], 1)
}

func TestSecurityHeaders(t *testing.T) {
	rr := httptest.NewRecorder()
	SecurityHeaders([]string{"api.example.com"})(ok).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	csp := rr.Header().Get("Content-Security-Policy")
	assert.Contains(t, csp, "default-src 'self'")
	assert.Contains(t, csp, "img-src 'self' data: blob: *.tile.openstreetmap.org")
	assert.Contains(t, csp, "connect-src 'self' api.example.com")
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
}

func TestCORS(t *testing.T) {
	h := CORS([]string{"https://peta.example"})(ok)
	req := httptest.NewRequest(http.MethodGet, "/api/config", nil)
	req.Header.Set("Origin", "https://peta.example")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, "https://peta.example", rr.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/config", nil)
	req.Header.Set("Origin", "https://evil.example")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestRecovery(t *testing.T) {
	h := Recovery(quiet())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }))
	rr := httptest.NewRecorder()
	require.NotPanics(t, func() { h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil)) })
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.JSONEq(t, `{"error":"Something broke!"}`, rr.Body.String())
}

func TestAdminGuard(t *testing.T) {
	do := func(g *AdminGuard, remote, token string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/reload", nil)
		req.RemoteAddr = remote
		if token != "" {
			req.Header.Set(AdminTokenHeader, token)
		}
		rr := httptest.NewRecorder()
		g.Wrap(ok).ServeHTTP(rr, req)
		return rr.Code
	}
	open := NewAdminGuard("s3cret", nil, quiet())
	assert.Equal(t, http.StatusNoContent, do(open, "203.0.113.9:5555", "s3cret"))
	assert.Equal(t, http.StatusUnauthorized, do(open, "203.0.113.9:5555", "nope"))
	assert.Equal(t, http.StatusUnauthorized, do(open, "203.0.113.9:5555", ""))

	disabled := NewAdminGuard("", nil, quiet())
	assert.Equal(t, http.StatusForbidden, do(disabled, "127.0.0.1:1", ""))

	scoped := NewAdminGuard("s3cret", []string{"10.0.0.0/8", "::1", "garbage"}, quiet())
	assert.Equal(t, http.StatusNoContent, do(scoped, "10.1.2.3:80", "s3cret"))
	assert.Equal(t, http.StatusNoContent, do(scoped, "[::1]:80", "s3cret"))
	assert.Equal(t, http.StatusForbidden, do(scoped, "192.168.1.1:80", "s3cret"))

	req := httptest.NewRequest(http.MethodPost, "/api/reload", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	rr := httptest.NewRecorder()
	open.Wrap(ok).ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestChainOrder(t *testing.T) {
	var order []string
	mk := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	Chain(ok, mk("a"), mk("b"), mk("c")).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, []string{"a", "b", "c"}, order)
}
