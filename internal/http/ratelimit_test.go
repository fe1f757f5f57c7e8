package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIPRateLimiterRejectsBurstPerClient(t *testing.T) {
	limiter := NewIPRateLimiter(2)
	t.Cleanup(limiter.Stop)
	handler := limiter.Middleware(okHandler())

	send := func(addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		req.RemoteAddr = addr
		return serve(handler, req)
	}

	assert.Equal(t, http.StatusNoContent, send("198.51.100.7:4000").Code)
	assert.Equal(t, http.StatusNoContent, send("198.51.100.7:4001").Code)

	rec := send("198.51.100.7:4002")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "30", rec.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusNoContent, send("198.51.100.8:4000").Code)
}

func TestIPRateLimiterCleanupDropsIdleClients(t *testing.T) {
	limiter := NewIPRateLimiter(5)
	t.Cleanup(limiter.Stop)

	limiter.allow("203.0.113.1")
	limiter.mu.Lock()
	limiter.limiters["203.0.113.1"].lastAccess = time.Now().Add(-time.Hour)
	limiter.mu.Unlock()
	limiter.allow("203.0.113.2")

	limiter.cleanup()

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	assert.NotContains(t, limiter.limiters, "203.0.113.1")
	assert.Contains(t, limiter.limiters, "203.0.113.2")
}

func TestClientIPWithoutPort(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.9"
	assert.Equal(t, "203.0.113.9", clientIP(req))
}
