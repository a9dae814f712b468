package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stemsi/exstem-proctor/internal/response"
)

func TestRateLimiterBlocksAfterBurst(t *testing.T) {
	rl := NewRateLimiter(0.001, 2)
	r := gin.New()
	r.GET("/x", rl.Middleware(), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	from := func(addr string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.RemoteAddr = addr
		return req
	}

	assert.Equal(t, http.StatusNoContent, serve(r, from("192.0.2.1:1000")).Code)
	assert.Equal(t, http.StatusNoContent, serve(r, from("192.0.2.1:1001")).Code)

	rec := serve(r, from("192.0.2.1:1002"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, response.ErrRateLimitExceeded, errorCode(t, rec))

	// Buckets are per IP.
	assert.Equal(t, http.StatusNoContent, serve(r, from("192.0.2.2:1000")).Code)
}

func TestRateLimiterEvictsIdleVisitors(t *testing.T) {
	now := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(1, 1)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.allow("a"))
	now = now.Add(2 * time.Minute)
	assert.True(t, rl.allow("b"))

	now = now.Add(2 * time.Minute)
	rl.evictIdle()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.NotContains(t, rl.visitors, "a")
	assert.Contains(t, rl.visitors, "b")
}
