package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"VoiceAssistant/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRateLimiterRefills(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(10*time.Second, 2)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.allow("1@ip"))
	assert.True(t, rl.allow("1@ip"))
	assert.False(t, rl.allow("1@ip"), "bucket should be empty")
	assert.True(t, rl.allow("2@ip"), "other keys have their own bucket")

	// half a window refills half the capacity
	now = now.Add(5 * time.Second)
	assert.True(t, rl.allow("1@ip"))
	assert.False(t, rl.allow("1@ip"))
}

func TestRateLimiterForgetsIdleBuckets(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(10*time.Second, 1)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.allow("1@a"))
	assert.True(t, rl.allow("2@b"))
	assert.False(t, rl.allow("2@b"))
	assert.Len(t, rl.buckets, 2)

	now = now.Add(4 * time.Second)
	assert.False(t, rl.allow("2@b"), "a partial window does not refill a single token")

	now = now.Add(10 * time.Second)
	assert.True(t, rl.allow("3@c"))
	assert.Len(t, rl.buckets, 1, "idle buckets are dropped after a window")
	assert.Contains(t, rl.buckets, "3@c")

	assert.True(t, rl.allow("1@a"), "a forgotten key starts full")
}

func TestRateLimiterDisabled(t *testing.T) {
	rl := NewRateLimiter(10*time.Second, 0)
	for i := 0; i < 100; i++ {
		if !rl.allow("k") {
			t.Fatalf("disabled limiter rejected request %d", i)
		}
	}
}

func TestRateLimiterMiddleware(t *testing.T) {
	rl := NewRateLimiter(10*time.Second, 1)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(ContextUserKey, &models.User{ID: 9})
		c.Next()
	})
	r.POST("/x", rl.Middleware(), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/x", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/x", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "10", w.Header().Get("Retry-After"))
}
