package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

type bucket struct {
	tokens     int
	lastRefill time.Time
}

// RateLimiter is a token bucket per user@ip. Capacity tokens refill evenly
// over each window.
type RateLimiter struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	window   time.Duration
	capacity int
	now      func() time.Time
	swept    time.Time
}

// NewRateLimiter returns a limiter. A non-positive capacity or window
// disables limiting.
func NewRateLimiter(window time.Duration, capacity int) *RateLimiter {
	return &RateLimiter{
		buckets:  map[string]*bucket{},
		window:   window,
		capacity: capacity,
		now:      time.Now,
	}
}

func clientIP(c *gin.Context) string {
	ip := strings.TrimSpace(c.ClientIP())
	if ip == "" {
		host, _, _ := net.SplitHostPort(strings.TrimSpace(c.Request.RemoteAddr))
		ip = host
	}
	return ip
}

func userKey(c *gin.Context) string {
	uid := "anon"
	if u, ok := CurrentUser(c); ok {
		uid = strconv.FormatUint(uint64(u.ID), 10)
	}
	return uid + "@" + clientIP(c)
}

func (rl *RateLimiter) allow(key string) bool {
	if rl.capacity <= 0 || rl.window <= 0 {
		return true
	}
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.sweep(now)
	b := rl.buckets[key]
	if b == nil {
		b = &bucket{tokens: rl.capacity, lastRefill: now}
		rl.buckets[key] = b
	}
	if elapsed := now.Sub(b.lastRefill); elapsed > 0 {
		add := int(float64(rl.capacity) * (float64(elapsed) / float64(rl.window)))
		if add > 0 {
			b.tokens += add
			if b.tokens > rl.capacity {
				b.tokens = rl.capacity
			}
			b.lastRefill = now
		}
	}
	if b.tokens <= 0 {
		return false
	}
	b.tokens--
	return true
}

// sweep drops buckets untouched for a full window, at most once per window.
// Such a bucket would refill to capacity anyway, so forgetting it is
// unobservable. Callers hold mu.
func (rl *RateLimiter) sweep(now time.Time) {
	if now.Sub(rl.swept) < rl.window {
		return
	}
	rl.swept = now
	for key, b := range rl.buckets {
		if now.Sub(b.lastRefill) >= rl.window {
			delete(rl.buckets, key)
		}
	}
}

// Middleware must run after AuthMiddleware so buckets are per user.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.allow(userKey(c)) {
			c.Header("Retry-After", strconv.Itoa(int(rl.window.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"detail": "Too many requests"})
			return
		}
		c.Next()
	}
}
