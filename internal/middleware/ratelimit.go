package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"

	"github.com/charlesng35/campusalert/pkg/errors"
	"github.com/charlesng35/campusalert/pkg/response"
)

// ErrRateLimited is rendered when a client exceeds its request budget.
var ErrRateLimited = errors.New("RATE_LIMITED", "Too many requests", http.StatusTooManyRequests)

// RateLimiter counts requests per key inside fixed windows. It is
// process-local and safe for concurrent use.
type RateLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	clock  clockwork.Clock
	data   map[string]*windowCounter
}

type windowCounter struct {
	count     int
	windowEnd time.Time
}

// NewRateLimiter allows limit requests per key per window. A nil clock uses
// the real clock.
func NewRateLimiter(limit int, window time.Duration, clock clockwork.Clock) *RateLimiter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &RateLimiter{
		limit:  limit,
		window: window,
		clock:  clock,
		data:   make(map[string]*windowCounter),
	}
}

// Allow records a request for key and reports whether it fits the budget,
// the remaining budget and the time until the window resets.
func (l *RateLimiter) Allow(key string) (bool, int, time.Duration) {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	// Sweep expired windows.
	for k, ct := range l.data {
		if !now.Before(ct.windowEnd) {
			delete(l.data, k)
		}
	}

	ct, ok := l.data[key]
	if !ok {
		ct = &windowCounter{windowEnd: now.Add(l.window)}
		l.data[key] = ct
	}
	ct.count++

	remaining := l.limit - ct.count
	if remaining < 0 {
		remaining = 0
	}
	return ct.count <= l.limit, remaining, ct.windowEnd.Sub(now)
}

// RateLimit limits requests per (client IP, route). A nil limiter or a
// non-positive limit disables limiting.
func RateLimit(l *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if l == nil || l.limit <= 0 || l.window <= 0 {
			c.Next()
			return
		}

		allowed, remaining, resetIn := l.Allow(c.ClientIP() + "|" + c.FullPath())

		c.Header("X-RateLimit-Limit", strconv.Itoa(l.limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.Itoa(int(resetIn.Seconds())))

		if !allowed {
			response.Error(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}
