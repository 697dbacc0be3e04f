package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	clock := clockwork.NewFakeClock()

	r := gin.New()
	r.Use(RateLimit(NewRateLimiter(2, time.Minute, clock)))
	r.POST("/api/warnings", func(c *gin.Context) { c.Status(http.StatusCreated) })

	do := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/warnings", nil))
		return w
	}

	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusCreated, do().Code)
	}

	limited := do()
	require.Equal(t, http.StatusTooManyRequests, limited.Code)
	require.Equal(t, "0", limited.Header().Get("X-RateLimit-Remaining"))
	require.Contains(t, limited.Body.String(), "RATE_LIMITED")

	clock.Advance(time.Minute)
	w := do()
	require.Equal(t, http.StatusCreated, w.Code)
	require.Equal(t, "1", w.Header().Get("X-RateLimit-Remaining"))
}

func TestRateLimitDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(RateLimit(nil))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		require.Equal(t, http.StatusOK, w.Code)
	}
}

func TestRateLimiterSweepsExpiredKeys(t *testing.T) {
	clock := clockwork.NewFakeClock()
	l := NewRateLimiter(1, time.Second, clock)

	ok, _, _ := l.Allow("a")
	require.True(t, ok)
	ok, _, _ = l.Allow("a")
	require.False(t, ok)

	clock.Advance(time.Second)
	ok, remaining, reset := l.Allow("b")
	require.True(t, ok)
	require.Zero(t, remaining)
	require.Equal(t, time.Second, reset)
	require.Len(t, l.data, 1)
}
