package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
)

func setupRedisLimiter(t *testing.T) (*miniredis.Miniredis, *RedisLimiter) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, NewRedisLimiter(client, "ratelimit:", slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRedisLimiterAllow(t *testing.T) {
	mr, rl := setupRedisLimiter(t)

	for i := 0; i < 3; i++ {
		ok, _ := rl.Allow("login:1.2.3.4", 3, time.Minute)
		assert.True(t, ok, "request %d", i+1)
	}
	ok, wait := rl.Allow("login:1.2.3.4", 3, time.Minute)
	assert.False(t, ok)
	assert.True(t, wait > 0 && wait <= time.Minute, "wait = %s", wait)
	ok, _ = rl.Allow("login:5.6.7.8", 3, time.Minute)
	assert.True(t, ok, "other keys are independent")

	assert.True(t, mr.Exists("ratelimit:login:1.2.3.4"))
	ttl := mr.TTL("ratelimit:login:1.2.3.4")
	assert.True(t, ttl > 0 && ttl <= time.Minute, "ttl = %s", ttl)
}

func TestRedisLimiterWindowReset(t *testing.T) {
	mr, rl := setupRedisLimiter(t)

	for i := 0; i < 2; i++ {
		rl.Allow("k", 2, time.Minute)
	}
	ok, _ := rl.Allow("k", 2, time.Minute)
	assert.False(t, ok)

	mr.FastForward(61 * time.Second)
	ok, _ = rl.Allow("k", 2, time.Minute)
	assert.True(t, ok)
}

func TestRedisLimiterFailsOpen(t *testing.T) {
	mr, rl := setupRedisLimiter(t)
	mr.Close()

	for i := 0; i < 2; i++ {
		ok, wait := rl.Allow("k", 1, time.Minute)
		assert.True(t, ok)
		assert.Zero(t, wait)
	}
}

func TestRedisLimiterAsMiddleware(t *testing.T) {
	_, rl := setupRedisLimiter(t)
	handler := RateLimit(rl, RealIP, 1, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	codes := make([]int, 2)
	for i := range codes {
		req := httptest.NewRequest("POST", "/api/auth/login", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes[i] = rec.Code
	}
	assert.Equal(t, []int{http.StatusNoContent, http.StatusTooManyRequests}, codes)
}
