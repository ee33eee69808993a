package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"
)

// The first hit sets the expiry so the window does not slide. Returns the
// hit count and the remaining window in milliseconds.
var incrWindow = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return {n, redis.call('PTTL', KEYS[1])}
`)

// RedisLimiter is a fixed-window limiter shared by every instance using the
// same Redis. If Redis cannot be reached it fails open and logs.
type RedisLimiter struct {
	client  *redis.Client
	prefix  string
	timeout time.Duration
	logger  *slog.Logger
}

func NewRedisLimiter(client *redis.Client, prefix string, logger *slog.Logger) *RedisLimiter {
	return &RedisLimiter{client: client, prefix: prefix, timeout: 500 * time.Millisecond, logger: logger}
}

func (l *RedisLimiter) Allow(key string, limit int, window time.Duration) (bool, time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()

	res, err := incrWindow.Run(ctx, l.client, []string{l.prefix + key}, window.Milliseconds()).Int64Slice()
	if err != nil || len(res) != 2 {
		l.logger.Warn("rate limit check failed", "key", key, "error", err)
		return true, 0
	}
	if res[0] <= int64(limit) {
		return true, 0
	}
	wait := time.Duration(res[1]) * time.Millisecond
	if wait <= 0 {
		wait = window
	}
	return false, wait
}
