package ratelimit

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/boulder/internal/dependencies/clock"
)

const redisKeyPrefix = "boulder:ratelimit:"

// slidingWindow runs the prune/count/record sequence atomically.
// KEYS[1] window set; ARGV: now ms, window ms, max attempts, member.
var slidingWindow = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call("ZREMRANGEBYSCORE", key, "-inf", now - window)
if redis.call("ZCARD", key) >= limit then
	return 0
end
redis.call("ZADD", key, now, ARGV[4])
redis.call("PEXPIRE", key, window)
return 1
`)

// RedisLimiter keeps the sliding window in a Redis sorted set per key so
// every server instance shares admission state
type RedisLimiter struct {
	client redis.Scripter
	cfg    Config
	clock  clock.Clock
	seq    atomic.Uint64
}

// Ensure RedisLimiter implements Limiter
var _ Limiter = (*RedisLimiter)(nil)

// NewRedis creates a RedisLimiter on an existing client
func NewRedis(client redis.Scripter, cfg Config, clock clock.Clock) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		cfg:    cfg.withDefaults(),
		clock:  clock,
	}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	now := l.clock.Now().UnixMilli()
	member := fmt.Sprintf("%d-%d", now, l.seq.Add(1))

	admitted, err := slidingWindow.Run(ctx, l.client,
		[]string{redisKeyPrefix + key},
		now, l.cfg.Window.Milliseconds(), l.cfg.MaxAttempts, member,
	).Int()
	if err != nil {
		return false, fmt.Errorf("rate limit script: %w", err)
	}
	return admitted == 1, nil
}
