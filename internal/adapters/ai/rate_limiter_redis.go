package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"strategist/pkg/errors"
)

// RedisRateLimiter is a token bucket shared by every process pointing at the same Redis.
type RedisRateLimiter struct {
	client      *redis.Client
	provider    ProviderName
	rate        float64 // Requests per second
	burst       int
	key         string
	tokenScript *redis.Script
}

// KEYS[1] = bucket key
// ARGV[1] = rate (tokens per second), ARGV[2] = burst, ARGV[3] = now (seconds)
// Returns 1 if a token was taken, 0 otherwise.
const luaTokenBucketScript = `
local key = KEYS[1]
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local data = redis.call('HMGET', key, 'tokens', 'last_update')
local tokens = tonumber(data[1])
local last_update = tonumber(data[2])

if not tokens then
    tokens = burst
    last_update = now
end

tokens = math.min(burst, tokens + (now - last_update) * rate)

local allowed = 0
if tokens >= 1.0 then
    tokens = tokens - 1.0
    allowed = 1
end

redis.call('HMSET', key, 'tokens', tokens, 'last_update', now)
redis.call('EXPIRE', key, 3600)
return allowed
`

// NewRedisRateLimiter creates a new Redis-based rate limiter.
func NewRedisRateLimiter(client *redis.Client, provider ProviderName, rps float64, burst int) *RedisRateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RedisRateLimiter{
		client:      client,
		provider:    provider,
		rate:        rps,
		burst:       burst,
		key:         fmt.Sprintf("strategist:rate_limit:llm:%s", provider),
		tokenScript: redis.NewScript(luaTokenBucketScript),
	}
}

// Wait blocks until a token is available or context is cancelled.
func (l *RedisRateLimiter) Wait(ctx context.Context) error {
	waitTime := time.Duration(float64(time.Second) / l.rate)
	for {
		allowed, err := l.tryAcquire(ctx)
		if err != nil {
			return errors.Wrapf(err, "redis rate limiter for provider %s", l.provider)
		}
		if allowed {
			return nil
		}

		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "rate limiter wait cancelled")
		case <-time.After(waitTime):
		}
	}
}

// Allow takes a token without blocking. Redis errors deny.
func (l *RedisRateLimiter) Allow() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	allowed, err := l.tryAcquire(ctx)
	return err == nil && allowed
}

func (l *RedisRateLimiter) Limit() float64 {
	return l.rate
}

func (l *RedisRateLimiter) tryAcquire(ctx context.Context) (bool, error) {
	now := float64(time.Now().UnixNano()) / float64(time.Second)

	result, err := l.tokenScript.Run(ctx, l.client, []string{l.key}, l.rate, l.burst, now).Int()
	if err != nil {
		return false, errors.Wrap(err, "run token bucket script")
	}
	return result == 1, nil
}

// Reset clears the bucket.
func (l *RedisRateLimiter) Reset(ctx context.Context) error {
	return l.client.Del(ctx, l.key).Err()
}
