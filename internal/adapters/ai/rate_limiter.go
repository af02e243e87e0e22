package ai

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"strategist/pkg/errors"
)

// RateLimiter gates outgoing provider requests.
type RateLimiter interface {
	// Wait blocks until request can proceed or context is cancelled.
	Wait(ctx context.Context) error

	// Allow checks if request can proceed without blocking.
	Allow() bool

	// Limit returns the configured rate in requests per second.
	Limit() float64
}

// LocalLimiter is an in-process token bucket.
type LocalLimiter struct {
	limiter  *rate.Limiter
	provider ProviderName
}

// NewLocalLimiter creates a limiter allowing rps requests per second with the given burst.
func NewLocalLimiter(provider ProviderName, rps float64, burst int) *LocalLimiter {
	if burst < 1 {
		burst = 1
	}
	return &LocalLimiter{
		limiter:  rate.NewLimiter(rate.Limit(rps), burst),
		provider: provider,
	}
}

func (l *LocalLimiter) Wait(ctx context.Context) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return errors.Wrapf(err, "rate limiter wait for provider %s", l.provider)
	}
	return nil
}

func (l *LocalLimiter) Allow() bool {
	return l.limiter.Allow()
}

func (l *LocalLimiter) Limit() float64 {
	return float64(l.limiter.Limit())
}

// NoOpLimiter never blocks.
type NoOpLimiter struct{}

func NewNoOpLimiter() *NoOpLimiter {
	return &NoOpLimiter{}
}

func (l *NoOpLimiter) Wait(ctx context.Context) error { return nil }
func (l *NoOpLimiter) Allow() bool                    { return true }

// Limit returns -1 to indicate unlimited.
func (l *NoOpLimiter) Limit() float64 { return -1 }

// RateLimitConfig contains rate limit configuration for a provider.
type RateLimitConfig struct {
	RPS   float64
	Burst int
}

// RateLimiterFactory creates limiters, shared through Redis when a client is given.
type RateLimiterFactory struct {
	redis *redis.Client
}

// NewRateLimiterFactory creates a factory. A nil client yields in-process limiters.
func NewRateLimiterFactory(client *redis.Client) *RateLimiterFactory {
	return &RateLimiterFactory{redis: client}
}

// Create creates a rate limiter for the specified provider.
func (f *RateLimiterFactory) Create(provider ProviderName, cfg RateLimitConfig) RateLimiter {
	if cfg.RPS <= 0 {
		return NewNoOpLimiter()
	}
	if f.redis != nil {
		return NewRedisRateLimiter(f.redis, provider, cfg.RPS, cfg.Burst)
	}
	return NewLocalLimiter(provider, cfg.RPS, cfg.Burst)
}

// RateLimitError wraps rate limit related errors with provider context.
type RateLimitError struct {
	Provider ProviderName
	Limit    float64
	Err      error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit error for provider %s (limit: %.2f req/s): %v", e.Provider, e.Limit, e.Err)
}

// Unwrap exposes the cause and lets callers match errors.ErrRateLimitExceeded.
func (e *RateLimitError) Unwrap() []error {
	return []error{errors.ErrRateLimitExceeded, e.Err}
}
