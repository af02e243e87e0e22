package ai

import (
	"github.com/redis/go-redis/v9"

	"strategist/internal/adapters/config"
	"strategist/pkg/errors"
)

// BuildRegistry registers every provider with credentials. A non-nil
// redis client makes rate limits shared across processes.
func BuildRegistry(cfg config.LLMConfig, rdb *redis.Client) (*ProviderRegistry, error) {
	registry := NewProviderRegistry()
	factory := NewRateLimiterFactory(rdb)
	limits := RateLimitConfig{RPS: cfg.RateLimitRPS, Burst: cfg.RateLimitBurst}

	if cfg.OpenAIKey != "" {
		limiter := factory.Create(ProviderNameOpenAI, limits)
		if err := registry.Register(NewOpenAIProvider(cfg.OpenAIKey, cfg.Timeout, limiter)); err != nil {
			return nil, err
		}
	}

	if cfg.DeepSeekKey != "" {
		limiter := factory.Create(ProviderNameDeepSeek, limits)
		if err := registry.Register(NewDeepSeekProvider(cfg.DeepSeekKey, cfg.Timeout, limiter)); err != nil {
			return nil, err
		}
	}

	if cfg.GeminiKey != "" {
		limiter := factory.Create(ProviderNameGoogle, limits)
		if err := registry.Register(NewGeminiProvider(cfg.GeminiKey, cfg.Timeout, limiter)); err != nil {
			return nil, err
		}
	}

	if len(registry.Names()) == 0 {
		return nil, errors.Wrap(errors.ErrUnavailable, "no llm provider credentials configured")
	}

	return registry, nil
}
