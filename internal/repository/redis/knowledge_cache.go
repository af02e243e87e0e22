package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"strategist/internal/domain/knowledge"
	"strategist/internal/metrics"
	"strategist/pkg/errors"
	"strategist/pkg/logger"
)

// KeyPrefix starts every cache key.
const KeyPrefix = "strategist:kg"

// CachedKnowledgeRepository is a read-through cache in front of another
// knowledge.Repository. Redis failures fall back to the wrapped repository.
// Only hits are counted here; misses reach next, which records the query.
type CachedKnowledgeRepository struct {
	next    knowledge.Repository
	client  *redis.Client
	ttl     time.Duration
	backend string
	log     *logger.Logger
}

var _ knowledge.Repository = (*CachedKnowledgeRepository)(nil)

// NewCachedKnowledgeRepository wraps next. backend labels cache metrics.
func NewCachedKnowledgeRepository(next knowledge.Repository, client *redis.Client, ttl time.Duration, backend string) *CachedKnowledgeRepository {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &CachedKnowledgeRepository{
		next:    next,
		client:  client,
		ttl:     ttl,
		backend: backend,
		log:     logger.Get().WithComponent("knowledge_cache"),
	}
}

func (r *CachedKnowledgeRepository) GetIndicatorsForStrategyType(ctx context.Context, strategyType string, minStrength float64, limit int) ([]knowledge.Recommendation, error) {
	key := r.key("indicators", strategyType, minStrength, limit)
	return cached(ctx, r, key, "indicators", func() ([]knowledge.Recommendation, error) {
		return r.next.GetIndicatorsForStrategyType(ctx, strategyType, minStrength, limit)
	})
}

func (r *CachedKnowledgeRepository) GetPositionSizingForStrategyType(ctx context.Context, strategyType string, minCompatibility float64, limit int) ([]knowledge.Recommendation, error) {
	key := r.key("sizing", strategyType, minCompatibility, limit)
	return cached(ctx, r, key, "position_sizing", func() ([]knowledge.Recommendation, error) {
		return r.next.GetPositionSizingForStrategyType(ctx, strategyType, minCompatibility, limit)
	})
}

func (r *CachedKnowledgeRepository) GetRiskManagementForStrategyType(ctx context.Context, strategyType string, minCompatibility float64, limit int) ([]knowledge.Recommendation, error) {
	key := r.key("risk", strategyType, minCompatibility, limit)
	return cached(ctx, r, key, "risk_management", func() ([]knowledge.Recommendation, error) {
		return r.next.GetRiskManagementForStrategyType(ctx, strategyType, minCompatibility, limit)
	})
}

func (r *CachedKnowledgeRepository) GetParametersForIndicator(ctx context.Context, indicator string) ([]knowledge.IndicatorParameter, error) {
	key := r.key("params", indicator)
	return cached(ctx, r, key, "indicator_parameters", func() ([]knowledge.IndicatorParameter, error) {
		return r.next.GetParametersForIndicator(ctx, indicator)
	})
}

func (r *CachedKnowledgeRepository) GetStrategyTemplate(ctx context.Context, strategyType string) (*knowledge.StrategyTemplate, error) {
	key := r.key("template", strategyType)
	return cached(ctx, r, key, "strategy_template", func() (*knowledge.StrategyTemplate, error) {
		return r.next.GetStrategyTemplate(ctx, strategyType)
	})
}

func (r *CachedKnowledgeRepository) GetRelatedConcepts(ctx context.Context, name string, limit int) ([]knowledge.Concept, error) {
	key := r.key("concepts", name, limit)
	return cached(ctx, r, key, "related_concepts", func() ([]knowledge.Concept, error) {
		return r.next.GetRelatedConcepts(ctx, name, limit)
	})
}

// Invalidate drops every cached entry.
func (r *CachedKnowledgeRepository) Invalidate(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, KeyPrefix+":*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return errors.Wrap(err, "failed to scan knowledge cache")
	}
	if len(keys) == 0 {
		return nil
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return errors.Wrap(err, "failed to invalidate knowledge cache")
	}
	return nil
}

func (r *CachedKnowledgeRepository) key(op string, parts ...interface{}) string {
	b := strings.Builder{}
	b.WriteString(KeyPrefix)
	b.WriteByte(':')
	b.WriteString(op)
	for _, p := range parts {
		b.WriteByte(':')
		if s, ok := p.(string); ok {
			p = knowledge.NormalizeName(s)
		}
		fmt.Fprint(&b, p)
	}
	return b.String()
}

func cached[T any](ctx context.Context, r *CachedKnowledgeRepository, key, op string, load func() (T, error)) (T, error) {
	var value T

	data, err := r.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		if jsonErr := json.Unmarshal(data, &value); jsonErr == nil {
			metrics.RecordKnowledgeCacheHit(r.backend, op)
			return value, nil
		}
		r.log.Warnw("dropping undecodable cache entry", "key", key)
	case err != redis.Nil:
		r.log.Warnw("knowledge cache read failed", "key", key, "error", err)
	}

	value, err = load()
	if err != nil {
		return value, err
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		return value, nil
	}
	if err := r.client.Set(ctx, key, encoded, r.ttl).Err(); err != nil {
		r.log.Warnw("knowledge cache write failed", "key", key, "error", err)
	}

	return value, nil
}
