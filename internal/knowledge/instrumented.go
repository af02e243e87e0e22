package knowledge

import (
	"context"
	"time"

	kg "strategist/internal/domain/knowledge"
	"strategist/internal/metrics"
)

// InstrumentedRepository records query counts and latency for another repository.
type InstrumentedRepository struct {
	next    kg.Repository
	backend string
}

var _ kg.Repository = (*InstrumentedRepository)(nil)

// Instrument wraps repo. A nil repo stays nil so callers keep treating
// the knowledge base as absent.
func Instrument(repo kg.Repository, backend string) kg.Repository {
	if repo == nil {
		return nil
	}
	return &InstrumentedRepository{next: repo, backend: backend}
}

func (r *InstrumentedRepository) observe(op string, start time.Time, err error) {
	metrics.RecordKnowledgeQuery(r.backend, op, time.Since(start), err)
}

func (r *InstrumentedRepository) GetIndicatorsForStrategyType(ctx context.Context, strategyType string, minStrength float64, limit int) ([]kg.Recommendation, error) {
	start := time.Now()
	out, err := r.next.GetIndicatorsForStrategyType(ctx, strategyType, minStrength, limit)
	r.observe("indicators", start, err)
	return out, err
}

func (r *InstrumentedRepository) GetPositionSizingForStrategyType(ctx context.Context, strategyType string, minCompatibility float64, limit int) ([]kg.Recommendation, error) {
	start := time.Now()
	out, err := r.next.GetPositionSizingForStrategyType(ctx, strategyType, minCompatibility, limit)
	r.observe("position_sizing", start, err)
	return out, err
}

func (r *InstrumentedRepository) GetRiskManagementForStrategyType(ctx context.Context, strategyType string, minCompatibility float64, limit int) ([]kg.Recommendation, error) {
	start := time.Now()
	out, err := r.next.GetRiskManagementForStrategyType(ctx, strategyType, minCompatibility, limit)
	r.observe("risk_management", start, err)
	return out, err
}

func (r *InstrumentedRepository) GetParametersForIndicator(ctx context.Context, indicator string) ([]kg.IndicatorParameter, error) {
	start := time.Now()
	out, err := r.next.GetParametersForIndicator(ctx, indicator)
	r.observe("indicator_parameters", start, err)
	return out, err
}

func (r *InstrumentedRepository) GetStrategyTemplate(ctx context.Context, strategyType string) (*kg.StrategyTemplate, error) {
	start := time.Now()
	out, err := r.next.GetStrategyTemplate(ctx, strategyType)
	r.observe("strategy_template", start, err)
	return out, err
}

func (r *InstrumentedRepository) GetRelatedConcepts(ctx context.Context, name string, limit int) ([]kg.Concept, error) {
	start := time.Now()
	out, err := r.next.GetRelatedConcepts(ctx, name, limit)
	r.observe("related_concepts", start, err)
	return out, err
}
