package knowledge

import "context"

// Repository is the read side of the trading knowledge graph.
// Lists are ordered by descending score.
type Repository interface {
	GetIndicatorsForStrategyType(ctx context.Context, strategyType string, minStrength float64, limit int) ([]Recommendation, error)
	GetPositionSizingForStrategyType(ctx context.Context, strategyType string, minCompatibility float64, limit int) ([]Recommendation, error)
	GetRiskManagementForStrategyType(ctx context.Context, strategyType string, minCompatibility float64, limit int) ([]Recommendation, error)
	GetParametersForIndicator(ctx context.Context, indicator string) ([]IndicatorParameter, error)

	// GetStrategyTemplate returns errors.ErrNotFound for an unknown type.
	GetStrategyTemplate(ctx context.Context, strategyType string) (*StrategyTemplate, error)
	GetRelatedConcepts(ctx context.Context, name string, limit int) ([]Concept, error)
}

// Seeder loads a graph snapshot into a writable store.
type Seeder interface {
	Seed(ctx context.Context, g *Graph) error
}
