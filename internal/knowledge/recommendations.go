// Package knowledge merges knowledge-graph recommendations into strategy
// parameters and validation feedback. Every function accepts a nil
// repository and degrades to empty results instead of failing.
package knowledge

import (
	"context"
	"fmt"
	"strings"

	kg "strategist/internal/domain/knowledge"
	"strategist/internal/domain/strategy"
	"strategist/pkg/logger"
)

// Thresholds and limits used when querying the repository.
const (
	MinIndicatorStrength      = 0.7
	MinSizingCompatibility    = 0.7
	MinRiskCompatibility      = 0.7
	MaxIndicators             = 3
	MaxPositionSizing         = 1
	MaxRiskManagement         = 2
	DefaultIndicatorParameter = 14.0
)

// Recommendations is the bundle built for one strategy type.
type Recommendations struct {
	StrategyType   string   `json:"strategy_type,omitempty"`
	Indicators     []string `json:"indicators"`
	PositionSizing string   `json:"position_sizing"`
	RiskManagement []string `json:"risk_management"`
	Explanation    string   `json:"explanation"`
}

// IsEmpty reports whether no recommendation was found.
func (r *Recommendations) IsEmpty() bool {
	return r == nil || (len(r.Indicators) == 0 && r.PositionSizing == "" && len(r.RiskManagement) == 0)
}

func emptyRecommendations(strategyType string) *Recommendations {
	return &Recommendations{
		StrategyType:   strategyType,
		Indicators:     []string{},
		RiskManagement: []string{},
	}
}

// GetRecommendations queries indicators, position sizing and risk
// management for strategyType. A repository fault yields empty lists and
// an explanation naming the error.
func GetRecommendations(ctx context.Context, repo kg.Repository, strategyType string) *Recommendations {
	recs := emptyRecommendations(strategyType)
	if repo == nil || strings.TrimSpace(strategyType) == "" {
		return recs
	}

	indicators, err := repo.GetIndicatorsForStrategyType(ctx, strategyType, MinIndicatorStrength, MaxIndicators)
	if err != nil {
		return faulted(ctx, strategyType, err)
	}
	sizing, err := repo.GetPositionSizingForStrategyType(ctx, strategyType, MinSizingCompatibility, MaxPositionSizing)
	if err != nil {
		return faulted(ctx, strategyType, err)
	}
	risk, err := repo.GetRiskManagementForStrategyType(ctx, strategyType, MinRiskCompatibility, MaxRiskManagement)
	if err != nil {
		return faulted(ctx, strategyType, err)
	}

	var rationale []string
	for _, ind := range limit(indicators, MaxIndicators) {
		recs.Indicators = append(recs.Indicators, ind.Name)
		rationale = append(rationale, describe("Indicator", ind))
	}
	if len(sizing) > 0 {
		recs.PositionSizing = sizing[0].Name
		rationale = append(rationale, describe("Position sizing", sizing[0]))
	}
	for _, rm := range limit(risk, MaxRiskManagement) {
		recs.RiskManagement = append(recs.RiskManagement, rm.Name)
		rationale = append(rationale, describe("Risk management", rm))
	}
	recs.Explanation = strings.Join(rationale, " ")

	return recs
}

func faulted(ctx context.Context, strategyType string, err error) *Recommendations {
	logger.Get().WithComponent("knowledge").ErrorWithContext(ctx, err, "strategy_type", strategyType)
	recs := emptyRecommendations(strategyType)
	recs.Explanation = fmt.Sprintf("Error retrieving knowledge recommendations: %v", err)
	return recs
}

func limit(recs []kg.Recommendation, n int) []kg.Recommendation {
	if len(recs) > n {
		return recs[:n]
	}
	return recs
}

func describe(label string, rec kg.Recommendation) string {
	if rec.Explanation == "" {
		return fmt.Sprintf("%s %s is recommended.", label, rec.Name)
	}
	return fmt.Sprintf("%s %s: %s.", label, rec.Name, strings.TrimSuffix(rec.Explanation, "."))
}

// EnhanceValidationFeedback derives one suggestion per matching error:
// period errors name the top indicators, threshold and deviation errors
// point at the knowledge-base defaults. Suggestions are not deduplicated.
func EnhanceValidationFeedback(ctx context.Context, repo kg.Repository, validationErrors []string, strategyType string) []string {
	if repo == nil || len(validationErrors) == 0 {
		return nil
	}

	var (
		suggestions []string
		indicators  []string
		fetched     bool
	)
	for _, e := range validationErrors {
		lower := strings.ToLower(e)

		if strings.Contains(lower, "lookback_period") || strings.Contains(lower, "period") {
			if !fetched {
				indicators = GetRecommendations(ctx, repo, strategyType).Indicators
				fetched = true
			}
			if len(indicators) > 0 {
				suggestions = append(suggestions, fmt.Sprintf(
					"For %s strategies, calibrate the period against %s, the indicators the knowledge base recommends.",
					strategyType, strings.Join(indicators, ", ")))
			}
		}

		if strings.Contains(lower, "threshold") || strings.Contains(lower, "deviation") {
			suggestions = append(suggestions, fmt.Sprintf(
				"Consider starting from the knowledge base default thresholds for %s strategies.", strategyType))
		}
	}
	return suggestions
}

// EnhanceStrategy returns a copy of params with recommended indicators,
// position sizing, risk management and rationale added. Only those keys
// and strategy_type are written; every other key is preserved. params is
// returned unchanged when it has no strategy type or repo is nil.
func EnhanceStrategy(ctx context.Context, repo kg.Repository, params *strategy.Params) *strategy.Params {
	if params == nil || repo == nil || strings.TrimSpace(params.StrategyType) == "" {
		return params
	}
	return ApplyRecommendations(ctx, repo, params, GetRecommendations(ctx, repo, params.StrategyType))
}

// ApplyRecommendations is EnhanceStrategy for callers that already hold
// the recommendations; repo is only asked for indicator parameters.
func ApplyRecommendations(ctx context.Context, repo kg.Repository, params *strategy.Params, recs *Recommendations) *strategy.Params {
	if params == nil || repo == nil || recs == nil || strings.TrimSpace(params.StrategyType) == "" {
		return params
	}

	out := params.Clone()

	if len(recs.Indicators) > 0 {
		out.Indicators = make([]strategy.Indicator, 0, len(recs.Indicators))
		for _, name := range recs.Indicators {
			out.Indicators = append(out.Indicators, strategy.Indicator{
				Name:       name,
				Parameters: indicatorDefaults(ctx, repo, name),
			})
		}
	}
	if recs.PositionSizing != "" {
		out.PositionSizing = recs.PositionSizing
	}
	if len(recs.RiskManagement) > 0 {
		out.RiskManagement = append([]string{}, recs.RiskManagement...)
	}
	out.Explanation = appendRationale(out.Explanation, recs.Explanation)

	return out
}

func indicatorDefaults(ctx context.Context, repo kg.Repository, indicator string) map[string]float64 {
	params, err := repo.GetParametersForIndicator(ctx, indicator)
	if err != nil || len(params) == 0 {
		return map[string]float64{"period": DefaultIndicatorParameter}
	}

	out := make(map[string]float64, len(params))
	for _, p := range params {
		if p.DefaultValue != nil {
			out[p.Name] = *p.DefaultValue
		} else {
			out[p.Name] = DefaultIndicatorParameter
		}
	}
	return out
}

func appendRationale(existing, rationale string) string {
	rationale = strings.TrimSpace(rationale)
	switch {
	case rationale == "":
		return existing
	case existing == "":
		return rationale
	case strings.Contains(existing, rationale):
		return existing
	default:
		return existing + "\n" + rationale
	}
}
