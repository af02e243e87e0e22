package ai

import "context"

// Provider defines the metadata contract each AI provider implementation must satisfy.
type Provider interface {
	Name() string

	// GetModel returns metadata for a specific model.
	GetModel(ctx context.Context, model string) (ModelInfo, error)

	// ListModels returns the list of models the provider is configured for.
	ListModels(ctx context.Context) ([]ModelInfo, error)
}

// ModelInfo describes a model and its pricing.
type ModelInfo struct {
	Provider        ProviderName
	Name            string  // Provider-specific model identifier
	Family          string  // Family/category name (e.g., "gpt-4o")
	MaxTokens       int     // Maximum context length
	InputCostPer1K  float64 // USD per 1K input tokens
	OutputCostPer1K float64 // USD per 1K output tokens
	SupportsJSON    bool    // Whether a JSON response mode is available
}

func findModel(models []ModelInfo, name string) (ModelInfo, bool) {
	for _, m := range models {
		if equalFold(m.Name, name) {
			return m, true
		}
	}
	return ModelInfo{}, false
}
