package ai

import (
	"context"
	"sort"
	"sync"

	"strategist/pkg/errors"
)

// ProviderRegistry stores the configured chat providers.
type ProviderRegistry struct {
	providers map[string]ChatProvider
	mu        sync.RWMutex
}

// NewProviderRegistry creates an empty registry.
func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		providers: make(map[string]ChatProvider),
	}
}

// Register adds a provider to the registry.
func (r *ProviderRegistry) Register(provider ChatProvider) error {
	if provider == nil {
		return errors.Wrap(errors.ErrInvalidInput, "provider is nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	name := provider.Name()
	if _, exists := r.providers[name]; exists {
		return errors.Wrapf(errors.ErrInvalidInput, "provider %s already registered", name)
	}

	r.providers[name] = provider
	return nil
}

// Get returns the provider by name.
func (r *ProviderRegistry) Get(name string) (ChatProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	provider, ok := r.providers[NormalizeProviderName(name).String()]
	if !ok {
		return nil, errors.Wrapf(errors.ErrProviderNotFound, "%s", name)
	}
	return provider, nil
}

// Names returns registered provider names, sorted.
func (r *ProviderRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ResolveModel fetches model metadata for provider+model combination.
func (r *ProviderRegistry) ResolveModel(ctx context.Context, providerName string, model string) (ModelInfo, error) {
	provider, err := r.Get(providerName)
	if err != nil {
		return ModelInfo{}, err
	}
	return provider.GetModel(ctx, model)
}
