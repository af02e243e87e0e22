package agents

import (
	"sort"
	"sync"

	"strategist/internal/domain/message"
	"strategist/pkg/errors"
)

// Registry stores agents by name for quick lookup.
type Registry struct {
	agents map[message.AgentName]Agent
	mu     sync.RWMutex
}

// NewRegistry constructs an empty agent registry.
func NewRegistry() *Registry {
	return &Registry{agents: make(map[message.AgentName]Agent)}
}

// Register adds an agent under its own name.
func (r *Registry) Register(ag Agent) error {
	if ag == nil {
		return errors.Wrap(errors.ErrInvalidInput, "nil agent")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.agents[ag.Name()]; exists {
		return errors.Wrapf(errors.ErrInvalidInput, "agent %s already registered", ag.Name())
	}
	r.agents[ag.Name()] = ag
	return nil
}

// Get retrieves an agent by name.
func (r *Registry) Get(name message.AgentName) (Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ag, ok := r.agents[name]
	return ag, ok
}

// List returns registered agent names, sorted.
func (r *Registry) List() []message.AgentName {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res := make([]message.AgentName, 0, len(r.agents))
	for name := range r.agents {
		res = append(res, name)
	}
	sort.Slice(res, func(i, j int) bool { return res[i] < res[j] })
	return res
}
