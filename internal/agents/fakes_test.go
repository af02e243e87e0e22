package agents

import (
	"context"
	"sync"
	"time"

	"strategist/internal/agents/state"
	kg "strategist/internal/domain/knowledge"
	"strategist/internal/repository/memory"
	"strategist/pkg/errors"
)

// fakeLLM records prompts and replays canned answers. JSON answers are
// consumed in order; the last one repeats.
type fakeLLM struct {
	mu sync.Mutex

	reply   string
	genErr  error
	answers []map[string]any
	jsonErr error

	generatePrompts []string
	extractPrompts  []string
}

func (f *fakeLLM) Generate(_ context.Context, prompt, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.generatePrompts = append(f.generatePrompts, prompt)
	if f.genErr != nil {
		return "", f.genErr
	}
	return f.reply, nil
}

func (f *fakeLLM) ExtractJSON(_ context.Context, prompt, _ string) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.extractPrompts = append(f.extractPrompts, prompt)
	if f.jsonErr != nil {
		return nil, f.jsonErr
	}
	if len(f.answers) == 0 {
		return map[string]any{}, nil
	}
	next := f.answers[0]
	if len(f.answers) > 1 {
		f.answers = f.answers[1:]
	}
	return next, nil
}

// failingRepo fails every query.
type failingRepo struct{ err error }

func (r failingRepo) GetIndicatorsForStrategyType(context.Context, string, float64, int) ([]kg.Recommendation, error) {
	return nil, r.err
}

func (r failingRepo) GetPositionSizingForStrategyType(context.Context, string, float64, int) ([]kg.Recommendation, error) {
	return nil, r.err
}

func (r failingRepo) GetRiskManagementForStrategyType(context.Context, string, float64, int) ([]kg.Recommendation, error) {
	return nil, r.err
}

func (r failingRepo) GetParametersForIndicator(context.Context, string) ([]kg.IndicatorParameter, error) {
	return nil, r.err
}

func (r failingRepo) GetStrategyTemplate(context.Context, string) (*kg.StrategyTemplate, error) {
	return nil, r.err
}

func (r failingRepo) GetRelatedConcepts(context.Context, string, int) ([]kg.Concept, error) {
	return nil, r.err
}

var errRepoDown = errors.Wrap(errors.ErrUnavailable, "graph store down")

func knowledgeRepo() kg.Repository {
	repo, err := memory.NewDefaultKnowledgeRepository()
	if err != nil {
		panic(err)
	}
	return repo
}

// countingKnowledge counts strategy-type lookups on the wrapped repository.
type countingKnowledge struct {
	kg.Repository
	indicatorCalls int
}

func (c *countingKnowledge) GetIndicatorsForStrategyType(ctx context.Context, strategyType string, minStrength float64, limit int) ([]kg.Recommendation, error) {
	c.indicatorCalls++
	return c.Repository.GetIndicatorsForStrategyType(ctx, strategyType, minStrength, limit)
}

var marketEnd = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// system wires the three agents over one bus, the way bootstrap does.
type system struct {
	bus            *Bus
	sessions       *state.Store
	conversational *ConversationalAgent
	validation     *ValidationAgent
	dataFeature    *DataFeatureAgent
	router         *Router
}

func newSystem(model LLM, repo kg.Repository) *system {
	registry := NewRegistry()
	sessions := state.NewStore(100, time.Hour)
	bus := NewBus(registry, sessions, nil)

	s := &system{
		bus:            bus,
		sessions:       sessions,
		conversational: NewConversationalAgent(model, repo, bus, ConversationalConfig{}),
		validation:     NewValidationAgent(model, repo, nil),
		dataFeature:    NewDataFeatureAgent(memory.NewMarketDataRepository(nil, 300, marketEnd)),
	}
	for _, ag := range []Agent{s.conversational, s.validation, s.dataFeature} {
		if err := registry.Register(ag); err != nil {
			panic(err)
		}
	}
	s.router = NewRouter(bus, s.validation, true)
	return s
}
