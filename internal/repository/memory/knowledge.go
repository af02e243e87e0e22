package memory

import (
	"context"
	_ "embed"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"strategist/internal/domain/knowledge"
	"strategist/pkg/errors"
)

//go:embed seed/knowledge.yaml
var defaultSeed []byte

// DefaultGraph returns the bundled knowledge graph.
func DefaultGraph() (*knowledge.Graph, error) {
	return ParseGraph(defaultSeed)
}

// LoadGraph reads a knowledge graph from a YAML file.
func LoadGraph(path string) (*knowledge.Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read knowledge seed %s", path)
	}
	return ParseGraph(data)
}

// ParseGraph decodes a YAML graph and resolves it: node keys must be
// unique and every edge must join known nodes.
func ParseGraph(data []byte) (*knowledge.Graph, error) {
	var g knowledge.Graph
	if err := yaml.Unmarshal(data, &g); err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "decode knowledge seed: %v", err)
	}
	return g.Resolve()
}

// KnowledgeRepository serves the knowledge graph from memory. All maps
// are keyed by knowledge.Key.
type KnowledgeRepository struct {
	mu       sync.RWMutex
	nodes    map[string]knowledge.Node
	outgoing map[string][]knowledge.Edge
	incoming map[string][]knowledge.Edge
}

var (
	_ knowledge.Repository = (*KnowledgeRepository)(nil)
	_ knowledge.Seeder     = (*KnowledgeRepository)(nil)
)

// NewKnowledgeRepository creates a repository holding g.
func NewKnowledgeRepository(g *knowledge.Graph) (*KnowledgeRepository, error) {
	r := &KnowledgeRepository{}
	if err := r.load(g); err != nil {
		return nil, err
	}
	return r, nil
}

// NewDefaultKnowledgeRepository creates a repository from the bundled graph.
func NewDefaultKnowledgeRepository() (*KnowledgeRepository, error) {
	g, err := DefaultGraph()
	if err != nil {
		return nil, err
	}
	return NewKnowledgeRepository(g)
}

// Seed replaces the whole graph. An invalid graph leaves the old one in place.
func (r *KnowledgeRepository) Seed(_ context.Context, g *knowledge.Graph) error {
	return r.load(g)
}

func (r *KnowledgeRepository) load(g *knowledge.Graph) error {
	resolved, err := g.Resolve()
	if err != nil {
		return err
	}

	nodes := make(map[string]knowledge.Node, len(resolved.Nodes))
	outgoing := make(map[string][]knowledge.Edge)
	incoming := make(map[string][]knowledge.Edge)
	for _, n := range resolved.Nodes {
		nodes[knowledge.Key(n.Kind, n.Name)] = n
	}
	for _, e := range resolved.Edges {
		outgoing[e.FromKey()] = append(outgoing[e.FromKey()], e)
		incoming[e.ToKey()] = append(incoming[e.ToKey()], e)
	}

	r.mu.Lock()
	r.nodes, r.outgoing, r.incoming = nodes, outgoing, incoming
	r.mu.Unlock()
	return nil
}

func (r *KnowledgeRepository) GetIndicatorsForStrategyType(_ context.Context, strategyType string, minStrength float64, limit int) ([]knowledge.Recommendation, error) {
	return r.neighbours(strategyType, knowledge.RelUsesIndicator, minStrength, limit), nil
}

func (r *KnowledgeRepository) GetPositionSizingForStrategyType(_ context.Context, strategyType string, minCompatibility float64, limit int) ([]knowledge.Recommendation, error) {
	return r.neighbours(strategyType, knowledge.RelCompatibleSizing, minCompatibility, limit), nil
}

func (r *KnowledgeRepository) GetRiskManagementForStrategyType(_ context.Context, strategyType string, minCompatibility float64, limit int) ([]knowledge.Recommendation, error) {
	return r.neighbours(strategyType, knowledge.RelCompatibleRisk, minCompatibility, limit), nil
}

// GetParametersForIndicator returns ErrNotFound for an unknown indicator.
func (r *KnowledgeRepository) GetParametersForIndicator(_ context.Context, indicator string) ([]knowledge.IndicatorParameter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	node, ok := r.nodes[knowledge.Key(knowledge.KindIndicator, indicator)]
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "indicator %s", indicator)
	}

	params := make([]knowledge.IndicatorParameter, len(node.Parameters))
	copy(params, node.Parameters)
	return params, nil
}

func (r *KnowledgeRepository) GetStrategyTemplate(_ context.Context, strategyType string) (*knowledge.StrategyTemplate, error) {
	r.mu.RLock()
	node, ok := r.nodes[knowledge.Key(knowledge.KindStrategy, strategyType)]
	r.mu.RUnlock()

	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "strategy type %s", strategyType)
	}

	tmpl := &knowledge.StrategyTemplate{
		StrategyType:      node.Name,
		Description:       node.Description,
		DefaultParameters: make(map[string]float64, len(node.DefaultParameters)),
	}
	for k, v := range node.DefaultParameters {
		tmpl.DefaultParameters[k] = v
	}
	for _, rec := range r.neighbours(strategyType, knowledge.RelUsesIndicator, 0, 0) {
		tmpl.Indicators = append(tmpl.Indicators, rec.Name)
	}
	return tmpl, nil
}

// GetRelatedConcepts returns every node one hop away in either direction.
// A name shared by several kinds resolves in knowledge.Kinds order.
func (r *KnowledgeRepository) GetRelatedConcepts(_ context.Context, name string, limit int) ([]knowledge.Concept, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	key, ok := r.lookup(name)
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "node %s", name)
	}

	seen := make(map[string]bool)
	var out []knowledge.Concept
	add := func(otherKey string, e knowledge.Edge) {
		if seen[otherKey] {
			return
		}
		seen[otherKey] = true
		node := r.nodes[otherKey]
		out = append(out, knowledge.Concept{
			Name:     node.Name,
			Kind:     node.Kind,
			Relation: e.Rel,
			Weight:   e.Weight,
		})
	}
	for _, e := range r.outgoing[key] {
		add(e.ToKey(), e)
	}
	for _, e := range r.incoming[key] {
		add(e.FromKey(), e)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Weight != out[j].Weight {
			return out[i].Weight > out[j].Weight
		}
		return out[i].Name < out[j].Name
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *KnowledgeRepository) neighbours(from string, rel knowledge.RelType, minWeight float64, limit int) []knowledge.Recommendation {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fromKind, _ := rel.Endpoints()
	out := make([]knowledge.Recommendation, 0)
	for _, e := range r.outgoing[knowledge.Key(fromKind, from)] {
		if e.Rel != rel || e.Weight < minWeight {
			continue
		}
		out = append(out, knowledge.Recommendation{Name: e.To, Explanation: e.Explanation, Score: e.Weight})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Name < out[j].Name
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (r *KnowledgeRepository) lookup(name string) (string, bool) {
	for _, kind := range knowledge.Kinds {
		key := knowledge.Key(kind, name)
		if _, ok := r.nodes[key]; ok {
			return key, true
		}
	}
	// kinds outside knowledge.Kinds
	var found string
	target := knowledge.NormalizeName(name)
	for key, n := range r.nodes {
		if knowledge.NormalizeName(n.Name) == target && (found == "" || key < found) {
			found = key
		}
	}
	return found, found != ""
}
