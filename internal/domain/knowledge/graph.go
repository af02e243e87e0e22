package knowledge

import (
	"strings"

	"strategist/pkg/errors"
)

// Kinds lists node kinds in the order name-only lookups try them.
var Kinds = []NodeKind{KindStrategy, KindIndicator, KindPositionSizing, KindRiskManagement, KindConcept}

var nameReplacer = strings.NewReplacer(" ", "_", "-", "_")

// NormalizeName makes names case and separator insensitive.
func NormalizeName(name string) string {
	return nameReplacer.Replace(strings.ToLower(strings.TrimSpace(name)))
}

// Key identifies a node. Names are unique per kind only: the rsi strategy
// and the RSI indicator are different nodes.
func Key(kind NodeKind, name string) string {
	return string(kind) + ":" + NormalizeName(name)
}

// Endpoints returns the node kinds r joins. An empty kind accepts any node.
func (r RelType) Endpoints() (from, to NodeKind) {
	switch r {
	case RelUsesIndicator:
		return KindStrategy, KindIndicator
	case RelCompatibleSizing:
		return KindStrategy, KindPositionSizing
	case RelCompatibleRisk:
		return KindStrategy, KindRiskManagement
	default:
		return "", ""
	}
}

// FromKey and ToKey are only meaningful on a resolved graph.
func (e Edge) FromKey() string { return Key(e.FromKind, e.From) }
func (e Edge) ToKey() string   { return Key(e.ToKind, e.To) }

// Resolve returns a copy of g in which every edge carries the kinds of
// the nodes it joins. An endpoint kind comes from the edge itself, then
// from the relation, then from the only node with that name. Duplicate
// nodes and edges to unknown or ambiguous names are errors.
func (g *Graph) Resolve() (*Graph, error) {
	if g == nil {
		return nil, errors.Wrap(errors.ErrInvalidInput, "nil graph")
	}

	kinds := make(map[string][]NodeKind, len(g.Nodes))
	seen := make(map[string]struct{}, len(g.Nodes))

	var errs errors.MultiError
	for i, n := range g.Nodes {
		key := Key(n.Kind, n.Name)
		if _, dup := seen[key]; dup {
			errs.Add(errors.NewValidationError("nodes", "duplicate node", map[string]any{"index": i, "kind": n.Kind, "name": n.Name}))
			continue
		}
		seen[key] = struct{}{}
		name := NormalizeName(n.Name)
		kinds[name] = append(kinds[name], n.Kind)
	}

	out := &Graph{Nodes: g.Nodes, Edges: make([]Edge, len(g.Edges))}
	for i, e := range g.Edges {
		from, to := e.Rel.Endpoints()
		var ok bool
		if e.FromKind, ok = resolveKind(e.FromKind, from, kinds[NormalizeName(e.From)]); !ok {
			errs.Add(errors.NewValidationError("edges", "unknown or ambiguous source node", map[string]any{"index": i, "from": e.From}))
		}
		if e.ToKind, ok = resolveKind(e.ToKind, to, kinds[NormalizeName(e.To)]); !ok {
			errs.Add(errors.NewValidationError("edges", "unknown or ambiguous target node", map[string]any{"index": i, "to": e.To}))
		}
		out.Edges[i] = e
	}
	if err := errs.ToError(); err != nil {
		return nil, err
	}
	return out, nil
}

func resolveKind(declared, implied NodeKind, candidates []NodeKind) (NodeKind, bool) {
	want := declared
	if want == "" {
		want = implied
	}
	if want == "" {
		if len(candidates) == 1 {
			return candidates[0], true
		}
		return "", false
	}
	for _, k := range candidates {
		if k == want {
			return want, true
		}
	}
	return "", false
}
