package knowledge

// NodeKind classifies a knowledge graph node.
type NodeKind string

const (
	KindStrategy       NodeKind = "strategy"
	KindIndicator      NodeKind = "indicator"
	KindPositionSizing NodeKind = "position_sizing"
	KindRiskManagement NodeKind = "risk_management"
	KindConcept        NodeKind = "concept"
)

// RelType is the type of a directed edge.
type RelType string

const (
	RelUsesIndicator    RelType = "USES_INDICATOR"
	RelCompatibleSizing RelType = "COMPATIBLE_WITH_SIZING"
	RelCompatibleRisk   RelType = "COMPATIBLE_WITH_RISK"
	RelRelatedTo        RelType = "RELATED_TO"
)

// Node is an entity in the knowledge graph, identified by kind and name.
type Node struct {
	Name        string   `yaml:"name" json:"name" db:"name"`
	Kind        NodeKind `yaml:"kind" json:"kind" db:"kind"`
	Description string   `yaml:"description" json:"description" db:"description"`

	// Indicator nodes only.
	Parameters []IndicatorParameter `yaml:"parameters,omitempty" json:"parameters,omitempty" db:"-"`

	// Strategy nodes only.
	DefaultParameters map[string]float64 `yaml:"default_parameters,omitempty" json:"default_parameters,omitempty" db:"-"`
}

// Edge is a weighted directed relation. Weight is strength for
// indicators and compatibility for sizing and risk methods. Endpoint
// kinds may be left empty; Graph.Resolve fills them in.
type Edge struct {
	From        string   `yaml:"from" json:"from" db:"from_node"`
	FromKind    NodeKind `yaml:"from_kind,omitempty" json:"from_kind,omitempty" db:"-"`
	To          string   `yaml:"to" json:"to" db:"to_node"`
	ToKind      NodeKind `yaml:"to_kind,omitempty" json:"to_kind,omitempty" db:"-"`
	Rel         RelType  `yaml:"rel" json:"rel" db:"rel"`
	Weight      float64  `yaml:"weight" json:"weight" db:"weight"`
	Explanation string   `yaml:"explanation" json:"explanation" db:"explanation"`
}

// Graph is a full knowledge graph snapshot, as loaded from a seed file.
type Graph struct {
	Nodes []Node `yaml:"nodes" json:"nodes"`
	Edges []Edge `yaml:"edges" json:"edges"`
}

// Recommendation is a ranked neighbour of a strategy type.
type Recommendation struct {
	Name        string  `json:"name"`
	Explanation string  `json:"explanation"`
	Score       float64 `json:"score"`
}

// IndicatorParameter describes an indicator input. DefaultValue is nil
// when the store has no default.
type IndicatorParameter struct {
	Name         string   `yaml:"name" json:"name" db:"name"`
	DefaultValue *float64 `yaml:"default,omitempty" json:"default_value,omitempty" db:"default_value"`
	Description  string   `yaml:"description,omitempty" json:"description,omitempty" db:"description"`
}

// StrategyTemplate is the default shape of a strategy type.
type StrategyTemplate struct {
	StrategyType      string             `json:"strategy_type"`
	Description       string             `json:"description"`
	DefaultParameters map[string]float64 `json:"default_parameters"`
	Indicators        []string           `json:"indicators"`
}

// Concept is a node reached by one hop from a named node.
type Concept struct {
	Name     string   `json:"name"`
	Kind     NodeKind `json:"kind"`
	Relation RelType  `json:"relation"`
	Weight   float64  `json:"weight"`
}
