package postgres

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/lib/pq"

	"strategist/internal/domain/knowledge"
	"strategist/pkg/errors"
)

// Compile-time check
var (
	_ knowledge.Repository = (*KnowledgeRepository)(nil)
	_ knowledge.Seeder     = (*KnowledgeRepository)(nil)
)

// KnowledgeSchema creates the graph tables. Node keys are knowledge.Key
// values, kind plus normalised name, so lookups ignore case and a strategy
// may share its name with an indicator.
const KnowledgeSchema = `
CREATE TABLE IF NOT EXISTS kg_nodes (
	key                TEXT PRIMARY KEY,
	name               TEXT NOT NULL,
	kind               TEXT NOT NULL,
	description        TEXT NOT NULL DEFAULT '',
	default_parameters JSONB NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS kg_edges (
	from_key    TEXT NOT NULL REFERENCES kg_nodes(key) ON DELETE CASCADE,
	to_key      TEXT NOT NULL REFERENCES kg_nodes(key) ON DELETE CASCADE,
	rel         TEXT NOT NULL,
	weight      DOUBLE PRECISION NOT NULL,
	explanation TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (from_key, to_key, rel)
);

CREATE INDEX IF NOT EXISTS kg_edges_rel_idx ON kg_edges (from_key, rel, weight DESC);

CREATE TABLE IF NOT EXISTS kg_indicator_parameters (
	indicator_key TEXT NOT NULL REFERENCES kg_nodes(key) ON DELETE CASCADE,
	position      INT NOT NULL,
	name          TEXT NOT NULL,
	default_value DOUBLE PRECISION,
	description   TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (indicator_key, name)
);
`

// KnowledgeRepository implements knowledge.Repository using PostgreSQL
type KnowledgeRepository struct {
	db DBTX
}

// NewKnowledgeRepository creates a new knowledge repository
func NewKnowledgeRepository(db DBTX) *KnowledgeRepository {
	return &KnowledgeRepository{db: db}
}

// Migrate creates the graph tables when missing
func (r *KnowledgeRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, KnowledgeSchema); err != nil {
		return errors.Wrap(err, "failed to create knowledge schema")
	}
	return nil
}

func (r *KnowledgeRepository) GetIndicatorsForStrategyType(ctx context.Context, strategyType string, minStrength float64, limit int) ([]knowledge.Recommendation, error) {
	return r.neighbours(ctx, strategyType, knowledge.RelUsesIndicator, minStrength, limit)
}

func (r *KnowledgeRepository) GetPositionSizingForStrategyType(ctx context.Context, strategyType string, minCompatibility float64, limit int) ([]knowledge.Recommendation, error) {
	return r.neighbours(ctx, strategyType, knowledge.RelCompatibleSizing, minCompatibility, limit)
}

func (r *KnowledgeRepository) GetRiskManagementForStrategyType(ctx context.Context, strategyType string, minCompatibility float64, limit int) ([]knowledge.Recommendation, error) {
	return r.neighbours(ctx, strategyType, knowledge.RelCompatibleRisk, minCompatibility, limit)
}

func (r *KnowledgeRepository) neighbours(ctx context.Context, from string, rel knowledge.RelType, minWeight float64, limit int) ([]knowledge.Recommendation, error) {
	recs := make([]knowledge.Recommendation, 0)

	query := `
		SELECT n.name AS name, e.explanation AS explanation, e.weight AS score
		FROM kg_edges e
		JOIN kg_nodes n ON n.key = e.to_key
		WHERE e.from_key = $1 AND e.rel = $2 AND e.weight >= $3
		ORDER BY e.weight DESC, n.name ASC
		LIMIT NULLIF($4, 0)`

	fromKind, _ := rel.Endpoints()
	err := r.db.SelectContext(ctx, &recs, query, knowledge.Key(fromKind, from), string(rel), minWeight, limit)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get %s for %s", rel, from)
	}

	return recs, nil
}

// GetParametersForIndicator returns ErrNotFound for an unknown indicator
func (r *KnowledgeRepository) GetParametersForIndicator(ctx context.Context, indicator string) ([]knowledge.IndicatorParameter, error) {
	key := knowledge.Key(knowledge.KindIndicator, indicator)

	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM kg_nodes WHERE key = $1)`, key); err != nil {
		return nil, errors.Wrap(err, "failed to get indicator")
	}
	if !exists {
		return nil, errors.Wrapf(errors.ErrNotFound, "indicator %s", indicator)
	}

	params := make([]knowledge.IndicatorParameter, 0)
	query := `
		SELECT name, default_value, description
		FROM kg_indicator_parameters
		WHERE indicator_key = $1
		ORDER BY position`

	if err := r.db.SelectContext(ctx, &params, query, key); err != nil {
		return nil, errors.Wrap(err, "failed to get indicator parameters")
	}

	return params, nil
}

type nodeRow struct {
	Name              string `db:"name"`
	Description       string `db:"description"`
	DefaultParameters []byte `db:"default_parameters"`
}

func (r *KnowledgeRepository) GetStrategyTemplate(ctx context.Context, strategyType string) (*knowledge.StrategyTemplate, error) {
	var row nodeRow
	query := `
		SELECT name, description, default_parameters
		FROM kg_nodes
		WHERE key = $1`

	err := r.db.GetContext(ctx, &row, query, knowledge.Key(knowledge.KindStrategy, strategyType))
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(errors.ErrNotFound, "strategy type %s", strategyType)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get strategy template")
	}

	tmpl := &knowledge.StrategyTemplate{
		StrategyType:      row.Name,
		Description:       row.Description,
		DefaultParameters: map[string]float64{},
	}
	if len(row.DefaultParameters) > 0 {
		if err := json.Unmarshal(row.DefaultParameters, &tmpl.DefaultParameters); err != nil {
			return nil, errors.Wrap(err, "failed to decode default parameters")
		}
	}

	indicators, err := r.neighbours(ctx, strategyType, knowledge.RelUsesIndicator, 0, 0)
	if err != nil {
		return nil, err
	}
	for _, ind := range indicators {
		tmpl.Indicators = append(tmpl.Indicators, ind.Name)
	}

	return tmpl, nil
}

// GetRelatedConcepts returns nodes one hop away in either direction. A
// name shared by several kinds resolves in knowledge.Kinds order.
func (r *KnowledgeRepository) GetRelatedConcepts(ctx context.Context, name string, limit int) ([]knowledge.Concept, error) {
	candidates := make([]string, len(knowledge.Kinds))
	for i, kind := range knowledge.Kinds {
		candidates[i] = knowledge.Key(kind, name)
	}

	var key string
	err := r.db.GetContext(ctx, &key, `
		SELECT key FROM kg_nodes
		WHERE key = ANY($1)
		ORDER BY array_position($1, key)
		LIMIT 1`, pq.Array(candidates))
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(errors.ErrNotFound, "node %s", name)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to check node")
	}

	concepts := make([]knowledge.Concept, 0)
	query := `
		SELECT DISTINCT ON (n.key) n.name AS name, n.kind AS kind, e.rel AS relation, e.weight AS weight
		FROM kg_edges e
		JOIN kg_nodes n ON n.key = CASE WHEN e.from_key = $1 THEN e.to_key ELSE e.from_key END
		WHERE e.from_key = $1 OR e.to_key = $1
		ORDER BY n.key, e.weight DESC`

	wrapped := `SELECT * FROM (` + query + `) c ORDER BY weight DESC, name ASC LIMIT NULLIF($2, 0)`

	if err := r.db.SelectContext(ctx, &concepts, wrapped, key, limit); err != nil {
		return nil, errors.Wrap(err, "failed to get related concepts")
	}

	return concepts, nil
}

// Seed replaces the stored graph. Runs in one transaction when the
// repository holds a *sqlx.DB. The graph is resolved first, so duplicate
// nodes fail before anything is written.
func (r *KnowledgeRepository) Seed(ctx context.Context, g *knowledge.Graph) error {
	g, err := g.Resolve()
	if err != nil {
		return err
	}

	if beginner, ok := r.db.(txBeginner); ok {
		tx, err := beginner.BeginTxx(ctx, nil)
		if err != nil {
			return errors.Wrap(err, "failed to begin seed transaction")
		}
		if err := seedGraph(ctx, tx, g); err != nil {
			_ = tx.Rollback()
			return err
		}
		return errors.Wrap(tx.Commit(), "failed to commit seed")
	}

	return seedGraph(ctx, r.db, g)
}

func seedGraph(ctx context.Context, db DBTX, g *knowledge.Graph) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM kg_nodes`); err != nil {
		return errors.Wrap(err, "failed to clear knowledge graph")
	}

	for _, n := range g.Nodes {
		defaults, err := json.Marshal(nonNilDefaults(n.DefaultParameters))
		if err != nil {
			return errors.Wrapf(err, "failed to encode defaults for %s", n.Name)
		}

		_, err = db.ExecContext(ctx, `
			INSERT INTO kg_nodes (key, name, kind, description, default_parameters)
			VALUES ($1, $2, $3, $4, $5)`,
			knowledge.Key(n.Kind, n.Name), n.Name, string(n.Kind), n.Description, defaults,
		)
		if err != nil {
			return errors.Wrapf(err, "failed to insert node %s", n.Name)
		}

		for i, p := range n.Parameters {
			_, err := db.ExecContext(ctx, `
				INSERT INTO kg_indicator_parameters (indicator_key, position, name, default_value, description)
				VALUES ($1, $2, $3, $4, $5)`,
				knowledge.Key(n.Kind, n.Name), i, p.Name, p.DefaultValue, p.Description,
			)
			if err != nil {
				return errors.Wrapf(err, "failed to insert parameter %s.%s", n.Name, p.Name)
			}
		}
	}

	for _, e := range g.Edges {
		_, err := db.ExecContext(ctx, `
			INSERT INTO kg_edges (from_key, to_key, rel, weight, explanation)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (from_key, to_key, rel) DO UPDATE
			SET weight = EXCLUDED.weight, explanation = EXCLUDED.explanation`,
			e.FromKey(), e.ToKey(), string(e.Rel), e.Weight, e.Explanation,
		)
		if err != nil {
			return errors.Wrapf(err, "failed to insert edge %s -> %s", e.From, e.To)
		}
	}

	return nil
}

func nonNilDefaults(m map[string]float64) map[string]float64 {
	if m == nil {
		return map[string]float64{}
	}
	return m
}
