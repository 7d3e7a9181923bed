package graphstore

import "time"

// Entity is a node in the temporal knowledge graph. Its UUID is a pure
// function of (project_id, entity_type, normalized name) so re-ingesting
// the same canonical name is idempotent (spec.md I1).
type Entity struct {
	UUID             string
	ProjectID        string
	GraphID          string
	Name             string
	EntityType       string
	Summary          string
	Attributes       map[string]any
	SourceEntityTypes []string
	CreatedAt        time.Time
}

// Relation is a bi-temporal edge between two entities. Its UUID is random
// and per-write: multiple facts may coexist between the same pair of nodes.
type Relation struct {
	UUID       string
	ProjectID  string
	GraphID    string
	SourceUUID string
	TargetUUID string
	Name       string
	Fact       string
	FactType   string
	Attributes map[string]any

	CreatedAt  time.Time
	ValidAt    time.Time
	InvalidAt  *time.Time
	ExpiredAt  *time.Time

	Episodes []string
}

// Active reports whether the edge has not been invalidated (spec.md I2).
func (r *Relation) Active() bool {
	return r.InvalidAt == nil
}

// Chunk is a slice of a source document, for the document-ingestion
// collaborator. Not populated by the episodic updater itself.
type Chunk struct {
	ChunkID   string
	ProjectID string
	GraphID   string
	Text      string
	CreatedAt time.Time
}

// Graph is the top-level scoping entity: every store mutation is scoped
// by GraphID (spec.md I6).
type Graph struct {
	GraphID   string
	ProjectID string
	Name      string
	Ontology  string // serialized ontology (JSON)
	CreatedAt time.Time
}

// SimilarEntity is a scored candidate returned by SearchSimilarEntities.
type SimilarEntity struct {
	Entity Entity
	Score  int // exact(3) > prefix(2) > contains(1)
}

// EntityUpdate is a partial update to an existing entity: UpdateEntitySummary.
type EntityUpdate struct {
	UUID              string
	Summary           *string // nil = leave unchanged; non-nil and non-empty overrides
	AppendSourceTypes []string
}
