package graphstore

import (
	"context"
	"time"
)

// Store is the graph-memory-updater's contract with the property-graph
// backend (spec.md §4.2, component C2). Every method is scoped by
// graph_id; cross-graph traversals are forbidden (spec.md I6).
//
// All methods either complete atomically on a single node/edge or are
// safe to retry: upserts are idempotent by uuid (spec.md §4.2 "Failure
// semantics"). Network failures propagate to the caller as
// internal/errors.StoreFailureError.
type Store interface {
	CreateGraph(ctx context.Context, projectID, name, ontology string) (graphID string, err error)
	DeleteGraph(ctx context.Context, graphID string) error

	UpsertEntities(ctx context.Context, entities []Entity) error
	UpsertRelations(ctx context.Context, relations []Relation) error
	UpdateEntitySummary(ctx context.Context, graphID, uuid string, summary *string, appendSourceTypes []string) error

	InvalidateEdge(ctx context.Context, graphID, uuid string, invalidAt time.Time) error
	AddEpisodeToEdges(ctx context.Context, graphID string, uuids []string, episodeID string) error

	FindSimilarEntities(ctx context.Context, graphID, name string, entityType string) ([]Entity, error)
	SearchSimilarEntities(ctx context.Context, graphID, name string, limit int) ([]SimilarEntity, error)

	GetEdgesBetweenEntities(ctx context.Context, graphID, sourceUUID, targetUUID string, includeInvalid bool) ([]Relation, error)
	GetEntityByUUID(ctx context.Context, graphID, uuid string) (*Entity, error)
	GetValidEdgesForEntity(ctx context.Context, graphID, entityUUID string) ([]Relation, error)

	UpsertChunk(ctx context.Context, chunk Chunk) error
	LinkMentions(ctx context.Context, graphID, chunkID string, entityUUIDs []string) error

	Close(ctx context.Context) error
}
