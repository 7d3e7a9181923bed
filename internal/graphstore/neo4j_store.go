package graphstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	apperrors "github.com/mirofish/graphmemd/internal/errors"
)

// Neo4jStore implements Store against a Neo4j (or Bolt-compatible,
// Cypher-speaking) property graph, grounded in the teacher's
// internal/graph/{neo4j_client,neo4j_backend,cypher_builder}.go MERGE
// idiom, generalized from the teacher's generic GraphNode/GraphEdge shape
// to this domain's Entity/Relation/Chunk/Graph model.
type Neo4jStore struct {
	client *Client
	logger *slog.Logger
}

// NewNeo4jStore wraps an already-connected Client.
func NewNeo4jStore(client *Client) *Neo4jStore {
	return &Neo4jStore{client: client, logger: slog.Default().With("component", "graphstore")}
}

var _ Store = (*Neo4jStore)(nil)

func (s *Neo4jStore) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}

// CreateGraph generates a graph id and persists the graph's meta node.
func (s *Neo4jStore) CreateGraph(ctx context.Context, projectID, name, ontology string) (string, error) {
	graphID := NewGraphID()
	query := `
		MERGE (g:Graph {graph_id: $graph_id})
		ON CREATE SET g.project_id = $project_id, g.name = $name, g.ontology = $ontology,
		              g.created_at = $created_at
		RETURN g.graph_id AS graph_id`
	_, err := s.client.run(ctx, query, map[string]any{
		"graph_id":   graphID,
		"project_id": projectID,
		"name":       name,
		"ontology":   ontology,
		"created_at": timeToParam(time.Now()),
	})
	if err != nil {
		return "", apperrors.StoreFailureError(err, "create graph failed")
	}
	return graphID, nil
}

// DeleteGraph removes the graph's meta node and every Entity/Relation/Chunk
// scoped to it in one operation, per spec.md I5.
func (s *Neo4jStore) DeleteGraph(ctx context.Context, graphID string) error {
	query := `
		MATCH (n) WHERE (n:Entity OR n:Chunk) AND n.graph_id = $graph_id
		DETACH DELETE n
		WITH 1 AS done
		MATCH (g:Graph {graph_id: $graph_id})
		DETACH DELETE g`
	if _, err := s.client.run(ctx, query, map[string]any{"graph_id": graphID}); err != nil {
		return apperrors.StoreFailureError(err, "delete graph failed")
	}
	return nil
}

// UpsertEntities is idempotent by uuid. On conflict: replace name/
// entity_type, replace summary only if the new one is non-empty,
// union-append source_entity_types, and preserve created_at.
func (s *Neo4jStore) UpsertEntities(ctx context.Context, entities []Entity) error {
	for _, e := range entities {
		attrsJSON, err := marshalAttrs(e.Attributes)
		if err != nil {
			return apperrors.StoreFailureError(err, "marshal entity attributes")
		}
		query := `
			MERGE (e:Entity {uuid: $uuid})
			ON CREATE SET e.created_at = $created_at, e.project_id = $project_id, e.graph_id = $graph_id,
			              e.source_entity_types = []
			SET e.name = $name,
			    e.entity_type = $entity_type,
			    e.attributes = $attributes,
			    e.summary = CASE WHEN $summary <> '' THEN $summary ELSE coalesce(e.summary, '') END,
			    e.source_entity_types = coalesce(e.source_entity_types, []) +
			        [t IN $source_types WHERE NOT t IN coalesce(e.source_entity_types, [])]
			RETURN e.uuid AS uuid`
		_, err = s.client.run(ctx, query, map[string]any{
			"uuid":          e.UUID,
			"project_id":    e.ProjectID,
			"graph_id":      e.GraphID,
			"name":          e.Name,
			"entity_type":   e.EntityType,
			"summary":       e.Summary,
			"attributes":    attrsJSON,
			"source_types":  e.SourceEntityTypes,
			"created_at":    timeToParam(e.CreatedAt),
		})
		if err != nil {
			return apperrors.StoreFailureError(err, fmt.Sprintf("upsert entity %s failed", e.UUID))
		}
	}
	return nil
}

// UpdateEntitySummary applies a partial update: a non-empty summary
// overrides, and AppendSourceTypes is union-appended.
func (s *Neo4jStore) UpdateEntitySummary(ctx context.Context, graphID, uuid string, summary *string, appendSourceTypes []string) error {
	newSummary := ""
	if summary != nil {
		newSummary = *summary
	}
	query := `
		MATCH (e:Entity {uuid: $uuid, graph_id: $graph_id})
		SET e.summary = CASE WHEN $summary <> '' THEN $summary ELSE coalesce(e.summary, '') END,
		    e.source_entity_types = coalesce(e.source_entity_types, []) +
		        [t IN $append_types WHERE NOT t IN coalesce(e.source_entity_types, [])]
		RETURN e.uuid AS uuid`
	_, err := s.client.run(ctx, query, map[string]any{
		"uuid":         uuid,
		"graph_id":     graphID,
		"summary":      newSummary,
		"append_types": appendSourceTypes,
	})
	if err != nil {
		return apperrors.StoreFailureError(err, fmt.Sprintf("update entity summary %s failed", uuid))
	}
	return nil
}

// UpsertRelations is idempotent by uuid. On conflict: set name/fact/
// attributes, preserve created_at, set valid_at only if absent, and
// union-append episodes.
func (s *Neo4jStore) UpsertRelations(ctx context.Context, relations []Relation) error {
	for _, r := range relations {
		attrsJSON, err := marshalAttrs(r.Attributes)
		if err != nil {
			return apperrors.StoreFailureError(err, "marshal relation attributes")
		}
		query := `
			MATCH (s:Entity {uuid: $source_uuid}), (t:Entity {uuid: $target_uuid})
			MERGE (s)-[r:REL {uuid: $uuid}]->(t)
			ON CREATE SET r.created_at = $created_at, r.project_id = $project_id, r.graph_id = $graph_id,
			              r.episodes = []
			SET r.name = $name,
			    r.fact = $fact,
			    r.fact_type = $fact_type,
			    r.attributes = $attributes,
			    r.valid_at = CASE WHEN r.valid_at IS NULL THEN $valid_at ELSE r.valid_at END,
			    r.episodes = coalesce(r.episodes, []) +
			        [ep IN $episodes WHERE NOT ep IN coalesce(r.episodes, [])]
			RETURN r.uuid AS uuid`
		result, err := s.client.run(ctx, query, map[string]any{
			"uuid":        r.UUID,
			"source_uuid": r.SourceUUID,
			"target_uuid": r.TargetUUID,
			"project_id":  r.ProjectID,
			"graph_id":    r.GraphID,
			"name":        r.Name,
			"fact":        r.Fact,
			"fact_type":   r.FactType,
			"attributes":  attrsJSON,
			"valid_at":    timeToParam(r.ValidAt),
			"created_at":  timeToParam(r.CreatedAt),
			"episodes":    r.Episodes,
		})
		if err != nil {
			return apperrors.StoreFailureError(err, fmt.Sprintf("upsert relation %s failed", r.UUID))
		}
		if len(result.Records) == 0 {
			return apperrors.StoreFailureError(nil, fmt.Sprintf(
				"upsert relation %s failed: source or target entity not found", r.UUID))
		}
	}
	return nil
}

// InvalidateEdge sets invalid_at and expired_at. Idempotent: re-invalidating
// an already-invalid edge is a no-op per spec.md's "first contradiction wins".
func (s *Neo4jStore) InvalidateEdge(ctx context.Context, graphID, uuid string, invalidAt time.Time) error {
	query := `
		MATCH ()-[r:REL {uuid: $uuid, graph_id: $graph_id}]->()
		SET r.invalid_at = CASE WHEN r.invalid_at IS NULL THEN $invalid_at ELSE r.invalid_at END,
		    r.expired_at = r.invalid_at
		RETURN r.uuid AS uuid`
	if _, err := s.client.run(ctx, query, map[string]any{
		"uuid":       uuid,
		"graph_id":   graphID,
		"invalid_at": timeToParam(invalidAt),
	}); err != nil {
		return apperrors.StoreFailureError(err, fmt.Sprintf("invalidate edge %s failed", uuid))
	}
	return nil
}

// AddEpisodeToEdges union-appends an episode id onto each given edge.
func (s *Neo4jStore) AddEpisodeToEdges(ctx context.Context, graphID string, uuids []string, episodeID string) error {
	query := `
		MATCH ()-[r:REL {graph_id: $graph_id}]->()
		WHERE r.uuid IN $uuids AND NOT $episode_id IN coalesce(r.episodes, [])
		SET r.episodes = coalesce(r.episodes, []) + $episode_id`
	if _, err := s.client.run(ctx, query, map[string]any{
		"graph_id":   graphID,
		"uuids":      uuids,
		"episode_id": episodeID,
	}); err != nil {
		return apperrors.StoreFailureError(err, "add episode to edges failed")
	}
	return nil
}

// FindSimilarEntities does an exact (case-insensitive) name match,
// optionally filtered by entity type.
func (s *Neo4jStore) FindSimilarEntities(ctx context.Context, graphID, name, entityType string) ([]Entity, error) {
	query := `
		MATCH (e:Entity {graph_id: $graph_id})
		WHERE toLower(e.name) = toLower($name) AND ($entity_type = '' OR e.entity_type = $entity_type)
		RETURN e`
	result, err := s.client.runRead(ctx, query, map[string]any{
		"graph_id":    graphID,
		"name":        name,
		"entity_type": entityType,
	})
	if err != nil {
		return nil, apperrors.StoreFailureError(err, "find similar entities failed")
	}
	out := make([]Entity, 0, len(result.Records))
	for _, rec := range result.Records {
		node, ok := rec.Get("e")
		if !ok {
			continue
		}
		ent, err := entityFromNode(node.(neo4j.Node))
		if err != nil {
			return nil, apperrors.StoreFailureError(err, "decode entity")
		}
		out = append(out, ent)
	}
	return out, nil
}

// SearchSimilarEntities returns up to limit candidates scored by match
// class: exact(3) > prefix(2) > contains(1) over normalized names,
// ordered by score then name (spec.md §4.2).
func (s *Neo4jStore) SearchSimilarEntities(ctx context.Context, graphID, name string, limit int) ([]SimilarEntity, error) {
	normalized := normalizeForSearch(name)
	query := `
		MATCH (e:Entity {graph_id: $graph_id})
		WHERE toLower(e.name) CONTAINS $fragment OR $fragment CONTAINS toLower(e.name)
		RETURN e
		LIMIT 500`
	fragment := normalized
	if len(fragment) > 6 {
		fragment = fragment[:6]
	}
	result, err := s.client.runRead(ctx, query, map[string]any{
		"graph_id": graphID,
		"fragment": fragment,
	})
	if err != nil {
		return nil, apperrors.StoreFailureError(err, "search similar entities failed")
	}

	scored := make([]SimilarEntity, 0, len(result.Records))
	for _, rec := range result.Records {
		node, ok := rec.Get("e")
		if !ok {
			continue
		}
		ent, err := entityFromNode(node.(neo4j.Node))
		if err != nil {
			continue
		}
		candNorm := normalizeForSearch(ent.Name)
		score := matchScore(normalized, candNorm)
		if score == 0 {
			continue
		}
		scored = append(scored, SimilarEntity{Entity: ent, Score: score})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Entity.Name < scored[j].Entity.Name
	})
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

// matchScore implements exact(3) > prefix(2) > contains(1) > 0.
func matchScore(normalizedQuery, normalizedCandidate string) int {
	if normalizedQuery == normalizedCandidate {
		return 3
	}
	if strings.HasPrefix(normalizedCandidate, normalizedQuery) || strings.HasPrefix(normalizedQuery, normalizedCandidate) {
		return 2
	}
	if strings.Contains(normalizedCandidate, normalizedQuery) || strings.Contains(normalizedQuery, normalizedCandidate) {
		return 1
	}
	return 0
}

func normalizeForSearch(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(name))), " ")
}

// GetEdgesBetweenEntities returns the (bounded) list of edges from source
// to target, optionally including invalidated ones.
func (s *Neo4jStore) GetEdgesBetweenEntities(ctx context.Context, graphID, sourceUUID, targetUUID string, includeInvalid bool) ([]Relation, error) {
	query := `
		MATCH (s:Entity {uuid: $source_uuid})-[r:REL {graph_id: $graph_id}]->(t:Entity {uuid: $target_uuid})
		WHERE $include_invalid OR r.invalid_at IS NULL
		RETURN r, s.uuid AS source_uuid, t.uuid AS target_uuid
		LIMIT 200`
	result, err := s.client.runRead(ctx, query, map[string]any{
		"graph_id":        graphID,
		"source_uuid":     sourceUUID,
		"target_uuid":     targetUUID,
		"include_invalid": includeInvalid,
	})
	if err != nil {
		return nil, apperrors.StoreFailureError(err, "get edges between entities failed")
	}
	return relationsFromRecords(result.Records)
}

// GetEntityByUUID looks up a single entity.
func (s *Neo4jStore) GetEntityByUUID(ctx context.Context, graphID, uuid string) (*Entity, error) {
	query := `MATCH (e:Entity {uuid: $uuid, graph_id: $graph_id}) RETURN e`
	result, err := s.client.runRead(ctx, query, map[string]any{"uuid": uuid, "graph_id": graphID})
	if err != nil {
		return nil, apperrors.StoreFailureError(err, "get entity by uuid failed")
	}
	if len(result.Records) == 0 {
		return nil, nil
	}
	node, _ := result.Records[0].Get("e")
	ent, err := entityFromNode(node.(neo4j.Node))
	if err != nil {
		return nil, apperrors.StoreFailureError(err, "decode entity")
	}
	return &ent, nil
}

// GetValidEdgesForEntity returns all active (non-invalidated) edges
// touching the given entity, in either direction.
func (s *Neo4jStore) GetValidEdgesForEntity(ctx context.Context, graphID, entityUUID string) ([]Relation, error) {
	query := `
		MATCH (e:Entity {uuid: $uuid, graph_id: $graph_id})-[r:REL {graph_id: $graph_id}]-(other:Entity)
		WHERE r.invalid_at IS NULL
		RETURN r,
		       CASE WHEN startNode(r) = e THEN e.uuid ELSE other.uuid END AS source_uuid,
		       CASE WHEN startNode(r) = e THEN other.uuid ELSE e.uuid END AS target_uuid`
	result, err := s.client.runRead(ctx, query, map[string]any{"uuid": entityUUID, "graph_id": graphID})
	if err != nil {
		return nil, apperrors.StoreFailureError(err, "get valid edges for entity failed")
	}
	return relationsFromRecords(result.Records)
}

// UpsertChunk is idempotent by chunk_id.
func (s *Neo4jStore) UpsertChunk(ctx context.Context, chunk Chunk) error {
	query := `
		MERGE (c:Chunk {chunk_id: $chunk_id})
		ON CREATE SET c.created_at = $created_at
		SET c.project_id = $project_id, c.graph_id = $graph_id, c.text = $text`
	if _, err := s.client.run(ctx, query, map[string]any{
		"chunk_id":   chunk.ChunkID,
		"project_id": chunk.ProjectID,
		"graph_id":   chunk.GraphID,
		"text":       chunk.Text,
		"created_at": timeToParam(chunk.CreatedAt),
	}); err != nil {
		return apperrors.StoreFailureError(err, "upsert chunk failed")
	}
	return nil
}

// LinkMentions creates :MENTIONS edges from a chunk to each entity uuid.
func (s *Neo4jStore) LinkMentions(ctx context.Context, graphID, chunkID string, entityUUIDs []string) error {
	query := `
		MATCH (c:Chunk {chunk_id: $chunk_id, graph_id: $graph_id})
		UNWIND $uuids AS euuid
		MATCH (e:Entity {uuid: euuid, graph_id: $graph_id})
		MERGE (c)-[:MENTIONS]->(e)`
	if _, err := s.client.run(ctx, query, map[string]any{
		"chunk_id": chunkID,
		"graph_id": graphID,
		"uuids":    entityUUIDs,
	}); err != nil {
		return apperrors.StoreFailureError(err, "link mentions failed")
	}
	return nil
}

// --- conversions -----------------------------------------------------

func marshalAttrs(attrs map[string]any) (string, error) {
	if attrs == nil {
		attrs = map[string]any{}
	}
	b, err := json.Marshal(attrs)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalAttrs(raw any) map[string]any {
	s, ok := raw.(string)
	if !ok || s == "" {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return map[string]any{}
	}
	return m
}

func timeToParam(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTimeProp(v any) time.Time {
	s, ok := v.(string)
	if !ok || s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func parseTimePropPtr(v any) *time.Time {
	s, ok := v.(string)
	if !ok || s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil
	}
	return &t
}

func stringSliceProp(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func entityFromNode(n neo4j.Node) (Entity, error) {
	props := n.Props
	return Entity{
		UUID:              asString(props["uuid"]),
		ProjectID:         asString(props["project_id"]),
		GraphID:           asString(props["graph_id"]),
		Name:              asString(props["name"]),
		EntityType:        asString(props["entity_type"]),
		Summary:           asString(props["summary"]),
		Attributes:        unmarshalAttrs(props["attributes"]),
		SourceEntityTypes: stringSliceProp(props["source_entity_types"]),
		CreatedAt:         parseTimeProp(props["created_at"]),
	}, nil
}

func relationsFromRecords(records []*neo4j.Record) ([]Relation, error) {
	out := make([]Relation, 0, len(records))
	for _, rec := range records {
		raw, ok := rec.Get("r")
		if !ok {
			continue
		}
		rel := raw.(neo4j.Relationship)
		props := rel.Props
		r := Relation{
			UUID:       asString(props["uuid"]),
			ProjectID:  asString(props["project_id"]),
			GraphID:    asString(props["graph_id"]),
			Name:       asString(props["name"]),
			Fact:       asString(props["fact"]),
			FactType:   asString(props["fact_type"]),
			Attributes: unmarshalAttrs(props["attributes"]),
			CreatedAt:  parseTimeProp(props["created_at"]),
			ValidAt:    parseTimeProp(props["valid_at"]),
			InvalidAt:  parseTimePropPtr(props["invalid_at"]),
			ExpiredAt:  parseTimePropPtr(props["expired_at"]),
			Episodes:   stringSliceProp(props["episodes"]),
		}
		if v, ok := rec.Get("source_uuid"); ok {
			r.SourceUUID = asString(v)
		}
		if v, ok := rec.Get("target_uuid"); ok {
			r.TargetUUID = asString(v)
		}
		out = append(out, r)
	}
	return out, nil
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
