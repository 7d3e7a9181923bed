package graphstore

import (
	"context"
	"log/slog"
)

// schemaStatements enforces the constraints required by spec.md §4.2:
// unique Graph.graph_id, unique Entity.uuid, and indexes on the scoping
// keys used by every query in this package. Statements are advisory:
// creation failures are logged and swallowed so a dialect that doesn't
// support a given constraint syntax (e.g. an older Neo4j/Memgraph build)
// doesn't block startup.
var schemaStatements = []string{
	`CREATE CONSTRAINT graph_id_unique IF NOT EXISTS FOR (g:Graph) REQUIRE g.graph_id IS UNIQUE`,
	`CREATE CONSTRAINT entity_uuid_unique IF NOT EXISTS FOR (e:Entity) REQUIRE e.uuid IS UNIQUE`,
	`CREATE INDEX entity_graph_id IF NOT EXISTS FOR (e:Entity) ON (e.graph_id)`,
	`CREATE INDEX entity_project_id IF NOT EXISTS FOR (e:Entity) ON (e.project_id)`,
	`CREATE INDEX entity_name IF NOT EXISTS FOR (e:Entity) ON (e.name)`,
	`CREATE INDEX relation_graph_id IF NOT EXISTS FOR ()-[r:REL]-() ON (r.graph_id)`,
	`CREATE INDEX chunk_graph_id IF NOT EXISTS FOR (c:Chunk) ON (c.graph_id)`,
}

// EnsureSchema runs the advisory constraint/index statements against the
// backend. Called from `graphmemd migrate`.
func (s *Neo4jStore) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.client.run(ctx, stmt, nil); err != nil {
			slog.Default().With("component", "graphstore").Warn(
				"schema statement failed, continuing", "statement", stmt, "error", err)
			continue
		}
	}
	return nil
}
