// Package invalidator implements component C5 (spec.md §4.5): decide
// which existing edges between the same pair of entities are
// contradicted by a newly extracted relation, via a rule-based
// contradiction table, an LLM fallback, and a hybrid strategy.
//
// Grounded in the teacher's internal/risk contradiction-style rule
// tables (risk/ownership.go's classification-by-keyword approach)
// generalized from code-ownership heuristics to relation-label
// contradiction, with the LLM fallback modeled on
// internal/github/issue_extractor.go's "ask for a small structured
// JSON verdict" prompt shape.
package invalidator

import "context"

// Edge is the minimal shape detect_contradictions operates on (spec.md
// §4.5 "new_edge and existing_edges expose source_name, target_name,
// relation_name, fact, uuid").
type Edge struct {
	UUID         string
	SourceName   string
	TargetName   string
	RelationName string
	Fact         string
}

// Detector is the contract every implementation satisfies.
type Detector interface {
	DetectContradictions(ctx context.Context, newEdge Edge, existingEdges []Edge) []string
}
