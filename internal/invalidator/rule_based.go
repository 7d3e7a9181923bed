package invalidator

import (
	"context"
	"strings"
)

// RuleBased implements detect_contradictions purely from
// ContradictingRelations and SemanticContradictionPairs (spec.md §4.5
// "Rule-based").
type RuleBased struct{}

func NewRuleBased() *RuleBased { return &RuleBased{} }

func (RuleBased) DetectContradictions(_ context.Context, newEdge Edge, existingEdges []Edge) []string {
	var contradicted []string
	for _, existing := range existingEdges {
		if !sameCaseInsensitive(newEdge.SourceName, existing.SourceName) ||
			!sameCaseInsensitive(newEdge.TargetName, existing.TargetName) {
			continue
		}

		if isContradictingRelation(newEdge.RelationName, existing.RelationName) {
			contradicted = append(contradicted, existing.UUID)
			continue
		}

		if normalizeRelation(newEdge.RelationName) == normalizeRelation(existing.RelationName) &&
			isSemanticContradiction(newEdge.Fact, existing.Fact) {
			contradicted = append(contradicted, existing.UUID)
		}
	}
	return contradicted
}

func sameCaseInsensitive(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
