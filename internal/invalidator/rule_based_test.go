package invalidator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRuleBasedDetectsOpposingRelation(t *testing.T) {
	r := NewRuleBased()
	existing := []Edge{{UUID: "e1", SourceName: "Alice", TargetName: "Bluesky", RelationName: "LIKES", Fact: "Alice likes Bluesky"}}
	newEdge := Edge{SourceName: "Alice", TargetName: "Bluesky", RelationName: "DISLIKES", Fact: "Alice dislikes Bluesky"}

	got := r.DetectContradictions(context.Background(), newEdge, existing)
	assert.Equal(t, []string{"e1"}, got)
}

func TestRuleBasedIgnoresDifferentEntityPair(t *testing.T) {
	r := NewRuleBased()
	existing := []Edge{{UUID: "e1", SourceName: "Alice", TargetName: "Mastodon", RelationName: "LIKES", Fact: "..."}}
	newEdge := Edge{SourceName: "Alice", TargetName: "Bluesky", RelationName: "DISLIKES", Fact: "..."}

	got := r.DetectContradictions(context.Background(), newEdge, existing)
	assert.Empty(t, got)
}

func TestRuleBasedSemanticPairSameRelation(t *testing.T) {
	r := NewRuleBased()
	existing := []Edge{{UUID: "e1", SourceName: "Alice", TargetName: "Policy X", RelationName: "SUPPORTS", Fact: "Alice says she will support the policy"}}
	newEdge := Edge{SourceName: "Alice", TargetName: "Policy X", RelationName: "SUPPORTS", Fact: "Alice says she will oppose the policy"}

	got := r.DetectContradictions(context.Background(), newEdge, existing)
	assert.Equal(t, []string{"e1"}, got)
}

func TestRuleBasedCaseInsensitiveMatching(t *testing.T) {
	r := NewRuleBased()
	existing := []Edge{{UUID: "e1", SourceName: "alice", TargetName: "bluesky", RelationName: "likes", Fact: "..."}}
	newEdge := Edge{SourceName: "Alice", TargetName: "Bluesky", RelationName: "DISLIKES", Fact: "..."}

	got := r.DetectContradictions(context.Background(), newEdge, existing)
	assert.Equal(t, []string{"e1"}, got)
}

func TestRuleBasedNoContradictionKeepsEdge(t *testing.T) {
	r := NewRuleBased()
	existing := []Edge{{UUID: "e1", SourceName: "Alice", TargetName: "Bluesky", RelationName: "FOLLOWS", Fact: "..."}}
	newEdge := Edge{SourceName: "Alice", TargetName: "Bluesky", RelationName: "MENTIONS", Fact: "..."}

	got := r.DetectContradictions(context.Background(), newEdge, existing)
	assert.Empty(t, got)
}

func TestHybridShortCircuitsToRulesOnUseLLMFalse(t *testing.T) {
	h := NewHybrid(nil, false)
	existing := []Edge{{UUID: "e1", SourceName: "Alice", TargetName: "Bluesky", RelationName: "LIKES", Fact: "..."}}
	newEdge := Edge{SourceName: "Alice", TargetName: "Bluesky", RelationName: "DISLIKES", Fact: "..."}

	got := h.DetectContradictions(context.Background(), newEdge, existing)
	assert.Equal(t, []string{"e1"}, got)
}

func TestHybridFallsBackWhenRulesEmptyAndLLMDisabled(t *testing.T) {
	h := NewHybrid(nil, false)
	existing := []Edge{{UUID: "e1", SourceName: "Alice", TargetName: "Bluesky", RelationName: "FOLLOWS", Fact: "..."}}
	newEdge := Edge{SourceName: "Alice", TargetName: "Bluesky", RelationName: "MENTIONS", Fact: "..."}

	got := h.DetectContradictions(context.Background(), newEdge, existing)
	assert.Empty(t, got)
}
