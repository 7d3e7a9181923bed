// Package extractor implements component C3 (spec.md §4.3): given an
// episode's combined text and a graph's ontology, call the rotating LLM
// client in JSON mode and return structured entities and relations.
//
// Grounded in the teacher's internal/atomizer prompt-template style
// (AtomizationPromptTemplate) generalized from git-diff code-block
// extraction to entity/relation extraction, with chat_json supplied by
// internal/llmrotation.
package extractor

// Ontology names the entity and relation labels a graph recognizes.
// Raw extractor labels outside this set are canonicalized, not dropped
// (spec.md §4.3 "canonicalized by a simple mapping").
type Ontology struct {
	EntityTypes []string
	EdgeTypes   []string
}

// DefaultOntology is used when a graph has none configured.
var DefaultOntology = Ontology{
	EntityTypes: []string{"Person", "Organization", "Product", "Topic", "Location", "Event"},
	EdgeTypes:   []string{"LIKES", "DISLIKES", "FOLLOWS", "UNFOLLOWS", "SUPPORTS", "OPPOSES", "MENTIONS", "WORKS_AT", "LOCATED_IN"},
}

// ExtractedEntity is one entity surfaced from the LLM response. Defined
// as a tagged record rather than a loose map (spec.md §9 "Duck-typed
// extractor payloads -> tagged records").
type ExtractedEntity struct {
	Name       string
	Type       string
	Summary    string
	Attributes map[string]any
}

// ExtractedRelation is one relation surfaced from the LLM response.
type ExtractedRelation struct {
	Source     string
	SourceType string
	Target     string
	TargetType string
	Relation   string
	Fact       string
	Attributes map[string]any
}

// Result is extract()'s return shape.
type Result struct {
	Entities  []ExtractedEntity
	Relations []ExtractedRelation
}
