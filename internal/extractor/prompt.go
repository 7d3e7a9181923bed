package extractor

import (
	"fmt"
	"strings"
)

// buildPrompt renders the system+user messages for the episode text and
// ontology, in the teacher's fenced-JSON-schema prompt style
// (internal/atomizer.AtomizationPromptTemplate).
func buildPrompt(text string, ont Ontology) (system, user string) {
	system = `You are a Knowledge Graph Extractor analyzing short activity episodes from a social simulation.

TASK: Extract all entities and relations mentioned in the episode text.

OUTPUT SCHEMA: Return ONLY valid JSON (no markdown, no explanations):
{
  "entities": [
    {"name": "Alice", "type": "Person", "summary": "a simulated agent"}
  ],
  "relations": [
    {"source": "Alice", "source_type": "Person", "target": "Bluesky", "target_type": "Product", "relation": "LIKES", "fact": "Alice likes Bluesky"}
  ]
}

RULES:
- entities[].name and relations[].source/target MUST be non-empty short names, not full sentences.
- type/source_type/target_type SHOULD be one of the recommended entity types below, but an unrecognized label is acceptable — it will be canonicalized downstream.
- relation SHOULD be one of the recommended relation types below.
- fact is a short natural-language justification for the relation, grounded in the episode text.
- Return empty arrays (not null) when nothing is extracted.
- Return a SINGLE JSON object, not an array.`

	var b strings.Builder
	fmt.Fprintf(&b, "RECOMMENDED ENTITY TYPES: %s\n", strings.Join(ont.EntityTypes, ", "))
	fmt.Fprintf(&b, "RECOMMENDED RELATION TYPES: %s\n\n", strings.Join(ont.EdgeTypes, ", "))
	fmt.Fprintf(&b, "EPISODE TEXT:\n%s\n", text)
	user = b.String()
	return system, user
}
