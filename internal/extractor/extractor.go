package extractor

import (
	"context"

	apperrors "github.com/mirofish/graphmemd/internal/errors"
	"github.com/mirofish/graphmemd/internal/llmrotation"
)

// ChatJSONClient is the slice of internal/llmrotation.Client the
// extractor needs. Declared here (not imported as the concrete type)
// so tests can supply a fake.
type ChatJSONClient interface {
	ChatJSON(ctx context.Context, messages []llmrotation.Message, temperature float32, maxTokens int, stage llmrotation.Stage) (map[string]any, error)
}

// Extractor is component C3.
type Extractor struct {
	llm ChatJSONClient
}

func New(llm ChatJSONClient) *Extractor {
	return &Extractor{llm: llm}
}

// Extract calls the rotating LLM client in JSON mode and parses its
// response into entities and relations. Missing/empty fields collapse
// to empty slices; malformed shapes never panic — fields that don't
// parse as expected are skipped (spec.md §4.3).
func (e *Extractor) Extract(ctx context.Context, text string, ont Ontology) (Result, error) {
	system, user := buildPrompt(text, ont)
	messages := []llmrotation.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}

	raw, err := e.llm.ChatJSON(ctx, messages, 0.2, 2048, llmrotation.StageJSONStructure)
	if err != nil {
		return Result{}, apperrors.ExtractorFailureError(err, "llm extraction call failed")
	}

	return parseResult(raw, ont), nil
}

func parseResult(raw map[string]any, ont Ontology) Result {
	var result Result

	if rawEntities, ok := raw["entities"].([]any); ok {
		for _, item := range rawEntities {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			name := asStr(m["name"])
			if name == "" {
				continue
			}
			result.Entities = append(result.Entities, ExtractedEntity{
				Name:       name,
				Type:       canonicalizeType(asStr(m["type"]), ont.EntityTypes),
				Summary:    asStr(m["summary"]),
				Attributes: asAttrMap(m["attributes"]),
			})
		}
	}

	if rawRelations, ok := raw["relations"].([]any); ok {
		for _, item := range rawRelations {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			source := asStr(m["source"])
			target := asStr(m["target"])
			relation := asStr(m["relation"])
			if source == "" || target == "" || relation == "" {
				continue
			}
			result.Relations = append(result.Relations, ExtractedRelation{
				Source:     source,
				SourceType: canonicalizeType(asStr(m["source_type"]), ont.EntityTypes),
				Target:     target,
				TargetType: canonicalizeType(asStr(m["target_type"]), ont.EntityTypes),
				Relation:   canonicalizeType(relation, ont.EdgeTypes),
				Fact:       asStr(m["fact"]),
				Attributes: asAttrMap(m["attributes"]),
			})
		}
	}

	return result
}

func asStr(v any) string {
	s, _ := v.(string)
	return s
}

func asAttrMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}
