package extractor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mirofish/graphmemd/internal/llmrotation"
)

type fakeChatJSON struct {
	response map[string]any
	err      error
}

func (f *fakeChatJSON) ChatJSON(ctx context.Context, messages []llmrotation.Message, temperature float32, maxTokens int, stage llmrotation.Stage) (map[string]any, error) {
	return f.response, f.err
}

func TestExtractParsesEntitiesAndRelations(t *testing.T) {
	fake := &fakeChatJSON{response: map[string]any{
		"entities": []any{
			map[string]any{"name": "Alice", "type": "Person"},
			map[string]any{"name": "Bluesky", "type": "Product"},
		},
		"relations": []any{
			map[string]any{
				"source": "Alice", "source_type": "Person",
				"target": "Bluesky", "target_type": "Product",
				"relation": "LIKES", "fact": "Alice likes Bluesky",
			},
		},
	}}

	e := New(fake)
	result, err := e.Extract(context.Background(), "Alice posted: I like Bluesky", DefaultOntology)
	require.NoError(t, err)

	require.Len(t, result.Entities, 2)
	assert.Equal(t, "Alice", result.Entities[0].Name)
	assert.Equal(t, "Person", result.Entities[0].Type)

	require.Len(t, result.Relations, 1)
	assert.Equal(t, "LIKES", result.Relations[0].Relation)
	assert.Equal(t, "Alice likes Bluesky", result.Relations[0].Fact)
}

func TestExtractEmptyResponseCollapsesToEmptySlices(t *testing.T) {
	fake := &fakeChatJSON{response: map[string]any{}}

	e := New(fake)
	result, err := e.Extract(context.Background(), "nothing happened", DefaultOntology)
	require.NoError(t, err)
	assert.Empty(t, result.Entities)
	assert.Empty(t, result.Relations)
}

func TestExtractDropsMalformedRelations(t *testing.T) {
	fake := &fakeChatJSON{response: map[string]any{
		"relations": []any{
			map[string]any{"source": "Alice"}, // missing target/relation
			map[string]any{"source": "Alice", "target": "Bob", "relation": "FOLLOWS"},
		},
	}}

	e := New(fake)
	result, err := e.Extract(context.Background(), "text", DefaultOntology)
	require.NoError(t, err)
	require.Len(t, result.Relations, 1)
	assert.Equal(t, "FOLLOWS", result.Relations[0].Relation)
}

func TestExtractSurfacesLLMFailure(t *testing.T) {
	fake := &fakeChatJSON{err: errors.New("boom")}

	e := New(fake)
	_, err := e.Extract(context.Background(), "text", DefaultOntology)
	require.Error(t, err)
}

func TestCanonicalizeTypeMatchesCaseInsensitively(t *testing.T) {
	known := []string{"Person", "Organization"}
	assert.Equal(t, "Person", canonicalizeType("person", known))
	assert.Equal(t, "SomethingElse", canonicalizeType("SomethingElse", known))
	assert.Equal(t, "", canonicalizeType("", known))
}
