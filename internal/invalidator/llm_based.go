package invalidator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	apperrors "github.com/mirofish/graphmemd/internal/errors"
	"github.com/mirofish/graphmemd/internal/llmrotation"
)

// ChatJSONClient is the slice of internal/llmrotation.Client the
// LLM-based invalidator needs.
type ChatJSONClient interface {
	ChatJSON(ctx context.Context, messages []llmrotation.Message, temperature float32, maxTokens int, stage llmrotation.Stage) (map[string]any, error)
}

// LLMBased formats existing edges as a numbered list and asks an LLM
// which ones the new edge contradicts (spec.md §4.5 "LLM-based").
type LLMBased struct {
	llm    ChatJSONClient
	logger *slog.Logger
}

func NewLLMBased(llm ChatJSONClient) *LLMBased {
	return &LLMBased{llm: llm, logger: slog.Default().With("component", "invalidator")}
}

func (l *LLMBased) DetectContradictions(ctx context.Context, newEdge Edge, existingEdges []Edge) []string {
	if len(existingEdges) == 0 {
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "New fact: %s --%s--> %s: %s\n\nExisting facts:\n", newEdge.SourceName, newEdge.RelationName, newEdge.TargetName, newEdge.Fact)
	for i, e := range existingEdges {
		fmt.Fprintf(&b, "[%d] %s --%s--> %s: %s\n", i+1, e.SourceName, e.RelationName, e.TargetName, e.Fact)
	}

	messages := []llmrotation.Message{
		{Role: "system", Content: `You detect factual contradictions in a knowledge graph. Given a new fact and a numbered list of existing facts about the same pair of entities, return ONLY JSON: {"contradicted_ids": [<int>, ...]} listing the 1-indexed ids of existing facts the new fact contradicts. Return an empty array if none are contradicted.`},
		{Role: "user", Content: b.String()},
	}

	raw, err := l.llm.ChatJSON(ctx, messages, 0.0, 512, llmrotation.StageReasoning)
	if err != nil {
		l.logger.Warn("llm-based contradiction detection failed, returning no invalidations", "error", apperrors.InvalidatorLLMFailureError(err, "contradiction detection call failed"))
		return nil
	}

	rawIDs, ok := raw["contradicted_ids"].([]any)
	if !ok {
		return nil
	}

	var out []string
	for _, v := range rawIDs {
		f, ok := v.(float64)
		if !ok {
			continue
		}
		idx := int(f) - 1
		if idx < 0 || idx >= len(existingEdges) {
			continue
		}
		out = append(out, existingEdges[idx].UUID)
	}
	return out
}
