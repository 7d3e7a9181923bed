package invalidator

import "context"

// Hybrid runs the rule-based detector first; a non-empty result wins
// outright, otherwise it falls back to the LLM detector. UseLLM=false
// short-circuits to rules only (spec.md §4.5 "Hybrid").
type Hybrid struct {
	Rules  *RuleBased
	LLM    *LLMBased
	UseLLM bool
}

func NewHybrid(llm ChatJSONClient, useLLM bool) *Hybrid {
	h := &Hybrid{Rules: NewRuleBased(), UseLLM: useLLM}
	if useLLM && llm != nil {
		h.LLM = NewLLMBased(llm)
	}
	return h
}

func (h *Hybrid) DetectContradictions(ctx context.Context, newEdge Edge, existingEdges []Edge) []string {
	if ids := h.Rules.DetectContradictions(ctx, newEdge, existingEdges); len(ids) > 0 {
		return ids
	}
	if !h.UseLLM || h.LLM == nil {
		return nil
	}
	return h.LLM.DetectContradictions(ctx, newEdge, existingEdges)
}
