// Package llmsettings owns the on-disk LLM settings file that
// internal/llmrotation.Client reads a snapshot of on every call
// (spec.md §4.1, §9 "Global mutable LLM settings"). Grounded in
// original_source/backend/app/utils/llm_settings.py, reworked in the
// teacher's config-loading idiom (internal/config) with an
// atomic.Pointer swap instead of a module-level singleton.
package llmsettings

import "github.com/mirofish/graphmemd/internal/llmrotation"

// StageWarning flags a model name pattern that is known to behave
// poorly for a given stage (e.g. "-thinking" models returning empty
// JSON for json_structure).
type StageWarning struct {
	Pattern string `json:"pattern"`
	Message string `json:"message"`
	Level   string `json:"level"` // "warning" | "error"
}

// StageDefinition documents one routing stage for the settings UI/API.
type StageDefinition struct {
	Label       string         `json:"label"`
	Description string         `json:"description"`
	Recommended []string       `json:"recommended"`
	Warnings    []StageWarning `json:"warnings"`
	Tip         string         `json:"tip"`
}

// StageDefinitions lists every routing stage exposed by GET /llm/stages,
// carried over (with its recommendations and warnings) from
// llm_settings.py's STAGE_DEFINITIONS.
var StageDefinitions = map[llmrotation.Stage]StageDefinition{
	llmrotation.StageJSONStructure: {
		Label:       "JSON structured output",
		Description: "Outline planning, sub-question generation, and other tasks requiring strict JSON.",
		Recommended: []string{"gpt-4o-mini", "gpt-4o", "deepseek-chat"},
		Warnings: []StageWarning{
			{Pattern: `-thinking$`, Message: "reasoning models may return empty JSON for this stage", Level: "warning"},
			{Pattern: `-reasoner$`, Message: "reasoning models may return empty JSON for this stage", Level: "warning"},
		},
		Tip: "gpt-4o-mini gives the most stable JSON output at the lowest token cost.",
	},
	llmrotation.StageContentGeneration: {
		Label:       "Report content generation",
		Description: "Long-form report section text requiring higher-quality prose.",
		Recommended: []string{"gpt-4o", "claude-sonnet"},
		Tip:         "Balances quality against cost for long-form writing.",
	},
	llmrotation.StageReasoning: {
		Label:       "Complex reasoning tasks",
		Description: "Deep analysis and strategic planning tasks.",
		Recommended: []string{"o1", "deepseek-reasoner"},
		Tip:         "Reasoning models excel here but cost more tokens.",
	},
	llmrotation.StageProfileGeneration: {
		Label:       "Agent profile generation",
		Description: "Persona generation for simulated agents; favors creative text.",
		Recommended: []string{"gpt-4o", "deepseek-chat"},
		Tip:         "Pick a generally capable model with strong creative writing.",
	},
	llmrotation.StageOasisSimulation: {
		Label:       "Oasis simulation step",
		Description: "Per-tick social simulation content generation.",
		Recommended: []string{"gpt-4o-mini", "deepseek-chat"},
		Tip:         "Favor cheap, fast models — this stage runs at high volume.",
	},
	llmrotation.StageFallback: {
		Label:       "Default / uncategorized",
		Description: "Any call without a more specific stage.",
		Recommended: []string{},
		Tip:         "Uses the default model pool.",
	},
}

// RoutingPreset is a named bundle of stage->model assignments.
type RoutingPreset struct {
	Label       string            `json:"label"`
	Description string            `json:"description"`
	Routing     map[string]string `json:"routing"`
}

// RoutingPresets mirrors llm_settings.py's MODEL_ROUTING_PRESETS.
var RoutingPresets = map[string]RoutingPreset{
	"economy": {
		Label:       "Economy",
		Description: "Lowest cost, suited to testing.",
		Routing: map[string]string{
			"json_structure":     "gpt-4o-mini",
			"content_generation": "deepseek-chat",
			"reasoning":          "deepseek-reasoner",
			"profile_generation": "deepseek-chat",
			"fallback":           "gpt-4o-mini",
		},
	},
	"quality": {
		Label:       "Quality first",
		Description: "Highest quality, higher cost.",
		Routing: map[string]string{
			"json_structure":     "gpt-4o-mini",
			"content_generation": "o1",
			"reasoning":          "o1",
			"profile_generation": "gpt-4o",
			"fallback":           "gpt-4o-mini",
		},
	},
	"balanced": {
		Label:       "Balanced (default)",
		Description: "Balances quality and cost.",
		Routing: map[string]string{
			"json_structure":     "gpt-4o-mini",
			"content_generation": "gpt-4o",
			"reasoning":          "o1",
			"profile_generation": "deepseek-chat",
			"fallback":           "gpt-4o-mini",
		},
	},
}
