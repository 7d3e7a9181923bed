// Package llmrotation implements the single call site through which every
// other component invokes an LLM (spec.md §4.1, component C1): ordered
// model failover on quota/availability errors, per-stage routing, JSON-mode
// extraction, tool calling, and usage logging.
//
// Grounded in the teacher's internal/llm/client.go (OpenAI transport shape)
// generalized from a single fixed model to an ordered pool, per
// original_source's llm_client.py + openai_rotation.py rotation policy.
package llmrotation

// Stage tags an LLM call for per-stage model routing and usage
// aggregation (spec.md §4.1 "Stage routing").
type Stage string

const (
	StageJSONStructure      Stage = "json_structure"
	StageContentGeneration  Stage = "content_generation"
	StageReasoning          Stage = "reasoning"
	StageProfileGeneration  Stage = "profile_generation"
	StageOasisSimulation    Stage = "oasis_simulation"
	StageFallback           Stage = "fallback"
)

// Settings is the rotation client's configuration: an ordered model pool,
// optional per-stage overrides, and API credentials. Owned and persisted
// by internal/llmsettings; the rotation client only ever sees a snapshot
// (spec.md §9 "Global mutable LLM settings → per-call snapshot").
type Settings struct {
	BaseURL      string
	APIKey       string
	Models       []string          // at most 10, validated by the owner
	ModelRouting map[string]string // stage -> model
}

// Message is a single chat turn.
type Message struct {
	Role    string // "system" | "user" | "assistant" | "tool"
	Content string
}

// Tool describes a function the model may call (spec.md §4.1
// chat_completion tool-calling support).
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any // JSON schema
}

// ToolCall is one function invocation the model requested.
type ToolCall struct {
	ID            string
	Name          string
	ArgumentsJSON string
}

// ChatCompletionResult is chat_completion's return shape: a final text
// answer, or tool calls the caller must satisfy.
type ChatCompletionResult struct {
	Content   string
	ToolCalls []ToolCall
}

// Usage mirrors the provider's token accounting, normalized to
// prompt/completion/total regardless of which field names the provider
// used (spec.md §6 "LLM usage log").
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}
