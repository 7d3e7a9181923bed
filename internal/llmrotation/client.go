package llmrotation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	apperrors "github.com/mirofish/graphmemd/internal/errors"
)

// SettingsSource returns the current LLM settings snapshot. Implemented by
// internal/llmsettings.Store; the rotation client calls Load() once per
// invocation so edits made via POST /llm/config take effect on the very
// next call without restarting the process.
type SettingsSource interface {
	Load() Settings
}

// Client is the single call site every other component uses to reach an
// LLM. One instance is shared process-wide.
type Client struct {
	settings SettingsSource
	usage    *usageLogger
	logger   *slog.Logger
}

// NewClient builds a rotation client. usageLogPath is where llm_usage.jsonl
// is appended; pass "" to disable usage logging (tests).
func NewClient(settings SettingsSource, usageLogPath string) *Client {
	return &Client{
		settings: settings,
		usage:    newUsageLogger(usageLogPath),
		logger:   slog.Default().With("component", "llmrotation"),
	}
}

// NormalizeBaseURL ensures base_url ends with "/v1", appending it if
// absent (spec.md §4.1 "Configuration").
func NormalizeBaseURL(base string) string {
	base = strings.TrimRight(base, "/")
	if strings.HasSuffix(base, "/v1") {
		return base
	}
	return base + "/v1"
}

// resolvePool implements spec.md §4.1's "Stage routing": model_routing[stage]
// first if set, followed by the rest of the configured models; else the
// configured models in order; else a single fallback model name.
func resolvePool(s Settings, stage Stage) []string {
	if routed, ok := s.ModelRouting[string(stage)]; ok && routed != "" {
		pool := []string{routed}
		for _, m := range s.Models {
			if m != routed {
				pool = append(pool, m)
			}
		}
		return pool
	}
	if len(s.Models) > 0 {
		return append([]string{}, s.Models...)
	}
	return []string{"gpt-4o-mini"}
}

func (c *Client) openaiClient(s Settings) *openai.Client {
	cfg := openai.DefaultConfig(s.APIKey)
	cfg.BaseURL = NormalizeBaseURL(s.BaseURL)
	return openai.NewClientWithConfig(cfg)
}

// attempt runs call() against each model in the resolved pool in order. On
// success it logs and returns immediately. On a rotatable error it
// advances to the next model; on a non-rotatable error, or after
// exhausting the pool, it returns the last error (spec.md §4.1 "Rotation
// policy").
func (c *Client) attempt(ctx context.Context, stage Stage, call func(model string) (openai.ChatCompletionResponse, error)) (openai.ChatCompletionResponse, error) {
	s := c.settings.Load()
	pool := resolvePool(s, stage)

	var lastErr error
	for _, model := range pool {
		resp, err := call(model)
		if err == nil {
			c.usage.logSuccess(stage, model, Usage{
				PromptTokens:     resp.Usage.PromptTokens,
				CompletionTokens: resp.Usage.CompletionTokens,
				TotalTokens:      resp.Usage.TotalTokens,
			})
			return resp, nil
		}

		verdict := classify(err)
		c.usage.logError(stage, model, verdict, err)
		lastErr = err

		if !verdict.Rotate {
			return openai.ChatCompletionResponse{}, wrapClassified(verdict, err)
		}
		c.logger.Warn("rotating llm model", "stage", stage, "model", model, "reason", verdict.Reason)
	}
	return openai.ChatCompletionResponse{}, fmt.Errorf("llm model pool exhausted (stage=%s): %w", stage, lastErr)
}

func wrapClassified(v classification, err error) error {
	switch v.Reason {
	case "non_rotatable":
		return apperrors.ExternalError(err, "llm call failed (non-rotatable)")
	default:
		return apperrors.QuotaError(err, fmt.Sprintf("llm call failed: %s", v.Reason))
	}
}

// Chat sends a single free-text completion request.
func (c *Client) Chat(ctx context.Context, messages []Message, temperature float32, maxTokens int, stage Stage) (string, error) {
	s := c.settings.Load()
	client := c.openaiClient(s)

	resp, err := c.attempt(ctx, stage, func(model string) (openai.ChatCompletionResponse, error) {
		return client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       model,
			Messages:    toOpenAIMessages(messages),
			Temperature: temperature,
			MaxTokens:   maxTokens,
		})
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", apperrors.EmptyResponseError("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// ChatCompletion supports function calling: tool_calls[] carries
// {id, name, arguments_json}.
func (c *Client) ChatCompletion(ctx context.Context, messages []Message, tools []Tool, toolChoice string, stage Stage) (ChatCompletionResult, error) {
	s := c.settings.Load()
	client := c.openaiClient(s)

	var oaTools []openai.Tool
	for _, t := range tools {
		oaTools = append(oaTools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}

	resp, err := c.attempt(ctx, stage, func(model string) (openai.ChatCompletionResponse, error) {
		req := openai.ChatCompletionRequest{
			Model:    model,
			Messages: toOpenAIMessages(messages),
			Tools:    oaTools,
		}
		if toolChoice != "" {
			req.ToolChoice = toolChoice
		}
		return client.CreateChatCompletion(ctx, req)
	})
	if err != nil {
		return ChatCompletionResult{}, err
	}
	if len(resp.Choices) == 0 {
		return ChatCompletionResult{}, apperrors.EmptyResponseError("chat completion returned no choices")
	}

	msg := resp.Choices[0].Message
	result := ChatCompletionResult{Content: msg.Content}
	for _, tc := range msg.ToolCalls {
		result.ToolCalls = append(result.ToolCalls, ToolCall{
			ID:            tc.ID,
			Name:          tc.Function.Name,
			ArgumentsJSON: tc.Function.Arguments,
		})
	}
	return result, nil
}

// ChatJSON forces JSON mode and parses the response. Empty responses fail
// with EmptyResponse; fenced code blocks are unwrapped before parsing;
// parse failures fail with MalformedJSON (spec.md §4.1).
func (c *Client) ChatJSON(ctx context.Context, messages []Message, temperature float32, maxTokens int, stage Stage) (map[string]any, error) {
	s := c.settings.Load()
	client := c.openaiClient(s)

	resp, err := c.attempt(ctx, stage, func(model string) (openai.ChatCompletionResponse, error) {
		return client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:          model,
			Messages:       toOpenAIMessages(messages),
			Temperature:    temperature,
			MaxTokens:      maxTokens,
			ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
		})
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return nil, apperrors.EmptyResponseError("chat_json returned an empty completion")
	}

	raw := extractJSON(resp.Choices[0].Message.Content)
	var parsed map[string]any
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, apperrors.MalformedJSONError(err, "chat_json could not parse completion as JSON")
	}
	return parsed, nil
}

// extractJSON strips a ```json ... ``` or ``` ... ``` fence if present.
func extractJSON(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	return out
}
