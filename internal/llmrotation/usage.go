package llmrotation

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// usageRecord is one line of llm_usage.jsonl (spec.md §6).
type usageRecord struct {
	TS     string `json:"ts"`
	Event  string `json:"event"` // "success" | "error"
	Stage  string `json:"stage"`
	Model  string `json:"model"`
	Usage  *Usage `json:"usage,omitempty"`
	Rotate *bool  `json:"rotate,omitempty"`
	Reason string `json:"reason,omitempty"`
	Error  *usageError `json:"error,omitempty"`
}

type usageError struct {
	Type       string `json:"type"`
	StatusCode int    `json:"status_code,omitempty"`
	Code       string `json:"code,omitempty"`
	Message    string `json:"message"`
}

// usageLogger append-only writes llm_usage.jsonl; every write is
// serialized by an internal lock and the directory is lazily created
// (spec.md §5 "Shared resources").
type usageLogger struct {
	path string
	mu   sync.Mutex
}

func newUsageLogger(path string) *usageLogger {
	return &usageLogger{path: path}
}

func (u *usageLogger) logSuccess(stage Stage, model string, usage Usage) {
	u.append(usageRecord{
		TS:    time.Now().UTC().Format(time.RFC3339Nano),
		Event: "success",
		Stage: string(stage),
		Model: model,
		Usage: &usage,
	})
}

func (u *usageLogger) logError(stage Stage, model string, verdict classification, err error) {
	rotate := verdict.Rotate
	rec := usageRecord{
		TS:     time.Now().UTC().Format(time.RFC3339Nano),
		Event:  "error",
		Stage:  string(stage),
		Model:  model,
		Rotate: &rotate,
		Reason: verdict.Reason,
		Error:  &usageError{Type: "llm_error", Message: err.Error()},
	}
	u.append(rec)
}

func (u *usageLogger) append(rec usageRecord) {
	if u.path == "" {
		return
	}
	u.mu.Lock()
	defer u.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(u.path), 0755); err != nil {
		return
	}
	f, err := os.OpenFile(u.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	defer f.Close()

	b, err := json.Marshal(rec)
	if err != nil {
		return
	}
	b = append(b, '\n')
	_, _ = f.Write(b)
}

// NormalizeTokenFields converts provider-reported token counts that use
// input_tokens/output_tokens naming into the canonical prompt_tokens/
// completion_tokens shape, defaulting totals to prompt+completion when
// absent (spec.md §6, supplemented from llm_usage.py).
func NormalizeTokenFields(raw map[string]any) Usage {
	get := func(keys ...string) int {
		for _, k := range keys {
			if v, ok := raw[k]; ok {
				switch n := v.(type) {
				case float64:
					return int(n)
				case int:
					return n
				}
			}
		}
		return 0
	}
	prompt := get("prompt_tokens", "input_tokens")
	completion := get("completion_tokens", "output_tokens")
	total := get("total_tokens")
	if total == 0 {
		total = prompt + completion
	}
	return Usage{PromptTokens: prompt, CompletionTokens: completion, TotalTokens: total}
}
