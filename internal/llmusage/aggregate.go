// Package llmusage aggregates the llm_usage.jsonl logs that
// internal/llmrotation writes on every LLM call, backing GET
// /llm/usage. Grounded in
// original_source/backend/app/utils/llm_usage.py, reworked in Go with
// filepath.WalkDir instead of os.walk and a bufio.Scanner in place of
// Python's line iterator.
package llmusage

import (
	"bufio"
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// Record is one decoded line of an llm_usage.jsonl file. Unknown shape
// (missing usage, non-success event) is tolerated — aggregation treats
// it as an error record, matching the original's defensive parsing.
type Record struct {
	TS     string         `json:"ts"`
	Event  string         `json:"event"`
	Stage  string         `json:"stage"`
	Model  string         `json:"model"`
	Usage  map[string]any `json:"usage"`
	Reason string         `json:"reason"`
}

// Totals is the per-model / per-stage rollup shape returned by
// aggregate_usage.
type Totals struct {
	Requests         int `json:"requests"`
	Errors           int `json:"errors"`
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Summary is GET /llm/usage's response payload.
type Summary struct {
	TotalRequests  int                `json:"total_requests"`
	TotalErrors    int                `json:"total_errors"`
	TotalsByModel  map[string]*Totals `json:"totals_by_model"`
	TotalsByStage  map[string]*Totals `json:"totals_by_stage"`
}

// FindLogPaths walks root looking for llm_usage.jsonl files, returning
// them sorted (find_usage_log_paths).
func FindLogPaths(root string) []string {
	var paths []string
	if root == "" {
		return paths
	}
	if _, err := os.Stat(root); err != nil {
		return paths
	}
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() && d.Name() == "llm_usage.jsonl" {
			paths = append(paths, path)
		}
		return nil
	})
	sort.Strings(paths)
	return paths
}

// iterRecords yields up to maxRecords decoded records across paths, in
// order, skipping blank lines and records that fail to parse
// (iter_usage_records).
func iterRecords(paths []string, maxRecords int) []Record {
	var out []Record
	remaining := maxRecords
	for _, p := range paths {
		if maxRecords > 0 && remaining <= 0 {
			break
		}
		f, err := os.Open(p)
		if err != nil {
			continue
		}
		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			if maxRecords > 0 && remaining <= 0 {
				break
			}
			line := scanner.Text()
			if line == "" {
				continue
			}
			var rec Record
			if err := json.Unmarshal([]byte(line), &rec); err != nil {
				continue
			}
			out = append(out, rec)
			if maxRecords > 0 {
				remaining--
			}
		}
		f.Close()
	}
	return out
}

func extractTokens(usage map[string]any) (prompt, completion, total int) {
	get := func(keys ...string) (int, bool) {
		for _, k := range keys {
			if v, ok := usage[k]; ok {
				switch n := v.(type) {
				case float64:
					return int(n), true
				case int:
					return n, true
				}
			}
		}
		return 0, false
	}
	prompt, _ = get("prompt_tokens", "input_tokens")
	completion, _ = get("completion_tokens", "output_tokens")
	if t, ok := get("total_tokens"); ok {
		total = t
	} else {
		total = prompt + completion
	}
	return
}

// Aggregate rolls records up by model and by stage (aggregate_usage).
func Aggregate(records []Record) Summary {
	summary := Summary{
		TotalsByModel: map[string]*Totals{},
		TotalsByStage: map[string]*Totals{},
	}

	bump := func(m map[string]*Totals, key string, prompt, completion, total int, isError bool) {
		if key == "" {
			key = "unknown"
		}
		t, ok := m[key]
		if !ok {
			t = &Totals{}
			m[key] = t
		}
		t.Requests++
		if isError {
			t.Errors++
		}
		t.PromptTokens += prompt
		t.CompletionTokens += completion
		t.TotalTokens += total
	}

	for _, r := range records {
		model := r.Model
		if model == "" {
			model = "unknown"
		}
		stage := r.Stage
		if stage == "" {
			stage = "unknown"
		}
		prompt, completion, total := extractTokens(r.Usage)
		isError := r.Event == "error" || r.Usage == nil

		summary.TotalRequests++
		if isError {
			summary.TotalErrors++
		}
		bump(summary.TotalsByModel, model, prompt, completion, total, isError)
		bump(summary.TotalsByStage, stage, prompt, completion, total, isError)
	}

	return summary
}

// Load is the convenience entry point GET /llm/usage calls: find every
// llm_usage.jsonl under root, read up to limit records, and aggregate
// them. limit <= 0 means unbounded.
func Load(root string, limit int) Summary {
	paths := FindLogPaths(root)
	records := iterRecords(paths, limit)
	return Aggregate(records)
}
