package llmrotation

import (
	"errors"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// quotaHints and modelHints back the substring-based fallback rules in
// spec.md §4.1's rotation table, reproduced verbatim from the original
// implementation's openai_rotation.py classifier.
var quotaHints = []string{
	"quota", "billing", "balance", "credit", "exceeded", "payment required", "out of credits",
}

var modelNotFoundHints = []string{
	"does not exist", "not found", "unknown model",
}

// classification is the verdict recorded alongside every LLM attempt.
type classification struct {
	Rotate bool
	Reason string
}

// classify implements spec.md §4.1's rotation table: quota/rate-limit and
// unknown-model errors rotate to the next pool entry; everything else
// (notably 401/auth) propagates immediately.
func classify(err error) classification {
	if err == nil {
		return classification{Rotate: false, Reason: ""}
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if code, ok := apiErr.Code.(string); ok {
			switch code {
			case "insufficient_quota", "model_not_found":
				return classification{Rotate: true, Reason: code}
			}
		}

		msg := strings.ToLower(apiErr.Message)
		switch apiErr.HTTPStatusCode {
		case 402:
			return classification{Rotate: true, Reason: "payment_required"}
		case 429:
			return classification{Rotate: true, Reason: "rate_limit_or_quota"}
		case 403:
			if containsAny(msg, quotaHints) {
				return classification{Rotate: true, Reason: "forbidden_quota"}
			}
		case 404:
			if strings.Contains(msg, "model") && containsAny(msg, modelNotFoundHints) {
				return classification{Rotate: true, Reason: "model_not_found"}
			}
		}

		if containsAny(msg, quotaHints) {
			return classification{Rotate: true, Reason: "quota_hint"}
		}
		if strings.Contains(msg, "model") && containsAny(msg, modelNotFoundHints) {
			return classification{Rotate: true, Reason: "model_hint"}
		}

		return classification{Rotate: false, Reason: "non_rotatable"}
	}

	msg := strings.ToLower(err.Error())
	if containsAny(msg, quotaHints) {
		return classification{Rotate: true, Reason: "quota_hint"}
	}
	if strings.Contains(msg, "model") && containsAny(msg, modelNotFoundHints) {
		return classification{Rotate: true, Reason: "model_hint"}
	}
	return classification{Rotate: false, Reason: "non_rotatable"}
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
