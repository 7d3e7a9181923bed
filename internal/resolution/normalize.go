// Package resolution implements component C4 (spec.md §4.4): deciding
// whether an extracted entity is new or an alias of an existing node,
// via deterministic fuzzy matching with an optional LLM disambiguation
// fallback in the mid-confidence band.
//
// Grounded in the teacher's internal/atomizer.NormalizeSignature-style
// normalization helpers, combined with github.com/pmezard/go-difflib
// for the longest-common-subsequence ratio used throughout the teacher
// pack's resolution/fuzzy-matching code.
package resolution

import (
	"strings"
	"unicode"
)

// Normalize lowercases, collapses internal whitespace, and trims
// (spec.md §4.4 "normalize(name)").
func Normalize(name string) string {
	lower := strings.ToLower(strings.TrimSpace(name))
	fields := strings.Fields(lower)
	return strings.Join(fields, " ")
}

// NormalizeFuzzy applies Normalize, then drops every rune outside
// [a-z,0-9,CJK ideographs,space], re-collapsing whitespace (spec.md
// §4.4 "normalize_fuzzy(name)").
func NormalizeFuzzy(name string) string {
	norm := Normalize(name)
	var b strings.Builder
	for _, r := range norm {
		if isAllowedFuzzyRune(r) {
			b.WriteRune(r)
		}
	}
	fields := strings.Fields(b.String())
	return strings.Join(fields, " ")
}

func isAllowedFuzzyRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z':
		return true
	case r >= '0' && r <= '9':
		return true
	case r == ' ':
		return true
	case unicode.Is(unicode.Han, r):
		return true
	}
	return false
}
