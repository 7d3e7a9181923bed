package resolution

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// splitRunes turns a string into a []string of single characters, the
// shape github.com/pmezard/go-difflib's SequenceMatcher operates on
// (it compares slice elements, not runs of characters).
func splitRunes(s string) []string {
	runes := []rune(s)
	out := make([]string, len(runes))
	for i, r := range runes {
		out[i] = string(r)
	}
	return out
}

// SeqRatio is a difflib-equivalent longest-common-subsequence ratio in
// [0,1] (spec.md §4.4 "seqRatio").
func SeqRatio(a, b string) float64 {
	if a == "" && b == "" {
		return 1.0
	}
	matcher := difflib.NewMatcher(splitRunes(a), splitRunes(b))
	return matcher.Ratio()
}

// TokenJaccard is set-Jaccard similarity over whitespace-split tokens
// (spec.md §4.4 "tokenJaccard").
func TokenJaccard(a, b string) float64 {
	ta := tokenSet(a)
	tb := tokenSet(b)
	if len(ta) == 0 && len(tb) == 0 {
		return 1.0
	}
	inter := 0
	for t := range ta {
		if tb[t] {
			inter++
		}
	}
	union := len(ta) + len(tb) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func tokenSet(s string) map[string]bool {
	set := map[string]bool{}
	for _, t := range strings.Fields(s) {
		set[t] = true
	}
	return set
}
