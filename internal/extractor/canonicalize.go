package extractor

import "strings"

// canonicalizeType maps a raw extractor label onto the ontology's
// canonical casing/spelling when a case-insensitive match exists;
// otherwise it passes the raw label through untouched (spec.md §4.3
// "canonicalized by a simple mapping (collaborator)").
func canonicalizeType(raw string, known []string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return raw
	}
	for _, k := range known {
		if strings.EqualFold(raw, k) {
			return k
		}
	}
	return raw
}
