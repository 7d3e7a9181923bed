package resolution

// ResolvedEntity is resolve()'s return shape (spec.md §4.4 "Contract").
type ResolvedEntity struct {
	UUID                string
	Name                string
	EntityType          string
	IsNew               bool
	MatchedUUID         string
	MatchScore          float64 // in [0,1]; diagnostic when IsNew
	ShouldUpdateSummary bool
}

// CanonicalName picks the longer of the two names after stripping
// whitespace, ties favoring the existing name (spec.md §4.4 "Canonical
// name selection").
func CanonicalName(newName, existingName string) string {
	strip := func(s string) string {
		out := make([]rune, 0, len(s))
		for _, r := range s {
			if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
				continue
			}
			out = append(out, r)
		}
		return string(out)
	}
	if len(strip(newName)) > len(strip(existingName)) {
		return newName
	}
	return existingName
}
