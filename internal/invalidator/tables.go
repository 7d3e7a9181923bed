package invalidator

import "strings"

// ContradictingRelations maps a relation label to the set of labels
// that are mutually exclusive with it — the long form named in spec.md
// §4.5/§9 ("adopt the long form"), reproduced in full across its
// emotion/attitude/opinion/social/action/ownership/collaboration/
// state-change groups.
var ContradictingRelations = map[string][]string{
	// Emotion
	"LIKES":    {"DISLIKES", "HATES", "OPPOSES"},
	"DISLIKES": {"LIKES", "LOVES", "SUPPORTS"},
	"LOVES":    {"HATES", "DISLIKES"},
	"HATES":    {"LOVES", "LIKES"},

	// Attitude
	"SUPPORTS":  {"OPPOSES", "AGAINST", "REJECTS", "CRITICIZES"},
	"OPPOSES":   {"SUPPORTS", "FOR", "ENDORSES", "ADVOCATES"},
	"TRUSTS":    {"DISTRUSTS", "MISTRUSTS"},
	"DISTRUSTS": {"TRUSTS"},
	"ENDORSES":  {"OPPOSES", "REJECTS", "CRITICIZES"},
	"REJECTS":   {"ACCEPTS", "ENDORSES", "SUPPORTS"},
	"ACCEPTS":   {"REJECTS", "REFUSES"},
	"REFUSES":   {"ACCEPTS", "AGREES_TO"},

	// Opinion
	"AGREES_WITH":    {"DISAGREES_WITH", "OPPOSES"},
	"DISAGREES_WITH": {"AGREES_WITH", "SUPPORTS"},
	"CRITICIZES":     {"PRAISES", "SUPPORTS", "ENDORSES"},
	"PRAISES":        {"CRITICIZES", "OPPOSES"},

	// Social
	"FOLLOWS":   {"UNFOLLOWS", "BLOCKS"},
	"UNFOLLOWS": {"FOLLOWS"},
	"BLOCKS":    {"FOLLOWS", "UNBLOCKS"},
	"UNBLOCKS":  {"BLOCKS"},

	// Action
	"JOINED":        {"LEFT", "QUIT", "RESIGNED_FROM"},
	"LEFT":          {"JOINED", "REJOINED"},
	"QUIT":          {"JOINED", "REJOINED"},
	"RESIGNED_FROM": {"JOINED", "HIRED_BY"},
	"HIRED_BY":      {"FIRED_FROM", "RESIGNED_FROM", "LEFT"},
	"FIRED_FROM":    {"HIRED_BY", "WORKS_FOR"},

	// Ownership / business
	"OWNS":           {"SOLD", "DIVESTED", "LOST"},
	"SOLD":           {"OWNS", "ACQUIRED", "BOUGHT"},
	"ACQUIRED":       {"SOLD", "DIVESTED"},
	"DIVESTED":       {"ACQUIRED", "OWNS", "INVESTED_IN"},
	"INVESTED_IN":    {"DIVESTED_FROM", "WITHDREW_FROM"},
	"DIVESTED_FROM":  {"INVESTED_IN", "INVESTS_IN"},
	"WITHDREW_FROM":  {"INVESTED_IN", "INVESTS_IN"},
	"INVESTS_IN":     {"DIVESTED_FROM", "WITHDREW_FROM"},

	// Collaboration / competition
	"COLLABORATES_WITH": {"COMPETES_WITH", "CONFLICTS_WITH"},
	"COMPETES_WITH":     {"COLLABORATES_WITH", "PARTNERS_WITH"},
	"PARTNERS_WITH":     {"COMPETES_WITH", "BREAKS_WITH"},
	"WORKS_WITH":        {"CONFLICTS_WITH", "OPPOSES"},
	"CONFLICTS_WITH":    {"COLLABORATES_WITH", "WORKS_WITH"},

	// State change
	"STARTED":   {"STOPPED", "ENDED", "CANCELLED"},
	"STOPPED":   {"STARTED", "RESUMED", "CONTINUED"},
	"ENDED":     {"STARTED", "BEGAN"},
	"BEGAN":     {"ENDED", "STOPPED"},
	"CANCELLED": {"CONFIRMED", "APPROVED"},
	"CONFIRMED": {"CANCELLED", "DENIED"},
	"APPROVED":  {"REJECTED", "DENIED", "CANCELLED"},
	"DENIED":    {"APPROVED", "CONFIRMED"},
}

// SemanticContradictionPair is a pair of synonym sets used to detect a
// contradiction *inside the same relation type*: if the existing fact
// contains any word from one set and the new fact contains any word
// from the other, the facts contradict (spec.md §4.5
// "SEMANTIC_CONTRADICTION_PAIRS").
type SemanticContradictionPair struct {
	Positive []string
	Negative []string
}

// SemanticContradictionPairs is checked pairwise against a new fact and
// an existing fact with the same relation label.
var SemanticContradictionPairs = []SemanticContradictionPair{
	{
		Positive: []string{"support", "supports", "favor", "approve", "endorse"},
		Negative: []string{"oppose", "opposes", "against", "reject", "disapprove"},
	},
	{
		Positive: []string{"like", "likes", "love", "loves", "enjoy"},
		Negative: []string{"hate", "hates", "dislike", "dislikes", "detest"},
	},
	{
		Positive: []string{"trust", "trusts", "believe", "believes"},
		Negative: []string{"distrust", "distrusts", "doubt", "doubts", "mistrust"},
	},
	{
		Positive: []string{"collaborate", "collaborates", "cooperate", "partner"},
		Negative: []string{"compete", "competes", "rival", "conflict"},
	},
	{
		Positive: []string{"accept", "accepts", "agree", "agrees"},
		Negative: []string{"reject", "rejects", "refuse", "refuses", "decline"},
	},
	{
		Positive: []string{"join", "joins", "joined", "enter", "entered"},
		Negative: []string{"leave", "leaves", "left", "quit", "quits", "exit"},
	},
	{
		Positive: []string{"buy", "buys", "bought", "acquire", "acquires", "acquired"},
		Negative: []string{"sell", "sells", "sold", "divest", "divests"},
	},
	{
		Positive: []string{"start", "starts", "started", "begin", "begins", "began", "launch"},
		Negative: []string{"stop", "stops", "stopped", "end", "ends", "ended", "terminate"},
	},
}

func normalizeRelation(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

func isContradictingRelation(newRelation, existingRelation string) bool {
	set, ok := ContradictingRelations[normalizeRelation(newRelation)]
	if !ok {
		return false
	}
	target := normalizeRelation(existingRelation)
	for _, r := range set {
		if r == target {
			return true
		}
	}
	return false
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

func isSemanticContradiction(newFact, existingFact string) bool {
	newLower := strings.ToLower(newFact)
	existingLower := strings.ToLower(existingFact)
	for _, pair := range SemanticContradictionPairs {
		newHasPos := containsAny(newLower, pair.Positive)
		newHasNeg := containsAny(newLower, pair.Negative)
		existingHasPos := containsAny(existingLower, pair.Positive)
		existingHasNeg := containsAny(existingLower, pair.Negative)
		if (newHasPos && existingHasNeg) || (newHasNeg && existingHasPos) {
			return true
		}
	}
	return false
}
