package resolution

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	apperrors "github.com/mirofish/graphmemd/internal/errors"
	"github.com/mirofish/graphmemd/internal/graphstore"
	"github.com/mirofish/graphmemd/internal/llmrotation"
)

const searchCandidateLimit = 20

// ChatJSONClient is the slice of internal/llmrotation.Client the
// resolver's optional LLM-disambiguation step needs.
type ChatJSONClient interface {
	ChatJSON(ctx context.Context, messages []llmrotation.Message, temperature float32, maxTokens int, stage llmrotation.Stage) (map[string]any, error)
}

// Config tunes the resolver (mirrors internal/config.UpdaterConfig's
// resolver fields so callers can pass it straight through).
type Config struct {
	MinNameLength        int
	FuzzyMatchThreshold  float64
	LLMDisambiguationMin float64
	LLMDisambiguation    bool
}

// Resolver is component C4. One instance is owned per Updater; its
// cache is never shared across updaters (spec.md §5 "resolver cache").
type Resolver struct {
	store  graphstore.Store
	llm    ChatJSONClient // may be nil: LLM disambiguation simply never triggers
	cfg    Config
	logger *slog.Logger

	cache map[string]ResolvedEntity // key: graphID + "\x00" + normalized name
}

func New(store graphstore.Store, llm ChatJSONClient, cfg Config) *Resolver {
	return &Resolver{
		store:  store,
		llm:    llm,
		cfg:    cfg,
		logger: slog.Default().With("component", "resolution"),
		cache:  make(map[string]ResolvedEntity),
	}
}

// ClearCache must be called at the start of every batch (spec.md §4.4
// "Cache").
func (r *Resolver) ClearCache() {
	r.cache = make(map[string]ResolvedEntity)
}

func cacheKey(graphID, normalizedName string) string {
	return graphID + "\x00" + normalizedName
}

// Resolve implements the two/three-stage strategy in spec.md §4.4.
func (r *Resolver) Resolve(ctx context.Context, graphID, projectID, name, entityType, summary string, episodeText string) (ResolvedEntity, error) {
	norm := Normalize(name)
	key := cacheKey(graphID, norm)
	if cached, ok := r.cache[key]; ok {
		return cached, nil
	}

	resolved, err := r.resolveUncached(ctx, graphID, projectID, name, entityType, summary, episodeText, norm)
	if err != nil {
		return ResolvedEntity{}, err
	}
	r.cache[key] = resolved
	return resolved, nil
}

func (r *Resolver) resolveUncached(ctx context.Context, graphID, projectID, name, entityType, summary, episodeText, norm string) (ResolvedEntity, error) {
	trimmed := strings.TrimSpace(name)
	if len(trimmed) < r.cfg.MinNameLength {
		return ResolvedEntity{
			UUID:       graphstore.DeterministicEntityUUID("", entityType, norm),
			Name:       name,
			EntityType: entityType,
			IsNew:      true,
		}, nil
	}

	fuzzy := NormalizeFuzzy(name)

	candidates, err := r.store.SearchSimilarEntities(ctx, graphID, name, searchCandidateLimit)
	if err != nil {
		return ResolvedEntity{}, apperrors.StoreFailureError(err, "searching similar entities")
	}

	var (
		bestScore float64
		bestCand  *graphstore.Entity
	)
	for i := range candidates {
		cand := candidates[i].Entity
		candNorm := Normalize(cand.Name)
		if candNorm == norm {
			return ResolvedEntity{
				UUID:                cand.UUID,
				Name:                CanonicalName(name, cand.Name),
				EntityType:          cand.EntityType,
				IsNew:               false,
				MatchedUUID:         cand.UUID,
				MatchScore:          1.0,
				ShouldUpdateSummary: summary != "",
			}, nil
		}
		candFuzzy := NormalizeFuzzy(cand.Name)
		score := maxFloat(
			SeqRatio(norm, candNorm),
			SeqRatio(fuzzy, candFuzzy),
			TokenJaccard(fuzzy, candFuzzy),
		)
		if score > bestScore {
			bestScore = score
			c := cand
			bestCand = &c
		}
	}

	if bestCand != nil && bestScore >= r.cfg.FuzzyMatchThreshold {
		return ResolvedEntity{
			UUID:                bestCand.UUID,
			Name:                CanonicalName(name, bestCand.Name),
			EntityType:          bestCand.EntityType,
			IsNew:               false,
			MatchedUUID:         bestCand.UUID,
			MatchScore:          bestScore,
			ShouldUpdateSummary: summary != "",
		}, nil
	}

	if r.cfg.LLMDisambiguation && r.llm != nil && bestCand != nil &&
		bestScore >= r.cfg.LLMDisambiguationMin && bestScore < r.cfg.FuzzyMatchThreshold {
		if match := r.disambiguate(ctx, name, candidates, episodeText); match != nil {
			return ResolvedEntity{
				UUID:                match.UUID,
				Name:                CanonicalName(name, match.Name),
				EntityType:          match.EntityType,
				IsNew:               false,
				MatchedUUID:         match.UUID,
				MatchScore:          bestScore,
				ShouldUpdateSummary: summary != "",
			}, nil
		}
	}

	return ResolvedEntity{
		UUID:       graphstore.DeterministicEntityUUID(projectID, entityType, norm),
		Name:       name,
		EntityType: entityType,
		IsNew:      true,
		MatchScore: bestScore,
	}, nil
}

// FindExisting runs the deterministic stage against existing nodes
// only, never creating a new entity (spec.md §4.6.3 "find_existing_entity").
func (r *Resolver) FindExisting(ctx context.Context, graphID, name, entityType string) (string, bool, error) {
	norm := Normalize(name)
	fuzzy := NormalizeFuzzy(name)

	candidates, err := r.store.SearchSimilarEntities(ctx, graphID, name, searchCandidateLimit)
	if err != nil {
		return "", false, apperrors.StoreFailureError(err, "searching similar entities")
	}

	var bestScore float64
	var bestUUID string
	for i := range candidates {
		cand := candidates[i].Entity
		candNorm := Normalize(cand.Name)
		if candNorm == norm {
			return cand.UUID, true, nil
		}
		candFuzzy := NormalizeFuzzy(cand.Name)
		score := maxFloat(
			SeqRatio(norm, candNorm),
			SeqRatio(fuzzy, candFuzzy),
			TokenJaccard(fuzzy, candFuzzy),
		)
		if score > bestScore {
			bestScore = score
			bestUUID = cand.UUID
		}
	}
	if bestScore >= r.cfg.FuzzyMatchThreshold {
		return bestUUID, true, nil
	}
	return "", false, nil
}

// disambiguate prompts an LLM with the new entity, its candidates, and
// the episode text, asking it for {duplicate_idx} (-1 = none). Failures
// and out-of-range indices fall back to "no match" (spec.md §4.4 step 3,
// §7 "ResolverLLMFailure: log and fall back").
func (r *Resolver) disambiguate(ctx context.Context, name string, candidates []graphstore.SimilarEntity, episodeText string) *graphstore.Entity {
	var b strings.Builder
	fmt.Fprintf(&b, "New entity: %q\n\nCandidates:\n", name)
	for i, c := range candidates {
		fmt.Fprintf(&b, "[%d] %s (%s)\n", i, c.Entity.Name, c.Entity.EntityType)
	}
	fmt.Fprintf(&b, "\nEpisode text:\n%s\n", episodeText)

	messages := []llmrotation.Message{
		{Role: "system", Content: `You resolve whether a newly extracted entity is the same real-world thing as one of the listed candidates. Return ONLY JSON: {"duplicate_idx": <int>} where duplicate_idx is the candidate index (0-based, as bracketed above) that is the same entity, or -1 if none of them match.`},
		{Role: "user", Content: b.String()},
	}

	raw, err := r.llm.ChatJSON(ctx, messages, 0.0, 256, llmrotation.StageReasoning)
	if err != nil {
		r.logger.Warn("resolver llm disambiguation failed, falling back to deterministic result", "error", apperrors.ResolverLLMFailureError(err, "disambiguation call failed"))
		return nil
	}

	idxVal, ok := raw["duplicate_idx"]
	if !ok {
		return nil
	}
	idxFloat, ok := idxVal.(float64)
	if !ok {
		return nil
	}
	idx := int(idxFloat)
	if idx < 0 || idx >= len(candidates) {
		return nil
	}
	return &candidates[idx].Entity
}

func maxFloat(vals ...float64) float64 {
	m := vals[0]
	for _, v := range vals[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
