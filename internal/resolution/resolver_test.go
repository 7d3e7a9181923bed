package resolution

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mirofish/graphmemd/internal/graphstore"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "alice wu", Normalize("  Alice   Wu \n"))
	assert.Equal(t, "", Normalize("   "))
}

func TestNormalizeFuzzyDropsPunctuation(t *testing.T) {
	assert.Equal(t, "alice wu", NormalizeFuzzy("Alice, Wu!!"))
	assert.Equal(t, "", NormalizeFuzzy("***"))
}

func TestSeqRatioIdenticalIsOne(t *testing.T) {
	assert.Equal(t, 1.0, SeqRatio("alice", "alice"))
	assert.Equal(t, 1.0, SeqRatio("", ""))
}

func TestSeqRatioCloseStringsScoreHigh(t *testing.T) {
	r := SeqRatio("alice wu", "alice wuu")
	assert.Greater(t, r, 0.8)
}

func TestTokenJaccard(t *testing.T) {
	assert.Equal(t, 1.0, TokenJaccard("a b c", "b c a"))
	assert.Equal(t, 0.0, TokenJaccard("a b", "c d"))
	assert.InDelta(t, 0.5, TokenJaccard("a b", "a c"), 0.01)
}

func TestCanonicalNamePicksLonger(t *testing.T) {
	assert.Equal(t, "Alice Wu", CanonicalName("Alice Wu", "Alice"))
	assert.Equal(t, "Alice", CanonicalName("Ali", "Alice"))
	assert.Equal(t, "Alice", CanonicalName("Alice", "Alice"))
}

// fakeStore implements graphstore.Store with only SearchSimilarEntities
// wired to a fixed candidate list; every other method is unused by the
// resolver and panics if called.
type fakeStore struct {
	graphstore.Store
	candidates []graphstore.SimilarEntity
}

func (f *fakeStore) SearchSimilarEntities(ctx context.Context, graphID, name string, limit int) ([]graphstore.SimilarEntity, error) {
	return f.candidates, nil
}

func TestResolveExactMatchReturnsExisting(t *testing.T) {
	store := &fakeStore{candidates: []graphstore.SimilarEntity{
		{Entity: graphstore.Entity{UUID: "u1", Name: "Alice", EntityType: "Person"}, Score: 3},
	}}
	r := New(store, nil, Config{MinNameLength: 2, FuzzyMatchThreshold: 0.85})

	resolved, err := r.Resolve(context.Background(), "g1", "p1", "alice", "Person", "", "")
	require.NoError(t, err)
	assert.False(t, resolved.IsNew)
	assert.Equal(t, "u1", resolved.MatchedUUID)
	assert.Equal(t, 1.0, resolved.MatchScore)
}

func TestResolveShortNameIsAlwaysNew(t *testing.T) {
	store := &fakeStore{}
	r := New(store, nil, Config{MinNameLength: 2, FuzzyMatchThreshold: 0.85})

	resolved, err := r.Resolve(context.Background(), "g1", "p1", "a", "Person", "", "")
	require.NoError(t, err)
	assert.True(t, resolved.IsNew)
}

func TestResolveNoCandidatesIsNew(t *testing.T) {
	store := &fakeStore{}
	r := New(store, nil, Config{MinNameLength: 2, FuzzyMatchThreshold: 0.85})

	resolved, err := r.Resolve(context.Background(), "g1", "p1", "Bluesky", "Product", "a social app", "")
	require.NoError(t, err)
	assert.True(t, resolved.IsNew)
	assert.NotEmpty(t, resolved.UUID)
}

func TestResolveCachesPerBatch(t *testing.T) {
	store := &fakeStore{}
	r := New(store, nil, Config{MinNameLength: 2, FuzzyMatchThreshold: 0.85})

	first, err := r.Resolve(context.Background(), "g1", "p1", "Bluesky", "Product", "", "")
	require.NoError(t, err)
	second, err := r.Resolve(context.Background(), "g1", "p1", "Bluesky", "Product", "", "")
	require.NoError(t, err)
	assert.Equal(t, first.UUID, second.UUID)

	r.ClearCache()
	third, err := r.Resolve(context.Background(), "g1", "p1", "Bluesky", "Product", "", "")
	require.NoError(t, err)
	assert.Equal(t, first.UUID, third.UUID) // deterministic uuid, same regardless of cache
}

func TestDeterministicEntityUUIDIsStable(t *testing.T) {
	a := graphstore.DeterministicEntityUUID("p1", "Person", "alice")
	b := graphstore.DeterministicEntityUUID("p1", "Person", "alice")
	c := graphstore.DeterministicEntityUUID("p1", "Person", "bob")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
