package registry

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mirofish/graphmemd/internal/extractor"
	"github.com/mirofish/graphmemd/internal/graphstore"
	"github.com/mirofish/graphmemd/internal/invalidator"
	"github.com/mirofish/graphmemd/internal/resolution"
	"github.com/mirofish/graphmemd/internal/updater"
)

type noopExtractor struct{}

func (noopExtractor) Extract(context.Context, string, extractor.Ontology) (extractor.Result, error) {
	return extractor.Result{}, nil
}

type noopResolver struct{}

func (noopResolver) ClearCache() {}
func (noopResolver) Resolve(context.Context, string, string, string, string, string, string) (resolution.ResolvedEntity, error) {
	return resolution.ResolvedEntity{}, nil
}
func (noopResolver) FindExisting(context.Context, string, string, string) (string, bool, error) {
	return "", false, nil
}

type noopInvalidator struct{}

func (noopInvalidator) DetectContradictions(context.Context, invalidator.Edge, []invalidator.Edge) []string {
	return nil
}

func newTestUpdater(graphID string) *updater.Updater {
	cfg := updater.DefaultConfig()
	cfg.ProcessInterval = 5 * time.Millisecond
	cfg.QueueGetTimeout = 20 * time.Millisecond
	cfg.StopJoinTimeout = time.Second
	return updater.NewUpdater(graphID, "proj1", nilStore{}, noopExtractor{}, noopResolver{}, noopInvalidator{}, extractor.Ontology{}, cfg, slog.Default())
}

// nilStore satisfies graphstore.Store with no-ops; the registry tests
// never drive a batch through, so no method is expected to be called.
type nilStore struct{ graphstore.Store }

func TestCreateStartsAndGetReturnsIt(t *testing.T) {
	reg := New(nil)
	u := newTestUpdater("g1")
	require.NoError(t, reg.Create(context.Background(), "sim1", u))

	got, ok := reg.Get("sim1")
	assert.True(t, ok)
	assert.Same(t, u, got)
	assert.Equal(t, "running", got.GetStats().State)

	reg.StopAll(context.Background())
}

func TestCreateReplacesAndStopsPrevious(t *testing.T) {
	reg := New(nil)
	first := newTestUpdater("g1")
	second := newTestUpdater("g2")

	require.NoError(t, reg.Create(context.Background(), "sim1", first))
	require.NoError(t, reg.Create(context.Background(), "sim1", second))

	assert.Equal(t, "stopped", first.GetStats().State)
	got, _ := reg.Get("sim1")
	assert.Same(t, second, got)

	reg.StopAll(context.Background())
}

func TestStopRemovesFromRegistry(t *testing.T) {
	reg := New(nil)
	u := newTestUpdater("g1")
	require.NoError(t, reg.Create(context.Background(), "sim1", u))
	require.NoError(t, reg.Stop(context.Background(), "sim1"))

	_, ok := reg.Get("sim1")
	assert.False(t, ok)
	assert.Equal(t, "stopped", u.GetStats().State)
}

func TestStopAllIsIdempotent(t *testing.T) {
	reg := New(nil)
	u := newTestUpdater("g1")
	require.NoError(t, reg.Create(context.Background(), "sim1", u))

	reg.StopAll(context.Background())
	reg.StopAll(context.Background())

	stats := reg.AllStats()
	assert.Empty(t, stats)
}

func TestAllStatsReportsEveryRegisteredUpdater(t *testing.T) {
	reg := New(nil)
	u1 := newTestUpdater("g1")
	u2 := newTestUpdater("g2")
	require.NoError(t, reg.Create(context.Background(), "sim1", u1))
	require.NoError(t, reg.Create(context.Background(), "sim2", u2))

	stats := reg.AllStats()
	assert.Len(t, stats, 2)
	assert.Contains(t, stats, "sim1")
	assert.Contains(t, stats, "sim2")

	reg.StopAll(context.Background())
}
