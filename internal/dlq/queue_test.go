package dlq

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T) *Queue {
	t.Helper()
	db, err := sqlx.Connect("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	q := NewQueue(db)
	require.NoError(t, q.Migrate(context.Background()))
	return q
}

func TestEnqueueThenGetRecentFailures(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	err := q.Enqueue(ctx, "g1", "ep1", "twitter", map[string]interface{}{"round": 1}, errors.New("extract failed"))
	require.NoError(t, err)

	failures, err := q.GetRecentFailures(ctx, "g1", 10)
	require.NoError(t, err)
	require.Len(t, failures, 1)
	require.Equal(t, "ep1", failures[0].EpisodeID)
	require.Equal(t, "extract failed", failures[0].ErrorMessage)
	require.Equal(t, 0, failures[0].RetryCount)
	require.EqualValues(t, 1, failures[0].Payload["round"])
}

func TestEnqueueSamePairBumpsRetryCount(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, "g1", "ep1", "twitter", nil, errors.New("first")))
	require.NoError(t, q.Enqueue(ctx, "g1", "ep1", "twitter", nil, errors.New("second")))

	failures, err := q.GetRecentFailures(ctx, "g1", 10)
	require.NoError(t, err)
	require.Len(t, failures, 1)
	require.Equal(t, 1, failures[0].RetryCount)
	require.Equal(t, "second", failures[0].ErrorMessage)
}

func TestGetPendingRetriesExcludesExhausted(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, "g1", "ep1", "twitter", nil, errors.New("e")))
	for i := 0; i < 3; i++ {
		require.NoError(t, q.Enqueue(ctx, "g1", "ep2", "twitter", nil, errors.New("e")))
	}

	pending, err := q.GetPendingRetries(ctx, "g1", 3)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, "ep1", pending[0].EpisodeID)
}

func TestMarkResolvedRemovesEntry(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, "g1", "ep1", "twitter", nil, errors.New("e")))
	require.NoError(t, q.MarkResolved(ctx, "g1", "ep1"))

	failures, err := q.GetRecentFailures(ctx, "g1", 10)
	require.NoError(t, err)
	require.Empty(t, failures)
}

func TestGetStatsSplitsRetryableAndExhausted(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, "g1", "ep1", "twitter", nil, errors.New("e")))
	for i := 0; i < 3; i++ {
		require.NoError(t, q.Enqueue(ctx, "g1", "ep2", "twitter", nil, errors.New("e")))
	}

	stats, err := q.GetStats(ctx, "g1", 3)
	require.NoError(t, err)
	require.Equal(t, 2, stats.TotalEntries)
	require.Equal(t, 1, stats.ExhaustedRetries)
	require.Equal(t, 1, stats.RetryableEntries)
}

func TestPurgeOldRemovesEntriesPastCutoff(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, "g1", "ep1", "twitter", nil, errors.New("e")))

	purged, err := q.PurgeOld(ctx, -time.Hour)
	require.NoError(t, err)
	require.Equal(t, 1, purged)

	failures, err := q.GetRecentFailures(ctx, "g1", 10)
	require.NoError(t, err)
	require.Empty(t, failures)
}
