package history

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/csvcompare/internal/config"
	"github.com/JonMunkholm/csvcompare/internal/report"
)

func newRun(t *testing.T, okay bool) *report.Run {
	t.Helper()
	run := report.NewRun(report.SourceAPI)
	run.Rules = []report.RuleResult{{
		Name: "upload",
		Kind: "CSV",
		Files: []report.FileResult{
			{RelativePath: "a.csv"},
			{RelativePath: "b.csv", IsError: !okay},
		},
	}}
	run.Finish()
	return run
}

func TestSummarize(t *testing.T) {
	run := newRun(t, false)
	sum := Summarize(run)

	assert.Equal(t, run.ID, sum.ID)
	assert.Equal(t, report.SourceAPI, sum.Source)
	assert.False(t, sum.AllOkay)
	assert.Equal(t, 1, sum.Rules)
	assert.Equal(t, 2, sum.Files)
	assert.Equal(t, 1, sum.FailedFiles)
}

func testStore(t *testing.T, store Store) {
	ctx := context.Background()

	first := newRun(t, true)
	second := newRun(t, false)
	second.StartedAt = first.StartedAt.Add(time.Second)
	require.NoError(t, store.Save(ctx, first))
	require.NoError(t, store.Save(ctx, second))

	list, err := store.List(ctx, 10)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(list), 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)

	rec, err := store.Get(ctx, second.ID)
	require.NoError(t, err)
	assert.False(t, rec.AllOkay)
	assert.Equal(t, 1, rec.FailedFiles)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(rec.Report, &decoded))
	assert.Equal(t, second.ID.String(), decoded["id"])

	_, err = store.Get(ctx, uuid.New())
	assert.True(t, errors.Is(err, ErrRunNotFound))

	pruned, err := store.Prune(ctx, first.StartedAt.Add(500*time.Millisecond))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, pruned, int64(1))

	_, err = store.Get(ctx, first.ID)
	assert.ErrorIs(t, err, ErrRunNotFound)
	_, err = store.Get(ctx, second.ID)
	assert.NoError(t, err)
}

func TestMemoryStore(t *testing.T) {
	testStore(t, NewMemoryStore(10))
}

func TestMemoryStore_Capacity(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(2)

	runs := []*report.Run{newRun(t, true), newRun(t, true), newRun(t, true)}
	for _, run := range runs {
		require.NoError(t, store.Save(ctx, run))
	}

	list, err := store.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, runs[2].ID, list[0].ID)
	assert.Equal(t, runs[1].ID, list[1].ID)

	_, err = store.Get(ctx, runs[0].ID)
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestMemoryStore_SaveTwiceKeepsOneEntry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(5)
	run := newRun(t, true)

	require.NoError(t, store.Save(ctx, run))
	require.NoError(t, store.Save(ctx, run))

	list, err := store.List(ctx, 5)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestMemoryStore_PruneKeepsOrder(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(5)
	now := time.Now()

	var runs []*report.Run
	for _, age := range []time.Duration{3 * time.Hour, time.Hour, 2 * time.Hour, 0} {
		run := newRun(t, true)
		run.StartedAt = now.Add(-age)
		require.NoError(t, store.Save(ctx, run))
		runs = append(runs, run)
	}

	pruned, err := store.Prune(ctx, now.Add(-90*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(2), pruned)

	list, err := store.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, runs[3].ID, list[0].ID)
	assert.Equal(t, runs[1].ID, list[1].ID)
}

func TestRunPruner(t *testing.T) {
	store := NewMemoryStore(5)
	old := newRun(t, true)
	old.StartedAt = time.Now().Add(-2 * time.Hour)
	require.NoError(t, store.Save(context.Background(), old))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		RunPruner(ctx, store, time.Hour, time.Hour)
	}()

	require.Eventually(t, func() bool {
		_, err := store.Get(context.Background(), old.ID)
		return errors.Is(err, ErrRunNotFound)
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pruner did not stop after cancel")
	}
}

func TestRunPruner_DisabledReturnsImmediately(t *testing.T) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		RunPruner(context.Background(), NewMemoryStore(1), 0, time.Hour)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pruner with zero retention should not start")
	}
}

func TestNormalizeLimit(t *testing.T) {
	assert.Equal(t, DefaultListLimit, normalizeLimit(0))
	assert.Equal(t, DefaultListLimit, normalizeLimit(-3))
	assert.Equal(t, DefaultListLimit, normalizeLimit(DefaultListLimit+1))
	assert.Equal(t, 7, normalizeLimit(7))
}

// TestPostgresStore runs against a real database when HISTORY_TEST_DATABASE_URL is set.
func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("HISTORY_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("HISTORY_TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := Connect(ctx, config.DatabaseConfig{URL: dsn, MaxConns: 2, MinConns: 1, MaxConnLifetime: time.Hour, MaxConnIdleTime: time.Minute})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	store := NewPostgresStore(pool)
	require.NoError(t, store.Migrate(ctx))
	require.NoError(t, store.Migrate(ctx))

	testStore(t, store)
}
