package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/procurement-sim/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func testRun(t *testing.T, engine model.Engine, fp string, at time.Time) *model.Run {
	t.Helper()
	r, err := NewRun(engine, fp, map[string]any{"quantile": 0.75}, map[string]any{"savings": "2000"})
	require.NoError(t, err)
	r.CreatedAt = at
	return r
}

func TestSQLite_SaveAndGetRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run := testRun(t, model.EngineMitigation, "abc", time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))
	require.NoError(t, st.SaveRun(ctx, run))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, model.EngineMitigation, got.Engine)
	assert.Equal(t, "abc", got.Fingerprint)
	assert.True(t, run.CreatedAt.Equal(got.CreatedAt))

	var summary map[string]string
	require.NoError(t, json.Unmarshal(got.Summary, &summary))
	assert.Equal(t, "2000", summary["savings"])
	assert.JSONEq(t, `{"quantile":0.75}`, string(got.Params))
}

func TestSQLite_GetRun_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)
	_, err := st.GetRun(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_ListRuns(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	runs := []*model.Run{
		testRun(t, model.EngineBenchmark, "a", base),
		testRun(t, model.EngineMitigation, "a", base.Add(time.Hour)),
		testRun(t, model.EngineBenchmark, "b", base.Add(2*time.Hour)),
	}
	for _, r := range runs {
		require.NoError(t, st.SaveRun(ctx, r))
	}

	all, err := st.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, runs[2].ID, all[0].ID, "newest first")

	bench, err := st.ListRuns(ctx, RunFilter{Engine: model.EngineBenchmark})
	require.NoError(t, err)
	assert.Len(t, bench, 2)

	onA, err := st.ListRuns(ctx, RunFilter{Fingerprint: "a", Limit: 1})
	require.NoError(t, err)
	require.Len(t, onA, 1)
	assert.Equal(t, runs[1].ID, onA[0].ID)

	paged, err := st.ListRuns(ctx, RunFilter{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, paged, 1)
	assert.Equal(t, runs[0].ID, paged[0].ID)
}

func TestSQLite_DeleteRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run := testRun(t, model.EngineScenario, "x", time.Now().UTC())
	require.NoError(t, st.SaveRun(ctx, run))
	require.NoError(t, st.DeleteRun(ctx, run.ID))
	assert.ErrorIs(t, st.DeleteRun(ctx, run.ID), ErrNotFound)
}

func TestSQLite_DuplicateID(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run := testRun(t, model.EngineScenario, "x", time.Now().UTC())
	require.NoError(t, st.SaveRun(ctx, run))
	require.Error(t, st.SaveRun(ctx, run))
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	st, err := Open(ctx, "sqlite", filepath.Join(t.TempDir(), "open.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck

	runs, err := st.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	assert.Empty(t, runs)

	_, err = Open(ctx, "mysql", "")
	require.Error(t, err)
}
