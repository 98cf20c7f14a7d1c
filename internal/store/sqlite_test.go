package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/gchange/internal/model"
	"github.com/sells-group/gchange/internal/ngmatch"
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

// --- NG lists ---

func TestSQLite_NGList_SaveAndLoad(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	want := ngmatch.List{Names: []string{"ABC", "XYZ商店"}, Phones: []string{"03-1111-2222"}}
	require.NoError(t, st.SaveNGList(ctx, "clientA", want))

	got, err := st.Load(ctx, "clientA")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSQLite_NGList_SaveReplaces(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.SaveNGList(ctx, "clientA", ngmatch.List{Names: []string{"old"}}))
	require.NoError(t, st.SaveNGList(ctx, "clientA", ngmatch.List{Phones: []string{"06-3333-4444"}}))

	got, err := st.Load(ctx, "clientA")
	require.NoError(t, err)
	assert.Empty(t, got.Names)
	assert.Equal(t, []string{"06-3333-4444"}, got.Phones)

	names, err := st.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"clientA"}, names)
}

func TestSQLite_NGList_EmptyList(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.SaveNGList(ctx, "empty", ngmatch.List{}))

	got, err := st.Load(ctx, "empty")
	require.NoError(t, err)
	assert.NotNil(t, got.Names)
	assert.NotNil(t, got.Phones)
	assert.Equal(t, 0, got.Len())
}

func TestSQLite_NGList_ListSorted(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	names, err := st.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)

	for _, n := range []string{"clientC", "clientA", "clientB"} {
		require.NoError(t, st.SaveNGList(ctx, n, ngmatch.List{Names: []string{n}}))
	}
	names, err = st.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"clientA", "clientB", "clientC"}, names)
}

func TestSQLite_NGList_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.Load(ctx, "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ngmatch.ErrExclusionListNotFound))

	err = st.DeleteNGList(ctx, "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ngmatch.ErrExclusionListNotFound))
}

func TestSQLite_NGList_InvalidName(t *testing.T) {
	st := newTestSQLiteStore(t)

	err := st.SaveNGList(context.Background(), "../escape", ngmatch.List{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ngmatch.ErrExclusionListNotFound))
}

func TestSQLite_NGList_Delete(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.SaveNGList(ctx, "clientA", ngmatch.List{Names: []string{"ABC"}}))
	require.NoError(t, st.DeleteNGList(ctx, "clientA"))

	_, err := st.Load(ctx, "clientA")
	assert.True(t, errors.Is(err, ngmatch.ErrExclusionListNotFound))

	var n int
	require.NoError(t, st.db.QueryRow(`SELECT COUNT(*) FROM ng_entries`).Scan(&n))
	assert.Equal(t, 0, n)
}

func TestSQLite_NGList_DeleteFromAnotherPooledConn(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.SaveNGList(ctx, "clientA", ngmatch.List{Names: []string{"ABC"}, Phones: []string{"03-1111-2222"}}))

	// Hold one connection so the delete runs on a different one.
	conn, err := st.db.Conn(ctx)
	require.NoError(t, err)
	defer conn.Close() //nolint:errcheck

	require.NoError(t, st.DeleteNGList(ctx, "clientA"))

	var orphans int
	require.NoError(t, conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM ng_entries`).Scan(&orphans))
	assert.Equal(t, 0, orphans)

	var fk int
	require.NoError(t, conn.QueryRowContext(ctx, `PRAGMA foreign_keys`).Scan(&fk))
	assert.Equal(t, 1, fk)
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t,
		"a.db?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(1)",
		sqliteDSN("a.db"))
	assert.Equal(t,
		"file:a.db?mode=rwc&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(1)",
		sqliteDSN("file:a.db?mode=rwc"))
}

// --- Runs ---

func TestSQLite_Runs_RecordAndList(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	first := &model.Run{Source: "a.xlsx", NGList: "clientA", Layout: model.LayoutFlat, Total: 3, Kept: 2, Excluded: 1, CreatedAt: base}
	second := &model.Run{Source: "b.csv", Layout: model.LayoutTabular, Total: 5, Kept: 5, CreatedAt: base.Add(time.Hour)}
	require.NoError(t, st.RecordRun(ctx, first))
	require.NoError(t, st.RecordRun(ctx, second))
	assert.NotEmpty(t, first.ID)

	runs, err := st.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second.ID, runs[0].ID)
	assert.Equal(t, "b.csv", runs[0].Source)
	assert.Equal(t, model.LayoutTabular, runs[0].Layout)
	assert.Equal(t, first.ID, runs[1].ID)
	assert.Equal(t, "clientA", runs[1].NGList)
	assert.Equal(t, 1, runs[1].Excluded)
	assert.True(t, base.Equal(runs[1].CreatedAt))

	runs, err = st.ListRuns(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestSQLite_Runs_DefaultsTimestamp(t *testing.T) {
	st := newTestSQLiteStore(t)

	run := &model.Run{Source: "x.xlsx", Layout: model.LayoutFlat}
	require.NoError(t, st.RecordRun(context.Background(), run))
	assert.False(t, run.CreatedAt.IsZero())
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown driver")
}

func TestOpen_SQLite(t *testing.T) {
	st, err := Open(context.Background(), "sqlite", filepath.Join(t.TempDir(), "open.db"))
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
}
