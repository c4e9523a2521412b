package store

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/huangsam/repohealth/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// newTestStore opens a report store on a fresh SQLite file.
func newTestStore(t *testing.T) (*ReportStoreImpl, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "repohealth.db")
	rs, err := NewReportStore(schema.SQLiteBackend, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rs.Close() })
	return rs, path
}

func record(repoID, commit string, global int, at time.Time) schema.ReportRecord {
	return schema.ReportRecord{
		RepositoryID: repoID,
		Report: schema.Report{
			RepositoryID:    repoID,
			Commit:          commit,
			ChecksetVersion: "2026.1:code",
			CreatedAt:       at,
			Outcomes: []schema.CheckOutcome{
				{CheckID: "readme", Category: schema.DocumentationCategory, Status: schema.PassedStatus, Detail: "README.md"},
			},
		},
		Score: schema.Score{
			Global:     global,
			Rating:     schema.Rating(global),
			Categories: map[schema.Category]int{schema.DocumentationCategory: global},
		},
		UpdatedAt:     at,
		LastCheckedAt: at,
	}
}

func TestReportStore_NoneBackend(t *testing.T) {
	rs, err := NewReportStore(schema.NoneBackend, "")
	require.NoError(t, err)
	ctx := context.Background()

	assert.NoError(t, rs.SaveReport(ctx, record("a/b", "c1", 50, time.Now()), true))
	score, err := rs.GetLastScore(ctx, "a/b")
	assert.NoError(t, err)
	assert.Nil(t, score)
	assert.NoError(t, rs.BeginRun(ctx, "run", time.Now(), nil))
	assert.NoError(t, rs.EndRun(ctx, "run", time.Now(), schema.SweepSummary{}))

	status, err := rs.GetStatus(ctx)
	require.NoError(t, err)
	assert.False(t, status.Connected)
	assert.NoError(t, rs.Close())
}

func TestReportStore_SaveAndGet(t *testing.T) {
	rs, _ := newTestStore(t)
	ctx := context.Background()
	at := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	score, err := rs.GetLastScore(ctx, "cncf/artifacthub")
	require.NoError(t, err)
	assert.Nil(t, score, "nothing stored yet")

	rec := record("cncf/artifacthub", "c1", 60, at)
	require.NoError(t, rs.SaveReport(ctx, rec, true))

	score, err = rs.GetLastScore(ctx, "cncf/artifacthub")
	require.NoError(t, err)
	require.NotNil(t, score)
	assert.True(t, score.Score.Equal(rec.Score))
	assert.Equal(t, "c1", score.Commit)
	assert.Equal(t, "2026.1:code", score.ChecksetVersion)
	assert.True(t, score.UpdatedAt.Equal(at))

	got, err := rs.GetReport(ctx, "cncf/artifacthub")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Report.Equivalent(&rec.Report))
	assert.Equal(t, "b", got.Score.Rating)

	missing, err := rs.GetReport(ctx, "nobody/home")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestReportStore_UpsertKeepsOneCurrentReport(t *testing.T) {
	rs, _ := newTestStore(t)
	ctx := context.Background()
	at := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, rs.SaveReport(ctx, record("b/repo", "c1", 40, at), true))
	require.NoError(t, rs.SaveReport(ctx, record("b/repo", "c2", 80, at.Add(time.Hour)), true))
	require.NoError(t, rs.SaveReport(ctx, record("a/repo", "c9", 10, at), false))

	reports, err := rs.ListReports(ctx)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, "a/repo", reports[0].RepositoryID)
	assert.Equal(t, "c2", reports[1].Report.Commit)

	snaps, err := rs.ListSnapshots(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, snaps, 2, "report-only saves append no snapshot")
}

func TestReportStore_ListSnapshotsNewestFirst(t *testing.T) {
	rs, _ := newTestStore(t)
	ctx := context.Background()
	at := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	for i, global := range []int{20, 40, 60} {
		rec := record("x/y", "c", global, at.Add(time.Duration(i)*time.Hour))
		require.NoError(t, rs.SaveReport(ctx, rec, true))
	}
	require.NoError(t, rs.SaveReport(ctx, record("other/repo", "c", 99, at), true))

	snaps, err := rs.ListSnapshots(ctx, "x/y", 2)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, 60, snaps[0].Score.Global)
	assert.Equal(t, 40, snaps[1].Score.Global)
	assert.True(t, snaps[0].CreatedAt.Equal(at.Add(2*time.Hour)))

	all, err := rs.ListSnapshots(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestReportStore_SaveIsAtomic(t *testing.T) {
	rs, _ := newTestStore(t)
	ctx := context.Background()
	at := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, rs.SaveReport(ctx, record("x/y", "c1", 30, at), false))
	_, err := rs.db.ExecContext(ctx, `DROP TABLE repohealth_snapshots`)
	require.NoError(t, err)

	err = rs.SaveReport(ctx, record("x/y", "c2", 90, at.Add(time.Hour)), true)
	require.Error(t, err)

	got, err := rs.GetReport(ctx, "x/y")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "c1", got.Report.Commit, "failed snapshot rolls back the report")
}

func TestReportStore_TouchLastChecked(t *testing.T) {
	rs, _ := newTestStore(t)
	ctx := context.Background()
	at := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, rs.SaveReport(ctx, record("x/y", "c1", 30, at), true))
	later := at.Add(48 * time.Hour)
	require.NoError(t, rs.TouchLastChecked(ctx, "x/y", later))

	score, err := rs.GetLastScore(ctx, "x/y")
	require.NoError(t, err)
	assert.True(t, score.UpdatedAt.Equal(at))
	assert.True(t, score.LastCheckedAt.Equal(later))

	snaps, err := rs.ListSnapshots(ctx, "x/y", 0)
	require.NoError(t, err)
	assert.Len(t, snaps, 1)
}

func TestReportStore_Runs(t *testing.T) {
	rs, _ := newTestStore(t)
	ctx := context.Background()
	start := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, rs.BeginRun(ctx, "run-1", start, map[string]any{"concurrency": 4}))
	require.NoError(t, rs.BeginRun(ctx, "run-2", start.Add(time.Hour), nil))
	summary := schema.SweepSummary{Total: 5, Done: 3, Archived: 1, Failed: 1, Pending: 1}
	require.NoError(t, rs.EndRun(ctx, "run-1", start.Add(90*time.Second), summary))

	err := rs.EndRun(ctx, "missing", start, summary)
	assert.ErrorIs(t, err, ErrNotFound)

	runs, err := rs.GetAllRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	first := runs[0]
	assert.Equal(t, "run-1", first.RunID)
	require.NotNil(t, first.EndTime)
	require.NotNil(t, first.DurationMs)
	assert.Equal(t, int64(90000), *first.DurationMs)
	assert.Equal(t, int32(3), first.Done)
	assert.Equal(t, int32(1), first.Pending)
	require.NotNil(t, first.ConfigParams)
	assert.JSONEq(t, `{"concurrency":4}`, *first.ConfigParams)

	assert.Nil(t, runs[1].EndTime, "unfinished run")
}

func TestReportStore_GetStatus(t *testing.T) {
	rs, _ := newTestStore(t)
	ctx := context.Background()
	at := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	status, err := rs.GetStatus(ctx)
	require.NoError(t, err)
	assert.True(t, status.Connected)
	assert.Zero(t, status.TotalReports)

	require.NoError(t, rs.SaveReport(ctx, record("x/y", "c1", 30, at), true))
	require.NoError(t, rs.BeginRun(ctx, "run-1", at, nil))

	status, err = rs.GetStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", status.Backend)
	assert.Equal(t, 1, status.TotalReports)
	assert.Equal(t, 1, status.TotalSnapshots)
	assert.Equal(t, 1, status.TotalRuns)
	assert.Equal(t, "run-1", status.LastRunID)
	assert.True(t, status.LastCheckedTime.Equal(at))

	var buf bytes.Buffer
	PrintStoreStatus(&buf, status)
	assert.Contains(t, buf.String(), "Reports: 1")
	assert.Contains(t, buf.String(), "repohealth_snapshots: 1 rows")
}

func TestMigrate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "migrate.db")

	res, err := Migrate(schema.SQLiteBackend, path, -1)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, uint(1), res.To)

	res, err = Migrate(schema.SQLiteBackend, path, -1)
	require.NoError(t, err)
	assert.False(t, res.Changed)

	res, err = Migrate(schema.SQLiteBackend, path, 0)
	require.NoError(t, err)
	assert.True(t, res.Changed)

	_, err = Migrate(schema.NoneBackend, "", -1)
	assert.Error(t, err)
}

func TestRebind(t *testing.T) {
	q := "UPDATE t SET a = ? WHERE b = ? AND c = ?"
	assert.Equal(t, q, rebind(q, schema.SQLiteBackend))
	assert.Equal(t, q, rebind(q, schema.MySQLBackend))
	assert.Equal(t, "UPDATE t SET a = $1 WHERE b = $2 AND c = $3", rebind(q, schema.PostgreSQLBackend))
}

func TestValidateTableName(t *testing.T) {
	assert.NoError(t, validateTableName("repohealth_reports"))
	assert.Error(t, validateTableName(""))
	assert.Error(t, validateTableName("reports; DROP TABLE x"))
	assert.Equal(t, "`t`", quoteTableName("t", schema.MySQLBackend))
	assert.Equal(t, `"t"`, quoteTableName("t", schema.PostgreSQLBackend))
}

func TestCacheStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	cs, err := NewCacheStore(metadataTable, schema.SQLiteBackend, path)
	require.NoError(t, err)
	defer func() { _ = cs.Close() }()

	_, _, _, err = cs.Get("github:cncf/artifacthub")
	assert.ErrorIs(t, err, sql.ErrNoRows)

	require.NoError(t, cs.Set("github:cncf/artifacthub", []byte(`{"topics":["helm"]}`), 1, 1700000000))
	require.NoError(t, cs.Set("github:cncf/artifacthub", []byte(`{"topics":[]}`), 2, 1700000100))

	value, version, ts, err := cs.Get("github:cncf/artifacthub")
	require.NoError(t, err)
	assert.JSONEq(t, `{"topics":[]}`, string(value))
	assert.Equal(t, 2, version)
	assert.Equal(t, int64(1700000100), ts)

	status, err := cs.GetStatus()
	require.NoError(t, err)
	assert.Equal(t, 1, status.TotalEntries)
	assert.Positive(t, status.TableSizeBytes)

	_, err = NewCacheStore("bad name", schema.SQLiteBackend, path)
	assert.Error(t, err)
}

func TestOpenAndClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "all.db")
	m, err := Open(schema.SQLiteBackend, path)
	require.NoError(t, err)
	assert.NotNil(t, m.GetReportStore())
	assert.NotNil(t, m.GetCacheStore())
	require.NoError(t, m.Close())

	require.NoError(t, ClearStore(context.Background(), schema.SQLiteBackend, path, ""))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, ClearStore(context.Background(), schema.SQLiteBackend, path, ""), "missing file is fine")
	assert.Error(t, ClearStore(context.Background(), schema.SQLiteBackend, "", ""))
	assert.NoError(t, ClearStore(context.Background(), schema.NoneBackend, "", ""))
	assert.Error(t, ClearStore(context.Background(), "oracle", "", ""))
}

func TestExport(t *testing.T) {
	rs, _ := newTestStore(t)
	ctx := context.Background()
	at := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	_, err := Export(ctx, rs, filepath.Join(t.TempDir(), "out"), &bytes.Buffer{})
	assert.ErrorContains(t, err, "no store data")

	require.NoError(t, rs.SaveReport(ctx, record("x/y", "c1", 30, at), true))
	require.NoError(t, rs.BeginRun(ctx, "run-1", at, nil))

	prefix := filepath.Join(t.TempDir(), "out")
	var buf bytes.Buffer
	res, err := Export(ctx, rs, prefix, &buf)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Runs)
	assert.Equal(t, 1, res.Snapshots)
	assert.Equal(t, 1, res.Outcomes)
	for _, f := range []string{res.RunsFile, res.SnapshotsFile, res.OutcomesFile} {
		_, err := os.Stat(f)
		assert.NoError(t, err, f)
	}
	assert.Contains(t, buf.String(), "Exported 1 snapshots")

	_, err = Export(ctx, rs, "", &buf)
	assert.Error(t, err)
}

func TestExport_StoreErrors(t *testing.T) {
	ctx := context.Background()
	ms := new(MockReportStore)
	ms.On("GetStatus", mock.Anything).Return(schema.StoreStatus{Backend: "mysql", TotalRuns: 1}, nil)
	ms.On("GetAllRuns", mock.Anything).Return(nil, errors.New("connection reset"))

	_, err := Export(ctx, ms, filepath.Join(t.TempDir(), "out"), &bytes.Buffer{})
	assert.ErrorContains(t, err, "connection reset")
	ms.AssertExpectations(t)
}

func TestPrintCacheStatus(t *testing.T) {
	var buf bytes.Buffer
	PrintCacheStatus(&buf, schema.CacheStatus{Backend: "none"})
	assert.Equal(t, "Cache Backend: none\nConnected: false\n", buf.String())

	buf.Reset()
	PrintFetchCacheStatus(&buf, schema.FetchCacheStatus{Dir: "/cache", Slots: 2, TotalBytes: 2000, MaxBytes: 1000000})
	assert.Contains(t, buf.String(), "Size: 2.0 kB of 1.0 MB")
}
