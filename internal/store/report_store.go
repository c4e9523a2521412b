package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	"github.com/huangsam/repohealth/internal/contract"
	"github.com/huangsam/repohealth/schema"
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	_ "modernc.org/sqlite"             // SQLite driver
)

// Table names of the report store.
const (
	reportsTable   = "repohealth_reports"
	snapshotsTable = "repohealth_snapshots"
	runsTable      = "repohealth_runs"
)

// ErrNotFound is returned when a sweep run does not exist.
var ErrNotFound = errors.New("not found")

// ReportStoreImpl persists reports, snapshots and sweep runs in a SQL database.
type ReportStoreImpl struct {
	db      *sql.DB
	backend schema.DatabaseBackend
}

var _ contract.ReportStore = &ReportStoreImpl{} // Compile-time check

// NewReportStore migrates the database to the latest schema and opens it.
// The none backend returns a store that keeps nothing.
func NewReportStore(backend schema.DatabaseBackend, connStr string) (*ReportStoreImpl, error) {
	if backend == schema.NoneBackend {
		return &ReportStoreImpl{backend: backend}, nil
	}
	if _, err := Migrate(backend, connStr, -1); err != nil {
		return nil, err
	}
	db, err := openDB(backend, connStr)
	if err != nil {
		return nil, err
	}
	return &ReportStoreImpl{db: db, backend: backend}, nil
}

func (rs *ReportStoreImpl) disabled() bool {
	return rs.backend == schema.NoneBackend || rs.db == nil
}

func (rs *ReportStoreImpl) q(query string) string {
	return rebind(query, rs.backend)
}

// SaveReport upserts the current report and, when archive is set, appends a
// snapshot. Both writes share one transaction.
func (rs *ReportStoreImpl) SaveReport(ctx context.Context, rec schema.ReportRecord, archive bool) (err error) {
	if rs.disabled() {
		return nil
	}
	reportJSON, err := json.Marshal(rec.Report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	scoreJSON, err := json.Marshal(rec.Score)
	if err != nil {
		return fmt.Errorf("failed to marshal score: %w", err)
	}

	tx, err := rs.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	args := []any{
		rec.RepositoryID, rec.Report.Commit, rec.Report.ChecksetVersion,
		rec.Score.Global, rec.Score.Rating, string(reportJSON), string(scoreJSON),
		toMillis(rec.UpdatedAt), toMillis(rec.LastCheckedAt),
	}
	if _, err = tx.ExecContext(ctx, rs.upsertReportQuery(), args...); err != nil {
		return fmt.Errorf("failed to upsert report for %s: %w", rec.RepositoryID, err)
	}

	if archive {
		query := rs.q(fmt.Sprintf(`INSERT INTO %s (repository_id, commit_hash, checkset_version, global_score, rating, report_json, score_json, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, quoteTableName(snapshotsTable, rs.backend)))
		if _, err = tx.ExecContext(ctx, query, args[:8]...); err != nil {
			return fmt.Errorf("failed to append snapshot for %s: %w", rec.RepositoryID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit report for %s: %w", rec.RepositoryID, err)
	}
	return nil
}

// upsertReportQuery returns the UPSERT query for the backend.
func (rs *ReportStoreImpl) upsertReportQuery() string {
	table := quoteTableName(reportsTable, rs.backend)
	columns := "repository_id, commit_hash, checkset_version, global_score, rating, report_json, score_json, updated_at, last_checked_at"
	switch rs.backend {
	case schema.MySQLBackend:
		return fmt.Sprintf(`INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) AS new
			ON DUPLICATE KEY UPDATE commit_hash = new.commit_hash, checkset_version = new.checkset_version,
			global_score = new.global_score, rating = new.rating, report_json = new.report_json,
			score_json = new.score_json, updated_at = new.updated_at, last_checked_at = new.last_checked_at`, table, columns)
	default: // SQLite and PostgreSQL
		return rs.q(fmt.Sprintf(`INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (repository_id) DO UPDATE SET commit_hash = EXCLUDED.commit_hash,
			checkset_version = EXCLUDED.checkset_version, global_score = EXCLUDED.global_score,
			rating = EXCLUDED.rating, report_json = EXCLUDED.report_json, score_json = EXCLUDED.score_json,
			updated_at = EXCLUDED.updated_at, last_checked_at = EXCLUDED.last_checked_at`, table, columns))
	}
}

// TouchLastChecked updates only the last-checked time of the current report.
func (rs *ReportStoreImpl) TouchLastChecked(ctx context.Context, repoID string, at time.Time) error {
	if rs.disabled() {
		return nil
	}
	query := rs.q(fmt.Sprintf(`UPDATE %s SET last_checked_at = ? WHERE repository_id = ?`, quoteTableName(reportsTable, rs.backend)))
	if _, err := rs.db.ExecContext(ctx, query, toMillis(at), repoID); err != nil {
		return fmt.Errorf("failed to touch %s: %w", repoID, err)
	}
	return nil
}

// GetLastScore returns the stored score, or nil when the repository has none.
func (rs *ReportStoreImpl) GetLastScore(ctx context.Context, repoID string) (*schema.StoredScore, error) {
	if rs.disabled() {
		return nil, nil
	}
	query := rs.q(fmt.Sprintf(`SELECT score_json, checkset_version, commit_hash, updated_at, last_checked_at FROM %s WHERE repository_id = ?`,
		quoteTableName(reportsTable, rs.backend)))

	var (
		scoreJSON          string
		updated, lastCheck int64
		stored             schema.StoredScore
	)
	err := rs.db.QueryRowContext(ctx, query, repoID).Scan(&scoreJSON, &stored.ChecksetVersion, &stored.Commit, &updated, &lastCheck)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last score for %s: %w", repoID, err)
	}
	if err := json.Unmarshal([]byte(scoreJSON), &stored.Score); err != nil {
		return nil, fmt.Errorf("failed to decode score for %s: %w", repoID, err)
	}
	stored.UpdatedAt = fromMillis(updated)
	stored.LastCheckedAt = fromMillis(lastCheck)
	return &stored, nil
}

// GetReport returns the current report, or nil when the repository has none.
func (rs *ReportStoreImpl) GetReport(ctx context.Context, repoID string) (*schema.ReportRecord, error) {
	if rs.disabled() {
		return nil, nil
	}
	query := rs.q(fmt.Sprintf(`SELECT repository_id, report_json, score_json, updated_at, last_checked_at FROM %s WHERE repository_id = ?`,
		quoteTableName(reportsTable, rs.backend)))
	rec, err := scanReport(rs.db.QueryRowContext(ctx, query, repoID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report for %s: %w", repoID, err)
	}
	return rec, nil
}

// ListReports returns every current report ordered by repository id.
func (rs *ReportStoreImpl) ListReports(ctx context.Context) ([]schema.ReportRecord, error) {
	if rs.disabled() {
		return nil, nil
	}
	query := fmt.Sprintf(`SELECT repository_id, report_json, score_json, updated_at, last_checked_at FROM %s ORDER BY repository_id`,
		quoteTableName(reportsTable, rs.backend))
	rows, err := rs.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []schema.ReportRecord
	for rows.Next() {
		rec, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		results = append(results, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reports: %w", err)
	}
	return results, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReport(row scanner) (*schema.ReportRecord, error) {
	var (
		rec                   schema.ReportRecord
		reportJSON, scoreJSON string
		updated, lastCheck    int64
	)
	if err := row.Scan(&rec.RepositoryID, &reportJSON, &scoreJSON, &updated, &lastCheck); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(reportJSON), &rec.Report); err != nil {
		return nil, fmt.Errorf("failed to decode report: %w", err)
	}
	if err := json.Unmarshal([]byte(scoreJSON), &rec.Score); err != nil {
		return nil, fmt.Errorf("failed to decode score: %w", err)
	}
	rec.UpdatedAt = fromMillis(updated)
	rec.LastCheckedAt = fromMillis(lastCheck)
	return &rec, nil
}

// ListSnapshots returns snapshots newest first. An empty repoID lists every
// repository; a limit of zero or less returns all of them.
func (rs *ReportStoreImpl) ListSnapshots(ctx context.Context, repoID string, limit int) ([]schema.Snapshot, error) {
	if rs.disabled() {
		return nil, nil
	}
	query := fmt.Sprintf(`SELECT repository_id, report_json, score_json, created_at FROM %s`, quoteTableName(snapshotsTable, rs.backend))
	var args []any
	if repoID != "" {
		query += ` WHERE repository_id = ?`
		args = append(args, repoID)
	}
	query += ` ORDER BY created_at DESC, snapshot_id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := rs.db.QueryContext(ctx, rs.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []schema.Snapshot
	for rows.Next() {
		var (
			snap                  schema.Snapshot
			reportJSON, scoreJSON string
			created               int64
		)
		if err := rows.Scan(&snap.RepositoryID, &reportJSON, &scoreJSON, &created); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		if err := json.Unmarshal([]byte(reportJSON), &snap.Report); err != nil {
			return nil, fmt.Errorf("failed to decode snapshot report: %w", err)
		}
		if err := json.Unmarshal([]byte(scoreJSON), &snap.Score); err != nil {
			return nil, fmt.Errorf("failed to decode snapshot score: %w", err)
		}
		snap.CreatedAt = fromMillis(created)
		results = append(results, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}
	return results, nil
}

// BeginRun records the start of a sweep.
func (rs *ReportStoreImpl) BeginRun(ctx context.Context, runID string, startTime time.Time, configParams map[string]any) error {
	if rs.disabled() {
		return nil
	}
	configJSON, err := json.Marshal(configParams)
	if err != nil {
		return fmt.Errorf("failed to marshal config params: %w", err)
	}
	query := rs.q(fmt.Sprintf(`INSERT INTO %s (run_id, start_time, config_params) VALUES (?, ?, ?)`, quoteTableName(runsTable, rs.backend)))
	if _, err := rs.db.ExecContext(ctx, query, runID, toMillis(startTime), string(configJSON)); err != nil {
		return fmt.Errorf("failed to insert sweep run: %w", err)
	}
	return nil
}

// EndRun records the completion of a sweep with its outcome counts.
func (rs *ReportStoreImpl) EndRun(ctx context.Context, runID string, endTime time.Time, summary schema.SweepSummary) error {
	if rs.disabled() {
		return nil
	}
	table := quoteTableName(runsTable, rs.backend)

	var start int64
	err := rs.db.QueryRowContext(ctx, rs.q(fmt.Sprintf(`SELECT start_time FROM %s WHERE run_id = ?`, table)), runID).Scan(&start)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("sweep run %s: %w", runID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to get start_time for run %s: %w", runID, err)
	}

	query := rs.q(fmt.Sprintf(`UPDATE %s SET end_time = ?, run_duration_ms = ?, total = ?, done = ?, archived = ?, failed = ?, pending = ? WHERE run_id = ?`, table))
	durationMs := toMillis(endTime) - start
	if _, err := rs.db.ExecContext(ctx, query, toMillis(endTime), durationMs,
		summary.Total, summary.Done, summary.Archived, summary.Failed, summary.Pending, runID); err != nil {
		return fmt.Errorf("failed to update sweep run: %w", err)
	}
	return nil
}

// GetAllRuns returns every recorded sweep, oldest first.
func (rs *ReportStoreImpl) GetAllRuns(ctx context.Context) ([]schema.SweepRunRecord, error) {
	if rs.disabled() {
		return nil, nil
	}
	query := fmt.Sprintf(`SELECT run_id, start_time, end_time, run_duration_ms, total, done, archived, failed, pending, config_params FROM %s ORDER BY start_time, run_id`,
		quoteTableName(runsTable, rs.backend))
	rows, err := rs.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query sweep runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []schema.SweepRunRecord
	for rows.Next() {
		var (
			rec   schema.SweepRunRecord
			start int64
			end   sql.NullInt64
		)
		if err := rows.Scan(&rec.RunID, &start, &end, &rec.DurationMs, &rec.Total, &rec.Done, &rec.Archived, &rec.Failed, &rec.Pending, &rec.ConfigParams); err != nil {
			return nil, fmt.Errorf("failed to scan sweep run: %w", err)
		}
		rec.StartTime = fromMillis(start)
		if end.Valid {
			t := fromMillis(end.Int64)
			rec.EndTime = &t
		}
		results = append(results, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sweep runs: %w", err)
	}
	return results, nil
}

// GetStatus returns status information about the report store.
func (rs *ReportStoreImpl) GetStatus(ctx context.Context) (schema.StoreStatus, error) {
	status := schema.StoreStatus{
		Backend:    string(rs.backend),
		Connected:  rs.db != nil,
		TableSizes: make(map[string]int64),
	}
	if rs.disabled() {
		return status, nil
	}

	for _, table := range []string{reportsTable, snapshotsTable, runsTable} {
		var count int64
		query := fmt.Sprintf("SELECT COUNT(*) FROM %s", quoteTableName(table, rs.backend))
		if err := rs.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
			return status, fmt.Errorf("failed to get count for table %s: %w", table, err)
		}
		status.TableSizes[table] = count
	}
	status.TotalReports = int(status.TableSizes[reportsTable])
	status.TotalSnapshots = int(status.TableSizes[snapshotsTable])
	status.TotalRuns = int(status.TableSizes[runsTable])

	if status.TotalRuns > 0 {
		var start int64
		query := fmt.Sprintf("SELECT run_id, start_time FROM %s ORDER BY start_time DESC, run_id DESC LIMIT 1", quoteTableName(runsTable, rs.backend))
		if err := rs.db.QueryRowContext(ctx, query).Scan(&status.LastRunID, &start); err != nil {
			return status, fmt.Errorf("failed to get last run info: %w", err)
		}
		status.LastRunTime = fromMillis(start)
	}
	if status.TotalReports > 0 {
		var last int64
		query := fmt.Sprintf("SELECT MAX(last_checked_at) FROM %s", quoteTableName(reportsTable, rs.backend))
		if err := rs.db.QueryRowContext(ctx, query).Scan(&last); err != nil {
			return status, fmt.Errorf("failed to get last checked time: %w", err)
		}
		status.LastCheckedTime = fromMillis(last)
	}
	return status, nil
}

// Close closes the underlying connection.
func (rs *ReportStoreImpl) Close() error {
	if rs.db != nil {
		return rs.db.Close()
	}
	return nil
}
