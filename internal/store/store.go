// Package store persists reports, snapshots, sweep runs and cached metadata
// in SQLite, MySQL or PostgreSQL.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync"

	"github.com/huangsam/repohealth/internal/contract"
	"github.com/huangsam/repohealth/schema"
)

// StoreManagerImpl holds the process-wide stores.
type StoreManagerImpl struct {
	sync.RWMutex
	report contract.ReportStore
	cache  contract.CacheStore
}

var _ contract.StoreManager = &StoreManagerImpl{} // Compile-time check

// Global Manager instance for main logic.
var (
	Manager   = &StoreManagerImpl{}
	initOnce  sync.Once
	closeOnce sync.Once
)

// GetReportStore returns the report store, or nil before InitStores.
func (m *StoreManagerImpl) GetReportStore() contract.ReportStore {
	m.RLock()
	defer m.RUnlock()
	return m.report
}

// GetCacheStore returns the metadata cache store, or nil before InitStores.
func (m *StoreManagerImpl) GetCacheStore() contract.CacheStore {
	m.RLock()
	defer m.RUnlock()
	return m.cache
}

// Open creates both stores on the same database.
func Open(backend schema.DatabaseBackend, connStr string) (*StoreManagerImpl, error) {
	reports, err := NewReportStore(backend, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize report store: %w", err)
	}
	cache, err := NewCacheStore(metadataTable, backend, connStr)
	if err != nil {
		_ = reports.Close()
		return nil, fmt.Errorf("failed to initialize metadata cache: %w", err)
	}
	return &StoreManagerImpl{report: reports, cache: cache}, nil
}

// Close closes both stores.
func (m *StoreManagerImpl) Close() error {
	m.Lock()
	defer m.Unlock()
	var firstErr error
	if m.report != nil {
		firstErr = m.report.Close()
	}
	if m.cache != nil {
		if err := m.cache.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// InitStores initializes the global Manager. Only the first call has an effect.
func InitStores(backend schema.DatabaseBackend, connStr string) error {
	var initErr error
	initOnce.Do(func() {
		m, err := Open(backend, connStr)
		if err != nil {
			initErr = err
			return
		}
		Manager.Lock()
		Manager.report = m.report
		Manager.cache = m.cache
		Manager.Unlock()
	})
	return initErr
}

// CloseStores should be called on application shutdown.
func CloseStores() { // called in main defer
	closeOnce.Do(func() {
		_ = Manager.Close()
	})
}

// ClearStore removes all persisted data for the specified backend.
// For SQLite, it deletes the database file.
// For MySQL and PostgreSQL, it drops every table including the migration bookkeeping.
// For NoneBackend, it does nothing.
func ClearStore(ctx context.Context, backend schema.DatabaseBackend, dbFilePath, connStr string) error {
	switch backend {
	case schema.SQLiteBackend:
		if dbFilePath == "" {
			return fmt.Errorf("dbFilePath cannot be empty for SQLite backend")
		}
		if err := os.Remove(dbFilePath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove SQLite database file %s: %w", dbFilePath, err)
		}
		return nil

	case schema.MySQLBackend, schema.PostgreSQLBackend:
		tables := []string{snapshotsTable, reportsTable, runsTable, metadataTable, "schema_migrations"}
		return clearSQLTables(ctx, backend, connStr, tables...)

	case schema.NoneBackend:
		return nil

	default:
		return fmt.Errorf("unsupported store backend for clearing: %s", backend)
	}
}

// ClearCache drops only the metadata cache table.
func ClearCache(ctx context.Context, backend schema.DatabaseBackend, connStr string) error {
	if backend == schema.NoneBackend {
		return nil
	}
	return clearSQLTables(ctx, backend, connStr, metadataTable)
}

// clearSQLTables connects to the SQL database and drops the tables if they exist.
func clearSQLTables(ctx context.Context, backend schema.DatabaseBackend, connStr string, tables ...string) error {
	db, err := openDB(backend, connStr)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	for _, table := range tables {
		if err := dropTable(ctx, db, backend, table); err != nil {
			return err
		}
	}
	return nil
}

func dropTable(ctx context.Context, db *sql.DB, backend schema.DatabaseBackend, table string) error {
	if err := validateTableName(table); err != nil {
		return err
	}
	query := fmt.Sprintf("DROP TABLE IF EXISTS %s", quoteTableName(table, backend))
	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to drop table %s: %w", table, err)
	}
	return nil
}
