package store

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/huangsam/repohealth/schema"
)

//go:embed migrations
var migrationsFS embed.FS

// MigrationResult describes what a migration did.
type MigrationResult struct {
	From    uint
	To      uint
	Changed bool
}

// Migrate runs the embedded schema migrations for a store backend.
//   - If targetVersion < 0, it migrates to the latest version.
//   - If targetVersion == 0, it rolls back all migrations.
//   - If targetVersion > 0, it migrates to the specified version.
func Migrate(backend schema.DatabaseBackend, connStr string, targetVersion int) (MigrationResult, error) {
	var res MigrationResult
	if backend == schema.NoneBackend {
		return res, fmt.Errorf("migrations are not supported for the none backend")
	}

	if backend == schema.MySQLBackend {
		// Migration files hold several statements each.
		cfg, err := gomysql.ParseDSN(connStr)
		if err != nil {
			return res, fmt.Errorf("invalid MySQL connection string: %w", err)
		}
		cfg.MultiStatements = true
		connStr = cfg.FormatDSN()
	}

	db, err := openDB(backend, connStr)
	if err != nil {
		return res, err
	}
	// The migrate instance owns db once created and closes it.
	m, err := newMigrate(db, backend)
	if err != nil {
		_ = db.Close()
		return res, err
	}
	defer func() { _, _ = m.Close() }()

	current, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return res, fmt.Errorf("failed to get current migration version: %w", err)
	}
	if dirty {
		return res, fmt.Errorf("database is in a dirty state at version %d. Please fix manually or force version", current)
	}
	res.From = current

	switch {
	case targetVersion < 0:
		err = m.Up()
	case targetVersion == 0:
		err = m.Down()
	default:
		err = m.Migrate(uint(targetVersion))
	}
	if errors.Is(err, migrate.ErrNoChange) {
		res.To = current
		return res, nil
	}
	if err != nil {
		return res, fmt.Errorf("failed to migrate %s store: %w", backend, err)
	}

	res.Changed = true
	if v, _, verr := m.Version(); verr == nil {
		res.To = v
	}
	return res, nil
}

func newMigrate(db *sql.DB, backend schema.DatabaseBackend) (*migrate.Migrate, error) {
	var (
		driver database.Driver
		dir    string
		err    error
	)
	switch backend {
	case schema.SQLiteBackend:
		driver, err = sqlite.WithInstance(db, &sqlite.Config{})
		dir = "migrations/sqlite"
	case schema.MySQLBackend:
		driver, err = mysql.WithInstance(db, &mysql.Config{})
		dir = "migrations/mysql"
	case schema.PostgreSQLBackend:
		driver, err = postgres.WithInstance(db, &postgres.Config{})
		dir = "migrations/postgres"
	default:
		return nil, fmt.Errorf("unsupported backend: %s", backend)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s migrate driver: %w", backend, err)
	}

	sub, err := fs.Sub(migrationsFS, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to access migrations directory: %w", err)
	}
	source, err := iofs.New(sub, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to create migration source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "repohealth", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return m, nil
}
