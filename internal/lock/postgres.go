package lock

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/huangsam/repohealth/internal/contract"
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
)

// Postgres holds session-level advisory locks. Each held key pins its own
// pooled connection, because an advisory lock belongs to the session that
// took it and must be released on that same session.
type Postgres struct {
	db        *sql.DB
	namespace string
	closeOnce sync.Once
}

var _ contract.Locker = &Postgres{} // Compile-time check

// NewPostgres connects to PostgreSQL for advisory locking.
func NewPostgres(ctx context.Context, connStr string) (*Postgres, error) {
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open PostgreSQL for locks: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to PostgreSQL for locks: %w", err)
	}
	return &Postgres{db: db, namespace: Namespace}, nil
}

// Lock waits on pg_advisory_lock. The wait is abandoned when ctx is done,
// which also drops the connection so the server gives up the request.
func (p *Postgres) Lock(ctx context.Context, key string) (func(), error) {
	conn, err := p.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquiring lock connection: %w", err)
	}
	if _, err := conn.ExecContext(ctx, "SELECT pg_advisory_lock($1)", advisoryKey64(p.namespace, key)); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("pg_advisory_lock %s: %w", key, err)
	}
	return p.unlocker(conn, key), nil
}

// TryLock uses pg_try_advisory_lock and never waits.
func (p *Postgres) TryLock(ctx context.Context, key string) (func(), bool, error) {
	conn, err := p.db.Conn(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquiring lock connection: %w", err)
	}
	var ok bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", advisoryKey64(p.namespace, key)).Scan(&ok); err != nil {
		_ = conn.Close()
		return nil, false, fmt.Errorf("pg_try_advisory_lock %s: %w", key, err)
	}
	if !ok {
		_ = conn.Close()
		return nil, false, nil
	}
	return p.unlocker(conn, key), true, nil
}

func (p *Postgres) unlocker(conn *sql.Conn, key string) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			// Background context: the caller's context may already be done.
			_, _ = conn.ExecContext(context.Background(), "SELECT pg_advisory_unlock($1)", advisoryKey64(p.namespace, key))
			_ = conn.Close()
		})
	}
}

// Close closes the connection pool.
func (p *Postgres) Close() error {
	var err error
	p.closeOnce.Do(func() { err = p.db.Close() })
	return err
}
