// Package contract provides interfaces and shared utilities for internal architecture.
package contract

import (
	"context"
	"io/fs"
	"sync"
	"time"

	"github.com/huangsam/repohealth/schema"
)

// GitClient defines the git operations needed to maintain a working copy and read its history.
// This allows the fetch and lint logic to be tested without needing a real git executable.
type GitClient interface {
	// --- Generic / Low-Level ---

	// Run executes a git command in repoPath and returns its stdout.
	// Its use should be minimized in favor of the explicit methods below.
	Run(ctx context.Context, repoPath string, args ...string) ([]byte, error)

	// --- Working Copy ---

	// Clone creates a full clone of url at dest.
	Clone(ctx context.Context, url, dest string) error

	// Fetch updates the remote-tracking refs of an existing clone.
	Fetch(ctx context.Context, repoPath string) error

	// Checkout detaches the working tree at ref and removes untracked files.
	Checkout(ctx context.Context, repoPath, ref string) error

	// --- Reference Resolution ---

	// GetRepoHash returns the current HEAD commit hash of the repository.
	GetRepoHash(ctx context.Context, repoPath string) (string, error)

	// GetRepoRoot returns the absolute path to the root of the Git repository
	// containing the given context path.
	GetRepoRoot(ctx context.Context, contextPath string) (string, error)

	// --- History ---

	// GetRecentCommits returns up to limit commits reachable from HEAD, newest first.
	GetRecentCommits(ctx context.Context, repoPath string, limit int) ([]schema.CommitInfo, error)
}

// History gives checks read access to the commit history of a working copy.
type History interface {
	RecentCommits(ctx context.Context, limit int) ([]schema.CommitInfo, error)
}

// Checkout is a fetched working tree. The repository lock stays held until Release is called.
type Checkout struct {
	RepositoryID string
	Dir          string
	Commit       string
	Tree         fs.FS
	History      History

	releaseOnce sync.Once
	release     func()
}

// NewCheckout wraps a working tree with the function that releases its lock.
func NewCheckout(repoID, dir, commit string, tree fs.FS, history History, release func()) *Checkout {
	return &Checkout{
		RepositoryID: repoID,
		Dir:          dir,
		Commit:       commit,
		Tree:         tree,
		History:      history,
		release:      release,
	}
}

// Release gives up the repository lock. It is safe to call more than once.
func (c *Checkout) Release() {
	c.releaseOnce.Do(func() {
		if c.release != nil {
			c.release()
		}
	})
}

// Fetcher materializes repositories into the local cache.
type Fetcher interface {
	// Fetch clones or updates the repository and checks out pin, or the remote default head when pin is empty.
	Fetch(ctx context.Context, repo schema.Repository, pin string) (*Checkout, error)

	// Evict reclaims cache slots that are expired or exceed the size budget.
	Evict(ctx context.Context) (int, error)

	// Status reports the current cache usage.
	Status() schema.FetchCacheStatus
}

// Locker provides mutual exclusion per key, possibly across processes.
type Locker interface {
	// Lock blocks until the key is held or ctx is done. The returned function releases it.
	Lock(ctx context.Context, key string) (func(), error)

	// TryLock acquires the key only if it is free.
	TryLock(ctx context.Context, key string) (func(), bool, error)

	Close() error
}

// Registrar supplies the repository population.
type Registrar interface {
	// Repositories returns every registered repository in a stable order.
	Repositories(ctx context.Context) ([]schema.Repository, error)

	// Repository returns a single repository by id.
	Repository(ctx context.Context, id string) (schema.Repository, error)
}

// MetadataProvider returns hosting platform metadata.
// A nil result with a nil error means the platform offers nothing for the repository.
type MetadataProvider interface {
	Metadata(ctx context.Context, repo schema.Repository) (*schema.RemoteMetadata, error)
}

// StoreManager defines the interface for managing the persistence stores.
// This allows the persistence layer to be mocked for testing.
type StoreManager interface {
	GetReportStore() ReportStore
	GetCacheStore() CacheStore
}

// CacheStore defines the interface for key/value cache storage.
type CacheStore interface {
	Get(key string) ([]byte, int, int64, error)
	Set(key string, value []byte, version int, timestamp int64) error
	GetStatus() (schema.CacheStatus, error)
	Close() error
}

// ReportStore defines the durable storage for current reports, snapshots and sweep runs.
type ReportStore interface {
	// SaveReport replaces the current report of a repository. When archive is true a
	// snapshot is appended in the same transaction.
	SaveReport(ctx context.Context, record schema.ReportRecord, archive bool) error

	// TouchLastChecked updates only the last-checked time of the current report.
	TouchLastChecked(ctx context.Context, repoID string, at time.Time) error

	// GetLastScore returns the last stored score, or nil when nothing is stored yet.
	GetLastScore(ctx context.Context, repoID string) (*schema.StoredScore, error)

	// GetReport returns the current report, or nil when nothing is stored yet.
	GetReport(ctx context.Context, repoID string) (*schema.ReportRecord, error)

	// ListReports returns the current report of every repository, ordered by id.
	ListReports(ctx context.Context) ([]schema.ReportRecord, error)

	// ListSnapshots returns snapshots newest first. An empty repoID lists all repositories.
	ListSnapshots(ctx context.Context, repoID string, limit int) ([]schema.Snapshot, error)

	// BeginRun records the start of a sweep.
	BeginRun(ctx context.Context, runID string, startTime time.Time, configParams map[string]any) error

	// EndRun records the completion of a sweep.
	EndRun(ctx context.Context, runID string, endTime time.Time, summary schema.SweepSummary) error

	// GetAllRuns returns every recorded sweep run.
	GetAllRuns(ctx context.Context) ([]schema.SweepRunRecord, error)

	// GetStatus returns status information about the store.
	GetStatus(ctx context.Context) (schema.StoreStatus, error)

	Close() error
}
