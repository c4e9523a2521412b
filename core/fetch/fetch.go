// Package fetch keeps a local cache of repository clones and checks them out
// for linting.
package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/huangsam/repohealth/internal/contract"
	"github.com/huangsam/repohealth/internal/logger"
	"github.com/huangsam/repohealth/schema"
)

// DefaultRef is checked out when no commit is pinned.
const DefaultRef = "origin/HEAD"

// slotMarker lives inside the .git directory so checkouts never clean it.
const slotMarker = "repohealth-repository"

// Options configures the fetch cache.
type Options struct {
	Dir      string        // Root directory holding one slot per repository
	TTL      time.Duration // Slots unused for longer are evicted
	MaxBytes int64         // Total size budget across slots
	Timeout  time.Duration // Deadline for each git invocation
}

// slot is the cache index entry of one repository clone.
type slot struct {
	name     string
	repoID   string
	lastUsed time.Time
	size     int64
}

// Fetcher maintains cached clones and hands out locked checkouts.
type Fetcher struct {
	git    contract.GitClient
	locker contract.Locker
	opts   Options
	log    *logger.Logger
	now    func() time.Time

	mu    sync.Mutex
	slots map[string]*slot
}

var _ contract.Fetcher = &Fetcher{} // Compile-time check

// New creates the cache directory if needed and rebuilds the slot index from disk.
func New(git contract.GitClient, locker contract.Locker, opts Options, log *logger.Logger) (*Fetcher, error) {
	if opts.Dir == "" {
		return nil, errors.New("fetch cache directory is required")
	}
	if log == nil {
		log = logger.Nop()
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating fetch cache %s: %w", opts.Dir, err)
	}
	f := &Fetcher{
		git:    git,
		locker: locker,
		opts:   opts,
		log:    log,
		now:    time.Now,
		slots:  make(map[string]*slot),
	}
	if err := f.rebuildIndex(); err != nil {
		return nil, err
	}
	return f, nil
}

// SlotName returns the cache directory name for a repository id.
func SlotName(repoID string) string {
	sum := sha256.Sum256([]byte(repoID))
	return hex.EncodeToString(sum[:])[:16]
}

// Fetch locks the repository, brings its slot up to date and checks out pin,
// or the remote default branch head when pin is empty. The lock is released
// by Checkout.Release, so it also covers linting.
func (f *Fetcher) Fetch(ctx context.Context, repo schema.Repository, pin string) (*contract.Checkout, error) {
	unlock, err := f.locker.Lock(ctx, repo.ID)
	if err != nil {
		if cerr := ctxError(ctx, repo.ID, err); cerr != nil {
			return nil, cerr
		}
		return nil, &FetchError{RepositoryID: repo.ID, Kind: KindNetwork, Err: fmt.Errorf("acquiring lock: %w", err)}
	}

	co, err := f.fetchLocked(ctx, repo, pin, unlock)
	if err != nil {
		unlock()
		return nil, err
	}
	return co, nil
}

func (f *Fetcher) fetchLocked(ctx context.Context, repo schema.Repository, pin string, unlock func()) (*contract.Checkout, error) {
	name := SlotName(repo.ID)
	dir := filepath.Join(f.opts.Dir, name)
	existed := isClone(dir)

	fail := func(err error) error {
		if !existed {
			f.discard(name, dir)
		}
		if cerr := ctxError(ctx, repo.ID, err); cerr != nil {
			return cerr
		}
		fe := NewError(repo.ID, err)
		if existed && fe.Kind == KindProtocol {
			f.discard(name, dir)
		}
		return fe
	}

	if existed {
		if err := f.withTimeout(ctx, func(c context.Context) error { return f.git.Fetch(c, dir) }); err != nil {
			return nil, fail(err)
		}
	} else {
		if err := os.RemoveAll(dir); err != nil {
			return nil, fail(err)
		}
		if err := f.withTimeout(ctx, func(c context.Context) error { return f.git.Clone(c, repo.URL, dir) }); err != nil {
			return nil, fail(err)
		}
		_ = os.WriteFile(filepath.Join(dir, ".git", slotMarker), []byte(repo.ID), 0o644)
	}

	ref := pin
	if ref == "" {
		ref = DefaultRef
	}
	if err := f.withTimeout(ctx, func(c context.Context) error { return f.git.Checkout(c, dir, ref) }); err != nil {
		return nil, fail(err)
	}

	var commit string
	if err := f.withTimeout(ctx, func(c context.Context) error {
		var err error
		commit, err = f.git.GetRepoHash(c, dir)
		return err
	}); err != nil {
		return nil, fail(err)
	}

	f.touch(name, repo.ID, dir)
	history := &contract.GitHistory{Client: f.git, Dir: dir}
	return contract.NewCheckout(repo.ID, dir, commit, os.DirFS(dir), history, unlock), nil
}

// ctxError maps a done context to the error Fetch returns. Cancellation is
// passed through as is; an expired deadline becomes a timeout FetchError so
// the attempt can be retried.
func ctxError(ctx context.Context, repoID string, err error) error {
	switch cerr := ctx.Err(); {
	case cerr == nil:
		return nil
	case errors.Is(cerr, context.Canceled):
		return cerr
	default:
		return &FetchError{RepositoryID: repoID, Kind: KindTimeout, Err: fmt.Errorf("%w: %w", cerr, err)}
	}
}

// withTimeout runs fn under the per-invocation deadline.
func (f *Fetcher) withTimeout(ctx context.Context, fn func(context.Context) error) error {
	if f.opts.Timeout <= 0 {
		return fn(ctx)
	}
	c, cancel := context.WithTimeout(ctx, f.opts.Timeout)
	defer cancel()
	return fn(c)
}

// touch records a use of the slot, both in the index and as the directory mtime.
func (f *Fetcher) touch(name, repoID, dir string) {
	now := f.now()
	_ = os.Chtimes(dir, now, now)
	size, err := dirSize(dir)
	if err != nil {
		f.log.Warn("could not size cache slot", "slot", name, "error", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.slots[name] = &slot{name: name, repoID: repoID, lastUsed: now, size: size}
}

// discard removes a slot so the next attempt clones from scratch.
func (f *Fetcher) discard(name, dir string) {
	if err := os.RemoveAll(dir); err != nil {
		f.log.Warn("could not remove cache slot", "slot", name, "error", err)
	}
	f.mu.Lock()
	delete(f.slots, name)
	f.mu.Unlock()
}

// Evict removes slots idle for longer than the TTL, then the least recently
// used slots until the cache fits the size budget. Slots whose repository is
// locked are skipped. It returns the number of slots removed.
func (f *Fetcher) Evict(ctx context.Context) (int, error) {
	f.mu.Lock()
	candidates := make([]slot, 0, len(f.slots))
	var total int64
	for _, s := range f.slots {
		candidates = append(candidates, *s)
		total += s.size
	}
	f.mu.Unlock()

	slices.SortFunc(candidates, func(a, b slot) int {
		if c := a.lastUsed.Compare(b.lastUsed); c != 0 {
			return c
		}
		return strings.Compare(a.name, b.name)
	})

	now := f.now()
	removed := 0
	for _, s := range candidates {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		expired := f.opts.TTL > 0 && now.Sub(s.lastUsed) > f.opts.TTL
		overBudget := f.opts.MaxBytes > 0 && total > f.opts.MaxBytes
		if !expired && !overBudget {
			// Candidates are oldest first, so nothing later is expired either.
			break
		}
		ok, err := f.evictSlot(ctx, s)
		if err != nil {
			return removed, err
		}
		if ok {
			removed++
			total -= s.size
		}
	}
	return removed, nil
}

func (f *Fetcher) evictSlot(ctx context.Context, s slot) (bool, error) {
	key := s.repoID
	if key == "" {
		key = s.name
	}
	unlock, ok, err := f.locker.TryLock(ctx, key)
	if err != nil {
		return false, fmt.Errorf("locking slot %s: %w", s.name, err)
	}
	if !ok {
		f.log.Debug("skipping locked cache slot", "slot", s.name, "repository", s.repoID)
		return false, nil
	}
	defer unlock()

	dir := filepath.Join(f.opts.Dir, s.name)
	if err := os.RemoveAll(dir); err != nil {
		return false, fmt.Errorf("removing slot %s: %w", s.name, err)
	}
	f.mu.Lock()
	delete(f.slots, s.name)
	f.mu.Unlock()
	f.log.Debug("evicted cache slot", "slot", s.name, "repository", s.repoID)
	return true, nil
}

// Status reports the cache usage from the index.
func (f *Fetcher) Status() schema.FetchCacheStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	st := schema.FetchCacheStatus{Dir: f.opts.Dir, Slots: len(f.slots), MaxBytes: f.opts.MaxBytes}
	for _, s := range f.slots {
		st.TotalBytes += s.size
	}
	return st
}

// rebuildIndex scans the cache directory. Slot age comes from the directory
// mtime, which Fetch refreshes on every use.
func (f *Fetcher) rebuildIndex() error {
	entries, err := os.ReadDir(f.opts.Dir)
	if err != nil {
		return fmt.Errorf("reading fetch cache %s: %w", f.opts.Dir, err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		dir := filepath.Join(f.opts.Dir, e.Name())
		size, err := dirSize(dir)
		if err != nil {
			f.log.Warn("could not size cache slot", "slot", e.Name(), "error", err)
		}
		repoID, _ := os.ReadFile(filepath.Join(dir, ".git", slotMarker))
		f.slots[e.Name()] = &slot{
			name:     e.Name(),
			repoID:   strings.TrimSpace(string(repoID)),
			lastUsed: info.ModTime(),
			size:     size,
		}
	}
	return nil
}

func isClone(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, ".git"))
	return err == nil && info.IsDir()
}

func dirSize(dir string) (int64, error) {
	var total int64
	err := filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			info, err := d.Info()
			if err != nil {
				return err
			}
			total += info.Size()
		}
		return nil
	})
	return total, err
}
