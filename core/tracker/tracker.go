// Package tracker runs the fetch, lint, score and compare pipeline over the
// repository population with a bounded worker pool.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/huangsam/repohealth/core/algo"
	"github.com/huangsam/repohealth/core/checks"
	"github.com/huangsam/repohealth/core/fetch"
	"github.com/huangsam/repohealth/core/linter"
	"github.com/huangsam/repohealth/internal/contract"
	"github.com/huangsam/repohealth/internal/logger"
	"github.com/huangsam/repohealth/schema"
)

// Tracker drives repository jobs. It is safe for concurrent use; every job
// owns its own context, deadline and retry loop.
type Tracker struct {
	registrar contract.Registrar
	fetcher   contract.Fetcher
	linter    *linter.Linter
	weights   schema.WeightTable

	store    contract.ReportStore      // nil disables comparing and persistence
	metadata contract.MetadataProvider // nil leaves remote checks not applicable

	defaults    schema.RunConfig
	backoffBase time.Duration
	backoffMax  time.Duration

	log   *logger.Logger
	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// Option customizes a Tracker.
type Option func(*Tracker)

// WithStore enables persistence of reports and snapshots.
func WithStore(store contract.ReportStore) Option {
	return func(t *Tracker) { t.store = store }
}

// WithMetadata enables hosting platform metadata for remote checks.
func WithMetadata(provider contract.MetadataProvider) Option {
	return func(t *Tracker) { t.metadata = provider }
}

// WithBackoff sets the retry backoff base and cap.
func WithBackoff(base, limit time.Duration) Option {
	return func(t *Tracker) {
		t.backoffBase = base
		t.backoffMax = limit
	}
}

// WithDefaults sets the run configuration used by RunOnce.
func WithDefaults(cfg schema.RunConfig) Option {
	return func(t *Tracker) { t.defaults = cfg }
}

// WithLogger sets the tracker logger.
func WithLogger(log *logger.Logger) Option {
	return func(t *Tracker) {
		if log != nil {
			t.log = log
		}
	}
}

// New creates a tracker.
func New(registrar contract.Registrar, fetcher contract.Fetcher, lint *linter.Linter, weights schema.WeightTable, opts ...Option) *Tracker {
	t := &Tracker{
		registrar:   registrar,
		fetcher:     fetcher,
		linter:      lint,
		weights:     weights,
		defaults:    schema.RunConfig{Concurrency: 1, RetryBudget: 2, Timeout: 5 * time.Minute, GracePeriod: 30 * time.Second},
		backoffBase: 2 * time.Second,
		backoffMax:  time.Minute,
		log:         logger.Nop(),
		now:         time.Now,
		sleep:       sleepCtx,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// RunOnce evaluates a single repository synchronously with the default run
// configuration and returns its report.
func (t *Tracker) RunOnce(ctx context.Context, repositoryID string) (*schema.Report, error) {
	repo, err := t.registrar.Repository(ctx, repositoryID)
	if err != nil {
		return nil, err
	}
	res := t.process(ctx, ctx, repo, t.defaults)
	switch res.outcome.State {
	case schema.JobDone:
		return res.report, nil
	case schema.JobPending:
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%s: %w", repositoryID, errAborted)
	default:
		return nil, res.err
	}
}

// result is what one job hands back to the pool.
type result struct {
	outcome schema.JobOutcome
	report  *schema.Report
	err     error
}

// process runs a job to a final state. ctx governs retries: once it is done
// no new attempt starts. jobCtx governs the work itself and outlives ctx by
// the grace period during shutdown.
func (t *Tracker) process(ctx, jobCtx context.Context, repo schema.Repository, cfg schema.RunConfig) (res result) {
	j := newJob(repo, t.now())
	log := t.log.With("repository", repo.ID)

	defer func() {
		if r := recover(); r != nil {
			log.Error("job panicked", "panic", r)
			out := j.outcome(t.now())
			out.State = schema.JobFailed
			out.Error = fmt.Sprintf("panic: %v", r)
			res = result{outcome: out, err: fmt.Errorf("%s: %s", repo.ID, out.Error)}
		}
	}()

	if err := ctx.Err(); err != nil {
		log.Info("job not started, shutting down")
		return result{outcome: j.outcome(t.now()), err: err}
	}

	for {
		j.attempts++
		report, score, archived, err := t.attempt(jobCtx, j, cfg)
		if err == nil {
			j.to(schema.JobDone)
			out := j.outcome(t.now())
			out.Score = &score
			out.Archived = archived
			log.Debug("job done", "score", score.Global, "archived", archived, "attempts", j.attempts)
			return result{outcome: out, report: report}
		}

		if jobCtx.Err() != nil {
			j.requeue()
			log.Info("job aborted", "stage", j.last)
			return result{outcome: j.outcome(t.now()), err: err}
		}

		var fe *fetch.FetchError
		if errors.As(err, &fe) && fe.Retryable() && j.attempts <= cfg.RetryBudget {
			j.requeue()
			if ctx.Err() != nil {
				return result{outcome: j.outcome(t.now()), err: err}
			}
			wait := backoff(j.attempts, t.backoffBase, t.backoffMax)
			log.Warn("retrying fetch", "attempt", j.attempts, "kind", fe.Kind, "backoff", wait, "error", err)
			if serr := t.sleep(ctx, wait); serr != nil {
				return result{outcome: j.outcome(t.now()), err: err}
			}
			continue
		}

		j.to(schema.JobFailed)
		out := j.outcome(t.now())
		out.Error = err.Error()
		log.Warn("job failed", "stage", j.last, "attempts", j.attempts, "error", err)
		return result{outcome: out, err: err}
	}
}

// attempt runs the pipeline once. The checkout lock is held from fetching
// until the attempt returns.
func (t *Tracker) attempt(ctx context.Context, j *job, cfg schema.RunConfig) (*schema.Report, schema.Score, bool, error) {
	repo := j.repo

	j.to(schema.JobFetching)
	fetchCtx, cancel := withTimeout(ctx, cfg.Timeout)
	co, err := t.fetcher.Fetch(fetchCtx, repo, "")
	cancel()
	if err != nil {
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			err = fetch.NewError(repo.ID, err)
		}
		return nil, schema.Score{}, false, err
	}
	defer co.Release()

	var md *schema.RemoteMetadata
	if t.metadata != nil {
		mdCtx, cancel := withTimeout(ctx, cfg.Timeout)
		md, err = t.metadata.Metadata(mdCtx, repo)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return nil, schema.Score{}, false, ctx.Err()
			}
			return nil, schema.Score{}, false, fetch.NewError(repo.ID, err)
		}
	}

	j.to(schema.JobLinting)
	report, err := t.linter.Lint(ctx, &checks.Input{
		Repository: repo,
		Tree:       co.Tree,
		History:    co.History,
		Metadata:   md,
		Commit:     co.Commit,
		Now:        t.now(),
	})
	if err != nil {
		return nil, schema.Score{}, false, err
	}

	j.to(schema.JobScoring)
	score, inconsistencies := algo.Score(report, t.weights)
	for _, inc := range inconsistencies {
		t.log.Warn("scoring inconsistency", "repository", repo.ID, "category", inc.Category, "reason", inc.Reason)
	}

	j.to(schema.JobComparing)
	archived, err := t.compare(ctx, j, report, score, cfg.Force)
	if err != nil {
		return nil, schema.Score{}, false, err
	}
	return report, score, archived, nil
}

// compare persists the report when the score or checkset version changed,
// or when forced. A snapshot is appended in the same write unless the
// repository is report-only. Otherwise only the last-checked time moves.
func (t *Tracker) compare(ctx context.Context, j *job, report *schema.Report, score schema.Score, force bool) (bool, error) {
	repo := j.repo
	if t.store == nil {
		j.to(schema.JobStored)
		return false, nil
	}

	last, err := t.store.GetLastScore(ctx, repo.ID)
	if err != nil {
		return false, t.storeErr(ctx, repo.ID, "get last score", err)
	}

	changed := force || last == nil ||
		!last.Score.Equal(score) ||
		last.ChecksetVersion != report.ChecksetVersion
	now := t.now().UTC()

	if !changed {
		if err := t.store.TouchLastChecked(ctx, repo.ID, now); err != nil {
			return false, t.storeErr(ctx, repo.ID, "touch last checked", err)
		}
		j.to(schema.JobStored)
		return false, nil
	}

	archive := !repo.ReportOnly
	record := schema.ReportRecord{
		RepositoryID:  repo.ID,
		Report:        *report,
		Score:         score,
		UpdatedAt:     now,
		LastCheckedAt: now,
	}
	if err := t.store.SaveReport(ctx, record, archive); err != nil {
		return false, t.storeErr(ctx, repo.ID, "save report", err)
	}
	if archive {
		j.to(schema.JobArchived)
	} else {
		j.to(schema.JobStored)
	}
	return archive, nil
}

func (t *Tracker) storeErr(ctx context.Context, repoID, op string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return &StoreError{RepositoryID: repoID, Op: op, Err: err}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
