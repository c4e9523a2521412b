package tracker

import (
	"context"
	"iter"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/huangsam/repohealth/schema"
)

// RunAll returns a lazy sequence of job outcomes over every registered
// repository. Nothing runs until the sequence is ranged over, and each range
// starts a fresh sweep. Breaking out of the range stops dispatch and cancels
// in-flight jobs before the range returns.
//
// When ctx is done, dispatch stops, in-flight jobs get cfg.GracePeriod to
// finish, and every aborted or undispatched job is yielded as pending.
func (t *Tracker) RunAll(ctx context.Context, cfg schema.RunConfig) iter.Seq[schema.JobOutcome] {
	return func(yield func(schema.JobOutcome) bool) {
		repos, err := t.registrar.Repositories(ctx)
		if err != nil {
			t.log.Error("could not load repositories", "error", err)
			return
		}
		t.run(ctx, repos, cfg, yield)
	}
}

func (t *Tracker) run(ctx context.Context, repos []schema.Repository, cfg schema.RunConfig, yield func(schema.JobOutcome) bool) {
	if len(repos) == 0 {
		return
	}
	workers := min(max(cfg.Concurrency, 1), len(repos))

	// Jobs keep running through the grace period after ctx is done.
	jobCtx, cancelJobs := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelJobs()
	finished := make(chan struct{})
	defer close(finished)
	go func() {
		select {
		case <-ctx.Done():
		case <-finished:
			return
		}
		grace := time.NewTimer(cfg.GracePeriod)
		defer grace.Stop()
		select {
		case <-grace.C:
			t.log.Warn("grace period expired, aborting in-flight jobs")
			cancelJobs()
		case <-finished:
		}
	}()

	queue := make(chan schema.Repository)
	results := make(chan schema.JobOutcome)
	stop := make(chan struct{})
	var undispatched []schema.Repository

	go func() {
		defer close(queue)
		for i, repo := range repos {
			if ctx.Err() != nil {
				undispatched = repos[i:]
				return
			}
			select {
			case queue <- repo:
			case <-ctx.Done():
				undispatched = repos[i:]
				return
			case <-stop:
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for range workers {
		wg.Go(func() {
			for repo := range queue {
				res := t.process(ctx, jobCtx, repo, cfg)
				select {
				case results <- res.outcome:
				case <-stop:
					return
				}
			}
		})
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	for out := range results {
		if !yield(out) {
			close(stop)
			cancelJobs()
			for range results {
			}
			return
		}
	}

	// Workers are done and the dispatcher has exited, so undispatched is settled.
	for _, repo := range undispatched {
		if !yield(schema.JobOutcome{RepositoryID: repo.ID, State: schema.JobPending, LastStage: schema.JobPending}) {
			return
		}
	}
}

// Sweep runs every repository to completion and records the sweep in the
// run log when a store is configured.
func (t *Tracker) Sweep(ctx context.Context, cfg schema.RunConfig) ([]schema.JobOutcome, schema.SweepSummary) {
	runID := uuid.NewString()
	started := t.now()
	log := t.log.With("run_id", runID)

	if t.store != nil {
		params := map[string]any{
			"concurrency":  cfg.Concurrency,
			"force":        cfg.Force,
			"retry_budget": cfg.RetryBudget,
			"timeout":      cfg.Timeout.String(),
		}
		if err := t.store.BeginRun(ctx, runID, started, params); err != nil {
			log.Warn("could not record sweep start", "error", err)
		}
	}

	log.Info("sweep started", "workers", cfg.Concurrency, "force", cfg.Force)
	var outcomes []schema.JobOutcome
	for out := range t.RunAll(ctx, cfg) {
		outcomes = append(outcomes, out)
	}

	summary := schema.Summarize(outcomes)
	summary.RunID = runID
	summary.StartedAt = started
	summary.Duration = t.now().Sub(started)

	if t.store != nil {
		// The run log is written even after shutdown began.
		endCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := t.store.EndRun(endCtx, runID, t.now(), summary); err != nil {
			log.Warn("could not record sweep end", "error", err)
		}
	}
	log.Info("sweep finished",
		"total", summary.Total,
		"done", summary.Done,
		"archived", summary.Archived,
		"failed", summary.Failed,
		"pending", summary.Pending,
		"duration", summary.Duration)
	return outcomes, summary
}
