package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/huangsam/repohealth/core/algo"
	"github.com/huangsam/repohealth/core/checks"
	"github.com/huangsam/repohealth/core/fetch"
	"github.com/huangsam/repohealth/core/license"
	"github.com/huangsam/repohealth/core/linter"
	"github.com/huangsam/repohealth/core/tracker"
	"github.com/huangsam/repohealth/internal/contract"
	"github.com/huangsam/repohealth/internal/lock"
	"github.com/huangsam/repohealth/internal/metadata"
	"github.com/huangsam/repohealth/internal/registrar"
	"github.com/huangsam/repohealth/internal/store"
	"github.com/huangsam/repohealth/schema"
)

// app bundles the collaborators a tracker-driven command needs.
type app struct {
	registry *checks.Registry
	weights  schema.WeightTable
	linter   *linter.Linter
	fetcher  *fetch.Fetcher
	locker   contract.Locker
	tracker  *tracker.Tracker
}

// newLinter builds the linter and weight table from the validated config.
func newLinter() (*linter.Linter, schema.WeightTable, error) {
	if err := license.Load(); err != nil {
		return nil, schema.WeightTable{}, fmt.Errorf("failed to load license corpus: %w", err)
	}
	registry := checks.Default()
	weights, err := registry.WeightTable(cfg.CheckWeights, cfg.CategoryWeights, cfg.ErrorPolicy)
	if err != nil {
		return nil, schema.WeightTable{}, err
	}
	opts := []linter.Option{
		linter.WithCheckTimeout(cfg.CheckTimeout),
		linter.WithLogger(log.With("component", "linter")),
	}
	if cfg.LintWorkers > 0 {
		opts = append(opts, linter.WithWorkers(cfg.LintWorkers))
	}
	return linter.New(registry, opts...), weights, nil
}

// newFetcher opens the lock backend and the fetch cache.
func newFetcher(ctx context.Context) (*fetch.Fetcher, contract.Locker, error) {
	locker, err := lock.New(ctx, cfg.LockBackend, cfg.LockConnect, cfg.LockTTL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize %s locks: %w", cfg.LockBackend, err)
	}
	f, err := fetch.New(contract.NewLocalGitClient(cfg.GitHubToken), locker, fetch.Options{
		Dir:      cfg.CacheDir,
		TTL:      cfg.CacheTTL,
		MaxBytes: cfg.CacheMaxBytes,
		Timeout:  cfg.Timeout,
	}, log.With("component", "fetch"))
	if err != nil {
		_ = locker.Close()
		return nil, nil, err
	}
	return f, locker, nil
}

// newApp wires the registrar, fetcher, metadata provider, linter and store into a tracker.
func newApp(ctx context.Context) (*app, error) {
	if cfg.RegistrySource == "" {
		return nil, errors.New("--registry is required (path or URL of the repository data file)")
	}
	reg, err := registrar.New(cfg.RegistrySource, registrar.WithLogger(log.With("component", "registrar")))
	if err != nil {
		return nil, err
	}

	lint, weights, err := newLinter()
	if err != nil {
		return nil, err
	}

	f, locker, err := newFetcher(ctx)
	if err != nil {
		return nil, err
	}

	meta := metadata.NewGitHubProvider(cfg.GitHubToken, nil,
		metadata.WithCache(store.Manager.GetCacheStore(), cfg.MetadataCacheTTL),
		metadata.WithLogger(log.With("component", "metadata")),
	)

	opts := []tracker.Option{
		tracker.WithMetadata(meta),
		tracker.WithBackoff(cfg.BackoffBase, cfg.BackoffMax),
		tracker.WithDefaults(cfg.RunConfig()),
		tracker.WithLogger(log.With("component", "tracker")),
	}
	if cfg.StoreBackend != schema.NoneBackend {
		opts = append(opts, tracker.WithStore(store.Manager.GetReportStore()))
	}

	return &app{
		registry: lint.Registry(),
		weights:  weights,
		linter:   lint,
		fetcher:  f,
		locker:   locker,
		tracker:  tracker.New(reg, f, lint, weights, opts...),
	}, nil
}

// Close releases the lock backend.
func (a *app) Close() error {
	return a.locker.Close()
}

// scoreRecord scores a report for display, logging scoring inconsistencies.
func scoreRecord(report *schema.Report, weights schema.WeightTable) schema.ReportRecord {
	score, issues := algo.Score(report, weights)
	for _, issue := range issues {
		log.Warn("scoring inconsistency", "repository", report.RepositoryID, "issue", issue.String())
	}
	return schema.ReportRecord{
		RepositoryID:  report.RepositoryID,
		Report:        *report,
		Score:         score,
		UpdatedAt:     report.CreatedAt,
		LastCheckedAt: report.CreatedAt,
	}
}
