// Package linter evaluates the check registry against one repository.
package linter

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/huangsam/repohealth/core/checks"
	"github.com/huangsam/repohealth/internal/logger"
	"github.com/huangsam/repohealth/schema"
	"golang.org/x/sync/errgroup"
)

// DefaultCheckTimeout bounds a single check evaluation.
const DefaultCheckTimeout = 30 * time.Second

// Linter runs every applicable check of a registry and assembles a report.
// It holds no per-run state and may be shared by many workers.
type Linter struct {
	registry     *checks.Registry
	checkTimeout time.Duration
	workers      int
	log          *logger.Logger
}

// Option customizes a Linter.
type Option func(*Linter)

// WithCheckTimeout sets the per-check deadline.
func WithCheckTimeout(d time.Duration) Option {
	return func(l *Linter) {
		if d > 0 {
			l.checkTimeout = d
		}
	}
}

// WithWorkers bounds how many checks of one repository run at once.
func WithWorkers(n int) Option {
	return func(l *Linter) {
		if n > 0 {
			l.workers = n
		}
	}
}

// WithLogger sets the logger used for non-fatal problems.
func WithLogger(log *logger.Logger) Option {
	return func(l *Linter) {
		if log != nil {
			l.log = log
		}
	}
}

// New creates a linter over a registry.
func New(registry *checks.Registry, opts ...Option) *Linter {
	l := &Linter{
		registry:     registry,
		checkTimeout: DefaultCheckTimeout,
		workers:      runtime.GOMAXPROCS(0),
		log:          logger.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Registry returns the registry the linter evaluates.
func (l *Linter) Registry() *checks.Registry { return l.registry }

// Lint evaluates the registry against the input. The report holds exactly one
// outcome per registry check, in registry order. Failures inside a check are
// recorded as error outcomes; Lint itself only fails when ctx is done, in which
// case the partial report must be discarded. A zero in.Now is set to the
// current time.
func (l *Linter) Lint(ctx context.Context, in *checks.Input) (*schema.Report, error) {
	if in.Now.IsZero() {
		in.Now = time.Now()
	}
	in.Bind(ctx)

	have := in.Capabilities()
	exemptions := checks.Exemptions{}
	if in.Tree != nil {
		ex, err := in.Exemptions()
		if err != nil {
			l.log.Warn("ignoring exemptions", "repository", in.Repository.ID, "error", err)
		} else {
			exemptions = ex
		}
	}

	list := l.registry.Checks()
	outcomes := make([]schema.CheckOutcome, len(list))

	// running tracks evaluations past their deadline too; the tree must
	// stay readable until every one has returned.
	var running sync.WaitGroup
	g := new(errgroup.Group)
	g.SetLimit(l.workers)
	for i, c := range list {
		def := c.Definition()
		outcomes[i] = schema.CheckOutcome{CheckID: def.ID, Category: def.Category}

		if !checks.Applicable(def, have, in.Repository) {
			outcomes[i].Status = schema.NotApplicableStatus
			outcomes[i].Reason = inapplicableReason(def, have)
			continue
		}
		if def.Exemptable {
			if reason, ok := exemptions.Reason(def.ID); ok {
				outcomes[i].Status = schema.ExemptStatus
				outcomes[i].Reason = reason
				continue
			}
		}

		g.Go(func() error {
			res := l.evaluate(ctx, &running, c, in)
			outcomes[i].Status = res.Status
			outcomes[i].Reason = res.Reason
			outcomes[i].Detail = res.Detail
			return nil
		})
	}
	_ = g.Wait()
	running.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &schema.Report{
		RepositoryID:    in.Repository.ID,
		Commit:          in.Commit,
		ChecksetVersion: l.registry.ChecksetVersion(in.Repository),
		CreatedAt:       in.Now.UTC(),
		Outcomes:        outcomes,
	}, nil
}

// evaluate runs one check with a deadline, converting errors and panics into
// an error result. A check that ignores its context gets its result recorded
// at the deadline and frees its worker slot, but stays counted in running
// until it returns.
func (l *Linter) evaluate(ctx context.Context, running *sync.WaitGroup, c checks.Check, in *checks.Input) checks.Result {
	id := c.Definition().ID
	cctx, cancel := context.WithTimeout(ctx, l.checkTimeout)
	defer cancel()

	done := make(chan checks.Result, 1)
	running.Add(1)
	go func() {
		defer running.Done()
		defer func() {
			if r := recover(); r != nil {
				l.log.Error("check panicked", "check", id, "repository", in.Repository.ID, "panic", r)
				done <- errorResult(fmt.Sprintf("panic: %v", r))
			}
		}()
		res, err := c.Evaluate(cctx, in)
		if err != nil {
			done <- errorResult(err.Error())
			return
		}
		if res.Status == "" {
			res = errorResult("check returned no status")
		}
		done <- res
	}()

	select {
	case res := <-done:
		return res
	case <-cctx.Done():
		l.log.Warn("check timed out", "check", id, "repository", in.Repository.ID)
		if ctx.Err() != nil {
			return errorResult(ctx.Err().Error())
		}
		return errorResult(fmt.Sprintf("timed out after %s", l.checkTimeout))
	}
}

func errorResult(reason string) checks.Result {
	return checks.Result{Status: schema.ErrorStatus, Reason: reason}
}

func inapplicableReason(def schema.CheckDefinition, have schema.Capability) string {
	if !have.Has(def.Requires) {
		return fmt.Sprintf("requires %s", def.Requires)
	}
	return "not in the repository check sets"
}
