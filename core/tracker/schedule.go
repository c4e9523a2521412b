package tracker

import (
	"context"
	"fmt"

	"github.com/huangsam/repohealth/internal/logger"
	"github.com/huangsam/repohealth/schema"
	"github.com/robfig/cron/v3"
)

// cronLogger adapts the repohealth logger to cron.Logger.
type cronLogger struct {
	log *logger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.log.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.log.Error(msg, append(keysAndValues, "error", err)...)
}

// Schedule runs a sweep on every tick of spec until ctx is done. A tick that
// arrives while the previous sweep still runs is skipped. After each sweep
// the fetch cache is evicted. Schedule returns once the running sweep, if
// any, has wound down.
func (t *Tracker) Schedule(ctx context.Context, spec string, cfg schema.RunConfig, onSweep func([]schema.JobOutcome, schema.SweepSummary)) error {
	clog := cronLogger{log: t.log.With("component", "scheduler")}
	c := cron.New(
		cron.WithLogger(clog),
		cron.WithChain(
			cron.Recover(clog),
			cron.SkipIfStillRunning(clog),
		),
	)

	_, err := c.AddFunc(spec, func() {
		if ctx.Err() != nil {
			return
		}
		outcomes, summary := t.Sweep(ctx, cfg)
		if onSweep != nil {
			onSweep(outcomes, summary)
		}
		n, err := t.fetcher.Evict(context.WithoutCancel(ctx))
		if err != nil {
			t.log.Warn("fetch cache eviction failed", "error", err)
			return
		}
		t.log.Info("fetch cache evicted", "slots", n)
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}

	c.Start()
	t.log.Info("scheduler started", "schedule", spec)
	<-ctx.Done()
	<-c.Stop().Done()
	t.log.Info("scheduler stopped")
	return nil
}
