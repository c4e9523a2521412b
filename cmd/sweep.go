package cmd

import (
	"fmt"

	"github.com/huangsam/repohealth/core/algo"
	"github.com/huangsam/repohealth/internal/outwriter"
	"github.com/huangsam/repohealth/schema"
	"github.com/spf13/cobra"
)

// sweepCmd runs every registered repository once.
var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Evaluate every registered repository once.",
	Long: `Run the fetch, lint, score and compare pipeline over the whole registry.

Repositories are processed by a bounded pool of workers. Every repository ends
in exactly one state: done (stored or archived), failed, or pending when the
sweep was interrupted before it could finish. One failing repository never
blocks the others.

On SIGINT/SIGTERM no new repository is started, in-flight ones get
--grace-period to finish, and the rest are reported as pending.

Examples:
  # Sweep with 8 workers and 3 fetch retries
  repohealth sweep --registry data.yaml --workers 8 --retries 3

  # Archive a snapshot for every repository and export the outcomes
  repohealth sweep --force --output csv --output-file sweep.csv`,
	Args:    cobra.NoArgs,
	PreRunE: sharedSetup,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		outcomes, summary := a.tracker.Sweep(cmd.Context(), cfg.RunConfig())
		if err := outwriter.NewOutWriter().WriteSweep(algo.RankOutcomes(outcomes), summary, cfg); err != nil {
			return err
		}
		if summary.Pending > 0 && cmd.Context().Err() != nil {
			return fmt.Errorf("sweep interrupted: %d repositories left pending", summary.Pending)
		}
		return nil
	},
}

// scheduleCmd runs sweeps periodically.
var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run sweeps on a cron schedule until interrupted.",
	Long: `Run a sweep on every tick of --cron and keep running until interrupted.

A tick that arrives while the previous sweep is still running is skipped.
After every sweep the fetch cache is evicted so it stays within --cache-ttl
and --cache-max-size.

The schedule accepts standard five-field cron expressions and descriptors
such as @hourly or @every 6h.

Examples:
  # Sweep every six hours (the default)
  repohealth schedule --registry https://example.org/data.yaml

  # Sweep at 02:30 every night with Redis locks shared by several instances
  repohealth schedule --cron "30 2 * * *" --lock-backend redis --lock-connect localhost:6379`,
	Args:    cobra.NoArgs,
	PreRunE: sharedSetup,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		ow := outwriter.NewOutWriter()
		return a.tracker.Schedule(cmd.Context(), cfg.Schedule, cfg.RunConfig(), func(outcomes []schema.JobOutcome, summary schema.SweepSummary) {
			if cfg.OutputFile == "" && cfg.Output == schema.TextOut {
				// Long-running mode only logs the summary; per-repository tables go to files.
				return
			}
			if err := ow.WriteSweep(algo.RankOutcomes(outcomes), summary, cfg); err != nil {
				log.Warn("could not write sweep output", "run_id", summary.RunID, "error", err)
			}
		})
	},
}
