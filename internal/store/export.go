package store

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/huangsam/repohealth/internal/contract"
	"github.com/huangsam/repohealth/internal/parquet"
)

// ExportResult names the files written by Export.
type ExportResult struct {
	RunsFile      string
	SnapshotsFile string
	OutcomesFile  string
	Runs          int
	Snapshots     int
	Outcomes      int
}

// Export writes sweep runs and every snapshot to Parquet files that share the
// outputFile prefix.
func Export(ctx context.Context, store contract.ReportStore, outputFile string, w io.Writer) (ExportResult, error) {
	if outputFile == "" {
		return ExportResult{}, errors.New("--output-file is required for export command")
	}

	status, err := store.GetStatus(ctx)
	if err != nil {
		return ExportResult{}, fmt.Errorf("failed to get store status: %w", err)
	}
	if status.TotalRuns == 0 && status.TotalSnapshots == 0 {
		return ExportResult{}, errors.New("no store data found to export")
	}
	_, _ = fmt.Fprintf(w, "Exporting data from %s backend...\n", status.Backend)

	runs, err := store.GetAllRuns(ctx)
	if err != nil {
		return ExportResult{}, fmt.Errorf("failed to retrieve sweep runs: %w", err)
	}
	snapshots, err := store.ListSnapshots(ctx, "", 0)
	if err != nil {
		return ExportResult{}, fmt.Errorf("failed to retrieve snapshots: %w", err)
	}

	res := ExportResult{
		RunsFile:      outputFile + ".runs.parquet",
		SnapshotsFile: outputFile + ".snapshots.parquet",
		OutcomesFile:  outputFile + ".outcomes.parquet",
	}

	parquetRuns := parquet.ConvertSweepRunRecords(runs)
	if err := parquet.WriteSweepRunsParquet(parquetRuns, res.RunsFile); err != nil {
		return res, fmt.Errorf("failed to write sweep runs: %w", err)
	}
	res.Runs = len(parquetRuns)
	_, _ = fmt.Fprintf(w, "Exported %d sweep runs to: %s\n", res.Runs, res.RunsFile)

	scores, outcomes := parquet.ConvertSnapshots(snapshots)
	if err := parquet.WriteSnapshotsParquet(scores, res.SnapshotsFile); err != nil {
		return res, fmt.Errorf("failed to write snapshots: %w", err)
	}
	res.Snapshots = len(scores)
	_, _ = fmt.Fprintf(w, "Exported %d snapshots to: %s\n", res.Snapshots, res.SnapshotsFile)

	if err := parquet.WriteOutcomesParquet(outcomes, res.OutcomesFile); err != nil {
		return res, fmt.Errorf("failed to write outcomes: %w", err)
	}
	res.Outcomes = len(outcomes)
	_, _ = fmt.Fprintf(w, "Exported %d check outcomes to: %s\n", res.Outcomes, res.OutcomesFile)

	return res, nil
}
