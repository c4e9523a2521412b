// Package parquet exports sweep runs and report snapshots to Parquet files
// using github.com/parquet-go/parquet-go.
package parquet

import (
	"fmt"
	"os"
	"time"

	"github.com/huangsam/repohealth/schema"
	"github.com/parquet-go/parquet-go"
)

// SweepRun maps to the repohealth_runs table.
type SweepRun struct {
	RunID        string     `parquet:"run_id,snappy"`
	StartTime    time.Time  `parquet:"start_time,snappy"`
	EndTime      *time.Time `parquet:"end_time,optional,snappy"`
	DurationMs   *int64     `parquet:"run_duration_ms,optional,snappy"`
	Total        int32      `parquet:"total,snappy"`
	Done         int32      `parquet:"done,snappy"`
	Archived     int32      `parquet:"archived,snappy"`
	Failed       int32      `parquet:"failed,snappy"`
	Pending      int32      `parquet:"pending,snappy"`
	ConfigParams *string    `parquet:"config_params,optional,snappy"`
}

// Snapshot is one archived score. Category sub-scores are nullable because
// a category with no applicable check has no score.
type Snapshot struct {
	RepositoryID    string    `parquet:"repository_id,snappy,dict"`
	CreatedAt       time.Time `parquet:"created_at,snappy"`
	Commit          string    `parquet:"commit,snappy"`
	ChecksetVersion string    `parquet:"checkset_version,snappy,dict"`
	GlobalScore     int32     `parquet:"global_score,snappy"`
	Rating          string    `parquet:"rating,snappy,dict"`
	Documentation   *int32    `parquet:"documentation,optional,snappy"`
	License         *int32    `parquet:"license,optional,snappy"`
	BestPractices   *int32    `parquet:"best_practices,optional,snappy"`
	Security        *int32    `parquet:"security,optional,snappy"`
	Legal           *int32    `parquet:"legal,optional,snappy"`
}

// Outcome is one check outcome of a snapshot.
type Outcome struct {
	RepositoryID string    `parquet:"repository_id,snappy,dict"`
	CreatedAt    time.Time `parquet:"created_at,snappy"`
	CheckID      string    `parquet:"check_id,snappy,dict"`
	Category     string    `parquet:"category,snappy,dict"`
	Status       string    `parquet:"status,snappy,dict"`
	Reason       *string   `parquet:"reason,optional,snappy"`
	Detail       *string   `parquet:"detail,optional,snappy"`
}

// WriteSweepRunsParquet writes sweep runs to a Parquet file.
func WriteSweepRunsParquet(data []SweepRun, outputPath string) error {
	return writeParquet(data, outputPath)
}

// WriteSnapshotsParquet writes snapshots to a Parquet file.
func WriteSnapshotsParquet(data []Snapshot, outputPath string) error {
	return writeParquet(data, outputPath)
}

// WriteOutcomesParquet writes check outcomes to a Parquet file.
func WriteOutcomesParquet(data []Outcome, outputPath string) error {
	return writeParquet(data, outputPath)
}

// writeParquet writes rows with a schema inferred from the struct tags of T.
func writeParquet[T any](data []T, outputPath string) (err error) {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close output file: %w", cerr)
		}
	}()

	writer := parquet.NewGenericWriter[T](file)
	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write data to parquet file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finish parquet file: %w", err)
	}
	return nil
}

// ConvertSweepRunRecords converts store rows for export.
func ConvertSweepRunRecords(records []schema.SweepRunRecord) []SweepRun {
	result := make([]SweepRun, len(records))
	for i, r := range records {
		result[i] = SweepRun{
			RunID:        r.RunID,
			StartTime:    r.StartTime,
			EndTime:      r.EndTime,
			DurationMs:   r.DurationMs,
			Total:        r.Total,
			Done:         r.Done,
			Archived:     r.Archived,
			Failed:       r.Failed,
			Pending:      r.Pending,
			ConfigParams: r.ConfigParams,
		}
	}
	return result
}

// ConvertSnapshots flattens snapshots into score rows and outcome rows.
func ConvertSnapshots(snapshots []schema.Snapshot) ([]Snapshot, []Outcome) {
	scores := make([]Snapshot, 0, len(snapshots))
	var outcomes []Outcome
	for _, s := range snapshots {
		category := func(c schema.Category) *int32 {
			v, ok := s.Score.Category(c)
			if !ok {
				return nil
			}
			n := int32(v)
			return &n
		}
		scores = append(scores, Snapshot{
			RepositoryID:    s.RepositoryID,
			CreatedAt:       s.CreatedAt,
			Commit:          s.Report.Commit,
			ChecksetVersion: s.Report.ChecksetVersion,
			GlobalScore:     int32(s.Score.Global),
			Rating:          s.Score.Rating,
			Documentation:   category(schema.DocumentationCategory),
			License:         category(schema.LicenseCategory),
			BestPractices:   category(schema.BestPracticesCategory),
			Security:        category(schema.SecurityCategory),
			Legal:           category(schema.LegalCategory),
		})
		for _, o := range s.Report.Outcomes {
			outcomes = append(outcomes, Outcome{
				RepositoryID: s.RepositoryID,
				CreatedAt:    s.CreatedAt,
				CheckID:      o.CheckID,
				Category:     string(o.Category),
				Status:       string(o.Status),
				Reason:       optional(o.Reason),
				Detail:       optional(o.Detail),
			})
		}
	}
	return scores, outcomes
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
