// Package outwriter has output and writer logic.
package outwriter

import (
	"github.com/huangsam/repohealth/internal/contract"
	"github.com/huangsam/repohealth/schema"
)

// OutWriter provides a unified interface for all output operations.
// It encapsulates the various output formats and provides a clean API for the commands.
type OutWriter struct{}

// NewOutWriter creates a new instance of the output writer.
func NewOutWriter() *OutWriter {
	return &OutWriter{}
}

// WriteReport prints a single report with its score.
func (ow *OutWriter) WriteReport(rec schema.ReportRecord, cfg *contract.Config) error {
	return WriteReport(rec, cfg)
}

// WriteSweep prints the outcomes of a sweep and its summary.
func (ow *OutWriter) WriteSweep(outcomes []schema.JobOutcome, summary schema.SweepSummary, cfg *contract.Config) error {
	return WriteSweep(outcomes, summary, cfg)
}

// WriteChecks prints the check registry with the weights in effect.
func (ow *OutWriter) WriteChecks(defs []schema.CheckDefinition, weights schema.WeightTable, version string, cfg *contract.Config) error {
	return WriteChecks(defs, weights, version, cfg)
}

// WriteHistory prints the snapshots of a repository, newest first.
func (ow *OutWriter) WriteHistory(repoID string, snapshots []schema.Snapshot, cfg *contract.Config) error {
	return WriteHistory(repoID, snapshots, cfg)
}
