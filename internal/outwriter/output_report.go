package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/huangsam/repohealth/internal/contract"
	"github.com/huangsam/repohealth/schema"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// WriteReport outputs a report, dispatching based on the output format configured.
func WriteReport(rec schema.ReportRecord, cfg *contract.Config) error {
	return dispatch(cfg.OutputFile, cfg.Output,
		func(w io.Writer) error { return writeReportTable(w, rec, cfg) },
		func(w io.Writer) error { return writeReportCSV(w, rec) },
		func(w io.Writer) error { return writeReportJSON(w, rec) },
	)
}

// writeReportTable prints the outcomes followed by the category scores.
func writeReportTable(w io.Writer, rec schema.ReportRecord, cfg *contract.Config) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Check", "Category", "Status", "Detail"})
	table.Configure(func(c *tablewriter.Config) {
		c.Row.Alignment.Global = tw.AlignLeft
	})

	detailWidth := GetMaxTextWidth(cfg, 60)
	var data [][]string
	for _, o := range rec.Report.Outcomes {
		detail := o.Detail
		if o.Reason != "" {
			detail = o.Reason
		}
		data = append(data, []string{
			o.CheckID,
			string(o.Category),
			contract.GetStatusLabel(o.Status),
			contract.TruncateText(detail, detailWidth),
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "%s @ %s (checks %s)\n", rec.RepositoryID, shortCommit(rec.Report.Commit), rec.Report.ChecksetVersion); err != nil {
		return err
	}
	for _, c := range schema.AllCategories {
		if _, err := fmt.Fprintf(w, "  %-15s %s\n", c, categoryCell(rec.Score, c)); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "Global score: %d (%s)\n", rec.Score.Global, contract.GetColorLabel(rec.Score.Global))
	return err
}

// writeReportCSV writes one row per outcome.
func writeReportCSV(w io.Writer, rec schema.ReportRecord) error {
	header := []string{"repository", "commit", "check", "category", "status", "reason", "detail"}
	return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
		for _, o := range rec.Report.Outcomes {
			row := []string{rec.RepositoryID, rec.Report.Commit, o.CheckID, string(o.Category), string(o.Status), o.Reason, o.Detail}
			if err := cw.Write(row); err != nil {
				return fmt.Errorf("failed to write CSV record: %w", err)
			}
		}
		return nil
	})
}

// writeReportJSON writes the report and score as one document.
func writeReportJSON(w io.Writer, rec schema.ReportRecord) error {
	type jsonReport struct {
		RepositoryID string        `json:"repository_id"`
		Label        string        `json:"label"`
		Score        schema.Score  `json:"score"`
		Report       schema.Report `json:"report"`
	}
	return writeJSON(w, jsonReport{
		RepositoryID: rec.RepositoryID,
		Label:        contract.GetPlainLabel(rec.Score.Global),
		Score:        rec.Score,
		Report:       rec.Report,
	})
}

func shortCommit(commit string) string {
	if len(commit) > 12 {
		return commit[:12]
	}
	return commit
}
