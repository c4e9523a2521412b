package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/huangsam/repohealth/internal/contract"
	"github.com/huangsam/repohealth/schema"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// WriteHistory outputs snapshots, dispatching based on the output format configured.
func WriteHistory(repoID string, snapshots []schema.Snapshot, cfg *contract.Config) error {
	return dispatch(cfg.OutputFile, cfg.Output,
		func(w io.Writer) error { return writeHistoryTable(w, repoID, snapshots) },
		func(w io.Writer) error { return writeHistoryCSV(w, snapshots) },
		func(w io.Writer) error {
			if snapshots == nil {
				snapshots = []schema.Snapshot{}
			}
			return writeJSON(w, snapshots)
		},
	)
}

func writeHistoryTable(w io.Writer, repoID string, snapshots []schema.Snapshot) error {
	if len(snapshots) == 0 {
		_, err := fmt.Fprintf(w, "No snapshots recorded for %s\n", repoID)
		return err
	}

	table := tablewriter.NewWriter(w)
	header := []string{"Created", "Commit", "Checks", "Global", "Rating"}
	for _, c := range schema.AllCategories {
		header = append(header, string(c))
	}
	table.Header(header)
	table.Configure(func(c *tablewriter.Config) {
		c.Row.Alignment.Global = tw.AlignRight
	})

	var data [][]string
	for _, s := range snapshots {
		row := []string{
			s.CreatedAt.Format(contract.DateTimeFormat),
			shortCommit(s.Report.Commit),
			s.Report.ChecksetVersion,
			strconv.Itoa(s.Score.Global),
			contract.GetColorLabel(s.Score.Global),
		}
		for _, c := range schema.AllCategories {
			row = append(row, categoryCell(s.Score, c))
		}
		data = append(data, row)
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "Showing %d snapshots of %s, newest first\n", len(snapshots), repoID)
	return err
}

func writeHistoryCSV(w io.Writer, snapshots []schema.Snapshot) error {
	header := []string{"repository", "created_at", "commit", "checkset_version", "global", "rating"}
	for _, c := range schema.AllCategories {
		header = append(header, string(c))
	}
	return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
		for _, s := range snapshots {
			rec := []string{
				s.RepositoryID,
				s.CreatedAt.Format(contract.DateTimeFormat),
				s.Report.Commit,
				s.Report.ChecksetVersion,
				strconv.Itoa(s.Score.Global),
				s.Score.Rating,
			}
			for _, c := range schema.AllCategories {
				v := categoryCell(s.Score, c)
				if v == "-" {
					v = ""
				}
				rec = append(rec, v)
			}
			if err := cw.Write(rec); err != nil {
				return fmt.Errorf("failed to write CSV record: %w", err)
			}
		}
		return nil
	})
}
