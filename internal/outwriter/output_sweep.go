package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/huangsam/repohealth/internal/contract"
	"github.com/huangsam/repohealth/schema"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// WriteSweep outputs the outcomes of a sweep, dispatching based on the output format configured.
func WriteSweep(outcomes []schema.JobOutcome, summary schema.SweepSummary, cfg *contract.Config) error {
	return dispatch(cfg.OutputFile, cfg.Output,
		func(w io.Writer) error { return writeSweepTable(w, outcomes, summary, cfg) },
		func(w io.Writer) error { return writeSweepCSV(w, outcomes) },
		func(w io.Writer) error { return writeSweepJSON(w, outcomes, summary) },
	)
}

func writeSweepTable(w io.Writer, outcomes []schema.JobOutcome, summary schema.SweepSummary, cfg *contract.Config) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Repository", "State", "Score", "Rating", "Attempts", "Duration", "Error"})
	table.Configure(func(c *tablewriter.Config) {
		c.Row.Alignment.Global = tw.AlignLeft
	})

	errWidth := GetMaxTextWidth(cfg, 70)
	var data [][]string
	for _, o := range outcomes {
		score, rating := "-", "-"
		if o.Score != nil {
			score = strconv.Itoa(o.Score.Global)
			rating = contract.GetColorLabel(o.Score.Global)
		}
		state := string(o.State)
		if o.Archived {
			state += " (archived)"
		}
		data = append(data, []string{
			o.RepositoryID,
			state,
			score,
			rating,
			strconv.Itoa(o.Attempts),
			o.Duration.Round(time.Millisecond).String(),
			contract.TruncateText(o.Error, errWidth),
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "Sweep %s finished in %v: %d total, %d done (%d archived), %d failed, %d pending\n",
		summary.RunID, summary.Duration.Round(time.Millisecond), summary.Total, summary.Done, summary.Archived, summary.Failed, summary.Pending)
	return err
}

func writeSweepCSV(w io.Writer, outcomes []schema.JobOutcome) error {
	header := []string{"repository", "state", "last_stage", "archived", "global", "rating", "attempts", "duration_ms", "error"}
	return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
		for _, o := range outcomes {
			global, rating := "", ""
			if o.Score != nil {
				global = strconv.Itoa(o.Score.Global)
				rating = o.Score.Rating
			}
			row := []string{
				o.RepositoryID,
				string(o.State),
				string(o.LastStage),
				strconv.FormatBool(o.Archived),
				global,
				rating,
				strconv.Itoa(o.Attempts),
				strconv.FormatInt(o.Duration.Milliseconds(), 10),
				o.Error,
			}
			if err := cw.Write(row); err != nil {
				return fmt.Errorf("failed to write CSV record: %w", err)
			}
		}
		return nil
	})
}

func writeSweepJSON(w io.Writer, outcomes []schema.JobOutcome, summary schema.SweepSummary) error {
	type jsonSweep struct {
		Summary  schema.SweepSummary `json:"summary"`
		Outcomes []schema.JobOutcome `json:"outcomes"`
	}
	if outcomes == nil {
		outcomes = []schema.JobOutcome{}
	}
	return writeJSON(w, jsonSweep{Summary: summary, Outcomes: outcomes})
}
