package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/huangsam/repohealth/internal/contract"
	"github.com/huangsam/repohealth/schema"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// checkRow is a registry definition with the weight in effect.
type checkRow struct {
	schema.CheckDefinition
	EffectiveWeight uint `json:"effective_weight"`
}

func checkRows(defs []schema.CheckDefinition, weights schema.WeightTable) []checkRow {
	rows := make([]checkRow, len(defs))
	for i, d := range defs {
		w := weights.CheckWeight(d.ID)
		if w == 0 {
			w = d.Weight
		}
		rows[i] = checkRow{CheckDefinition: d, EffectiveWeight: w}
	}
	return rows
}

func joinCheckSets(sets []schema.CheckSet) string {
	parts := make([]string, len(sets))
	for i, s := range sets {
		parts[i] = string(s)
	}
	return strings.Join(parts, ",")
}

// WriteChecks outputs the registry, dispatching based on the output format configured.
func WriteChecks(defs []schema.CheckDefinition, weights schema.WeightTable, version string, cfg *contract.Config) error {
	rows := checkRows(defs, weights)
	return dispatch(cfg.OutputFile, cfg.Output,
		func(w io.Writer) error { return writeChecksTable(w, rows, weights, version, cfg) },
		func(w io.Writer) error { return writeChecksCSV(w, rows) },
		func(w io.Writer) error { return writeChecksJSON(w, rows, weights, version) },
	)
}

func writeChecksTable(w io.Writer, rows []checkRow, weights schema.WeightTable, version string, cfg *contract.Config) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Check", "Category", "Weight", "Requires", "Check Sets", "Description"})
	table.Configure(func(c *tablewriter.Config) {
		c.Row.Alignment.Global = tw.AlignLeft
	})

	descWidth := GetMaxTextWidth(cfg, 75)
	var data [][]string
	for _, r := range rows {
		data = append(data, []string{
			r.ID,
			string(r.Category),
			strconv.FormatUint(uint64(r.EffectiveWeight), 10),
			r.Requires.String(),
			joinCheckSets(r.CheckSets),
			contract.TruncateText(r.Description, descWidth),
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "Check set version %s, %d checks. Category weights:", version, len(rows)); err != nil {
		return err
	}
	for _, c := range schema.AllCategories {
		if _, err := fmt.Fprintf(w, " %s=%d", c, weights.CategoryWeight(c)); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, ". Errors count as %s.\n", weights.ErrorPolicy)
	return err
}

func writeChecksCSV(w io.Writer, rows []checkRow) error {
	header := []string{"id", "category", "weight", "requires", "check_sets", "exemptable", "description"}
	return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
		for _, r := range rows {
			rec := []string{
				r.ID,
				string(r.Category),
				strconv.FormatUint(uint64(r.EffectiveWeight), 10),
				r.Requires.String(),
				strings.ReplaceAll(joinCheckSets(r.CheckSets), ",", "|"),
				strconv.FormatBool(r.Exemptable),
				r.Description,
			}
			if err := cw.Write(rec); err != nil {
				return fmt.Errorf("failed to write CSV record: %w", err)
			}
		}
		return nil
	})
}

func writeChecksJSON(w io.Writer, rows []checkRow, weights schema.WeightTable, version string) error {
	type jsonChecks struct {
		Version         string                   `json:"version"`
		ErrorPolicy     schema.ErrorPolicy       `json:"error_policy"`
		CategoryWeights map[schema.Category]uint `json:"category_weights"`
		Checks          []checkRow               `json:"checks"`
	}
	return writeJSON(w, jsonChecks{
		Version:         version,
		ErrorPolicy:     weights.ErrorPolicy,
		CategoryWeights: weights.Categories,
		Checks:          rows,
	})
}
