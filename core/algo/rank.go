package algo

import (
	"cmp"
	"slices"

	"github.com/huangsam/repohealth/schema"
)

// RankRecords sorts report records by global score in descending order
// and returns the top 'limit' records. Ties are broken by repository id so the
// order is stable across runs. A non-positive limit returns every record.
func RankRecords(records []schema.ReportRecord, limit int) []schema.ReportRecord {
	slices.SortFunc(records, func(a, b schema.ReportRecord) int {
		if c := cmp.Compare(b.Score.Global, a.Score.Global); c != 0 {
			return c
		}
		return cmp.Compare(a.RepositoryID, b.RepositoryID)
	})
	if limit > 0 && len(records) > limit {
		return records[:limit]
	}
	return records
}

// RankOutcomes orders sweep outcomes for display: scored jobs first by global
// score descending, then unscored jobs by repository id.
func RankOutcomes(outcomes []schema.JobOutcome) []schema.JobOutcome {
	slices.SortFunc(outcomes, func(a, b schema.JobOutcome) int {
		switch {
		case a.Score != nil && b.Score == nil:
			return -1
		case a.Score == nil && b.Score != nil:
			return 1
		case a.Score != nil && b.Score != nil:
			if c := cmp.Compare(b.Score.Global, a.Score.Global); c != 0 {
				return c
			}
		}
		return cmp.Compare(a.RepositoryID, b.RepositoryID)
	})
	return outcomes
}
