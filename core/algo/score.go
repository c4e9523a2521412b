// Package algo has the scoring and ranking algorithms used on lint reports.
package algo

import (
	"fmt"

	"github.com/huangsam/repohealth/schema"
)

// Inconsistency describes a category that could not be scored.
type Inconsistency struct {
	Category schema.Category
	Reason   string
}

func (i Inconsistency) String() string {
	return fmt.Sprintf("%s: %s", i.Category, i.Reason)
}

// Score computes the category and global scores of a report.
//
// A category score is the weighted share of passed or exempt checks among the
// checks that count for it. Failed checks always count; error outcomes count as
// failed unless the weight table excludes them. Categories without any counting
// weight are left undefined, reported as inconsistencies and kept out of the
// global average. The global score is 0 when no category is defined.
func Score(report *schema.Report, weights schema.WeightTable) (schema.Score, []Inconsistency) {
	type tally struct{ num, den uint64 }
	tallies := make(map[schema.Category]*tally, len(schema.AllCategories))
	for _, c := range schema.AllCategories {
		tallies[c] = &tally{}
	}

	for _, o := range report.Outcomes {
		t, ok := tallies[o.Category]
		if !ok {
			continue
		}
		w := uint64(weights.CheckWeight(o.CheckID))
		switch o.Status {
		case schema.PassedStatus, schema.ExemptStatus:
			t.num += w
			t.den += w
		case schema.FailedStatus:
			t.den += w
		case schema.ErrorStatus:
			if weights.ErrorPolicy != schema.ErrorExcluded {
				t.den += w
			}
		}
	}

	score := schema.Score{Categories: make(map[schema.Category]int, len(tallies))}
	var issues []Inconsistency
	var gNum, gDen uint64
	for _, c := range schema.AllCategories {
		t := tallies[c]
		if t.den == 0 {
			issues = append(issues, Inconsistency{Category: c, Reason: "no applicable weight"})
			continue
		}
		cs := roundRatio(100*t.num, t.den)
		score.Categories[c] = int(cs)

		cw := uint64(weights.CategoryWeight(c))
		gNum += cw * cs
		gDen += cw
	}
	if gDen > 0 {
		score.Global = int(roundRatio(gNum, gDen))
	}
	score.Rating = schema.Rating(score.Global)
	return score, issues
}

// roundRatio returns num/den rounded half up. den must be positive.
func roundRatio(num, den uint64) uint64 {
	return (2*num + den) / (2 * den)
}
