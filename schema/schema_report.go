package schema

import (
	"maps"
	"slices"
	"time"
)

// CheckOutcome is the result of evaluating one check against one repository.
type CheckOutcome struct {
	CheckID  string        `json:"check_id"`
	Category Category      `json:"category"`
	Status   OutcomeStatus `json:"status"`
	Reason   string        `json:"reason,omitempty"` // Why a check failed, errored or was exempted
	Detail   string        `json:"detail,omitempty"` // Evidence found, e.g. the detected license id
}

// Report is the ordered list of outcomes for a single lint run.
type Report struct {
	RepositoryID    string         `json:"repository_id"`
	Commit          string         `json:"commit"`
	ChecksetVersion string         `json:"checkset_version"`
	CreatedAt       time.Time      `json:"created_at"`
	Outcomes        []CheckOutcome `json:"outcomes"`
}

// Outcome returns the outcome recorded for a check id.
func (r *Report) Outcome(checkID string) (CheckOutcome, bool) {
	for _, o := range r.Outcomes {
		if o.CheckID == checkID {
			return o, true
		}
	}
	return CheckOutcome{}, false
}

// Equivalent reports whether two reports carry the same evaluation, ignoring CreatedAt.
func (r *Report) Equivalent(other *Report) bool {
	if r == nil || other == nil {
		return r == other
	}
	return r.RepositoryID == other.RepositoryID &&
		r.Commit == other.Commit &&
		r.ChecksetVersion == other.ChecksetVersion &&
		slices.Equal(r.Outcomes, other.Outcomes)
}

// Score holds the category sub-scores and the global score of a report.
// A category missing from Categories is undefined: none of its checks applied.
type Score struct {
	Global     int              `json:"global"`
	Categories map[Category]int `json:"categories"`
	Rating     string           `json:"rating"`
}

// Category returns the sub-score of a category and whether it is defined.
func (s Score) Category(c Category) (int, bool) {
	v, ok := s.Categories[c]
	return v, ok
}

// Equal reports whether two scores carry the same values.
func (s Score) Equal(other Score) bool {
	return s.Global == other.Global && maps.Equal(s.Categories, other.Categories)
}

// Rating returns the letter rating for a global score.
func Rating(global int) string {
	switch {
	case global >= 75:
		return "a"
	case global >= 50:
		return "b"
	case global >= 25:
		return "c"
	default:
		return "d"
	}
}

// WeightTable holds the weights used to score a report.
type WeightTable struct {
	Checks      map[string]uint   // Weight per check id
	Categories  map[Category]uint // Weight per category in the global average
	ErrorPolicy ErrorPolicy       // How error outcomes are counted
}

// CheckWeight returns the weight of a check, zero if unknown.
func (w WeightTable) CheckWeight(checkID string) uint {
	return w.Checks[checkID]
}

// CategoryWeight returns the weight of a category, zero if unknown.
func (w WeightTable) CategoryWeight(c Category) uint {
	return w.Categories[c]
}

// Snapshot is an immutable historical record of a report and its score.
type Snapshot struct {
	RepositoryID string    `json:"repository_id"`
	Report       Report    `json:"report"`
	Score        Score     `json:"score"`
	CreatedAt    time.Time `json:"created_at"`
}

// StoredScore is the last score persisted for a repository.
type StoredScore struct {
	Score           Score     `json:"score"`
	ChecksetVersion string    `json:"checkset_version"`
	Commit          string    `json:"commit"`
	UpdatedAt       time.Time `json:"updated_at"`
	LastCheckedAt   time.Time `json:"last_checked_at"`
}

// ReportRecord is the current report of a repository as persisted by the store.
type ReportRecord struct {
	RepositoryID  string    `json:"repository_id"`
	Report        Report    `json:"report"`
	Score         Score     `json:"score"`
	UpdatedAt     time.Time `json:"updated_at"`
	LastCheckedAt time.Time `json:"last_checked_at"`
}
