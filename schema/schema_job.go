package schema

import (
	"fmt"
	"time"
)

// JobState is a step of the per-repository job lifecycle.
type JobState string

// Job lifecycle states.
const (
	JobPending   JobState = "pending"
	JobFetching  JobState = "fetching"
	JobLinting   JobState = "linting"
	JobScoring   JobState = "scoring"
	JobComparing JobState = "comparing"
	JobStored    JobState = "stored"   // Unchanged score, last-checked updated
	JobArchived  JobState = "archived" // Changed score, report replaced and snapshot appended
	JobDone      JobState = "done"
	JobFailed    JobState = "failed"
)

// jobTransitions lists the legal next states of each state.
// Returning to pending from an in-flight state is a retry.
var jobTransitions = map[JobState][]JobState{
	JobPending:   {JobFetching, JobFailed},
	JobFetching:  {JobLinting, JobPending, JobFailed},
	JobLinting:   {JobScoring, JobPending, JobFailed},
	JobScoring:   {JobComparing, JobPending, JobFailed},
	JobComparing: {JobStored, JobArchived, JobPending, JobFailed},
	JobStored:    {JobDone, JobFailed},
	JobArchived:  {JobDone, JobFailed},
}

// Terminal reports whether no transition leaves the state.
func (s JobState) Terminal() bool {
	return s == JobDone || s == JobFailed
}

// CanTransition reports whether moving from s to next is legal.
func (s JobState) CanTransition(next JobState) bool {
	for _, allowed := range jobTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ValidateTransition returns an error for an illegal transition.
func (s JobState) ValidateTransition(next JobState) error {
	if !s.CanTransition(next) {
		return fmt.Errorf("illegal job transition %s -> %s", s, next)
	}
	return nil
}

// RunConfig controls one sweep over the population.
type RunConfig struct {
	Concurrency int           // Number of workers pulling from the queue
	Force       bool          // Archive a snapshot even when the score is unchanged
	RetryBudget int           // Retries allowed after the first attempt
	Timeout     time.Duration // Deadline for each network-bound step of an attempt
	GracePeriod time.Duration // Time in-flight jobs get to finish after cancellation
}

// JobOutcome is the final record of one repository job in a sweep.
type JobOutcome struct {
	RepositoryID string        `json:"repository_id"`
	State        JobState      `json:"state"`
	LastStage    JobState      `json:"last_stage"` // Furthest in-flight state reached
	Attempts     int           `json:"attempts"`
	Archived     bool          `json:"archived"`
	Score        *Score        `json:"score,omitempty"`
	Error        string        `json:"error,omitempty"`
	Duration     time.Duration `json:"duration"`
}

// SweepSummary aggregates the outcomes of a sweep.
type SweepSummary struct {
	RunID     string        `json:"run_id"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Total     int           `json:"total"`
	Done      int           `json:"done"`
	Archived  int           `json:"archived"`
	Failed    int           `json:"failed"`
	Pending   int           `json:"pending"`
}

// Summarize counts outcomes by final state.
func Summarize(outcomes []JobOutcome) SweepSummary {
	var s SweepSummary
	s.Total = len(outcomes)
	for _, o := range outcomes {
		switch o.State {
		case JobDone:
			s.Done++
			if o.Archived {
				s.Archived++
			}
		case JobFailed:
			s.Failed++
		default:
			s.Pending++
		}
	}
	return s
}
