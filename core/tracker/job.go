package tracker

import (
	"errors"
	"fmt"
	"time"

	"github.com/huangsam/repohealth/schema"
)

// StoreError is a persistence failure for one repository. It fails the job
// for the current sweep without retry; the previous report stays in place.
type StoreError struct {
	RepositoryID string
	Op           string
	Err          error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s %s: %v", e.Op, e.RepositoryID, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// errAborted marks an attempt cut short by shutdown.
var errAborted = errors.New("job aborted")

// job tracks one repository through the lifecycle state machine.
type job struct {
	repo     schema.Repository
	state    schema.JobState
	last     schema.JobState
	attempts int
	started  time.Time
}

func newJob(repo schema.Repository, now time.Time) *job {
	return &job{repo: repo, state: schema.JobPending, last: schema.JobPending, started: now}
}

// to moves the job to next. An illegal transition is a programming error.
func (j *job) to(next schema.JobState) {
	if err := j.state.ValidateTransition(next); err != nil {
		panic(fmt.Sprintf("%s: %v", j.repo.ID, err))
	}
	j.state = next
	if next != schema.JobPending && !next.Terminal() {
		j.last = next
	}
}

// requeue returns an in-flight job to pending. Jobs already persisted are
// left alone since their write is complete.
func (j *job) requeue() {
	if j.state.CanTransition(schema.JobPending) {
		j.to(schema.JobPending)
	}
}

func (j *job) outcome(now time.Time) schema.JobOutcome {
	return schema.JobOutcome{
		RepositoryID: j.repo.ID,
		State:        j.state,
		LastStage:    j.last,
		Attempts:     j.attempts,
		Duration:     now.Sub(j.started),
	}
}

// backoff returns the wait before retry number attempt, doubling from base
// and capped at limit.
func backoff(attempt int, base, limit time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if limit > 0 && d >= limit {
			return limit
		}
	}
	if limit > 0 && d > limit {
		return limit
	}
	return d
}
