package domain

import (
	"fmt"
	"strings"
	"time"
)

// JobName identifies a periodic job entry point.
type JobName string

const (
	JobOverdueSweep JobName = "OVERDUE_SWEEP"
	JobDailyDigest  JobName = "DAILY_DIGEST"
)

func (j JobName) String() string { return string(j) }

func (j JobName) IsValid() bool {
	switch j {
	case JobOverdueSweep, JobDailyDigest:
		return true
	}
	return false
}

func ParseJobNameFromString(s string) (JobName, error) {
	j := JobName(strings.ToUpper(strings.TrimSpace(s)))
	if !j.IsValid() {
		return "", fmt.Errorf("%w: invalid job %q", ErrValidation, s)
	}
	return j, nil
}

// JobRunStatus represents the processing state of a job run.
type JobRunStatus string

const (
	JobRunStatusProcessing     JobRunStatus = "PROCESSING"
	JobRunStatusCompleted      JobRunStatus = "COMPLETED"
	JobRunStatusPartialFailure JobRunStatus = "PARTIAL_FAILURE"
)

func (s JobRunStatus) String() string { return string(s) }

func (s JobRunStatus) IsValid() bool {
	switch s {
	case JobRunStatusProcessing, JobRunStatusCompleted, JobRunStatusPartialFailure:
		return true
	}
	return false
}

// JobRun records one invocation of the overdue sweep or the daily digest fan-out.
type JobRun struct {
	ID          string
	Job         JobName
	TotalCount  int
	FailedCount int
	Status      JobRunStatus
	StartedAt   time.Time
	FinishedAt  *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Finish closes the run and derives its status from the failure count.
func (r *JobRun) Finish(total, failed int, at time.Time) {
	r.TotalCount = total
	r.FailedCount = failed
	r.Status = JobRunStatusCompleted
	if failed > 0 {
		r.Status = JobRunStatusPartialFailure
	}
	finished := at
	r.FinishedAt = &finished
}
