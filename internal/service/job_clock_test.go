package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kursadbilgin/content-reminders/internal/domain"
)

type countingJobs struct {
	overdue atomic.Int32
	digest  atomic.Int32
}

func (c *countingJobs) CheckOverdue(ctx context.Context) (*domain.JobRun, error) {
	c.overdue.Add(1)
	return &domain.JobRun{ID: "overdue"}, nil
}

func (c *countingJobs) SendDailyReminders(ctx context.Context) (*domain.JobRun, error) {
	c.digest.Add(1)
	return &domain.JobRun{ID: "digest"}, nil
}

func TestJobClockUntilNextDigest(t *testing.T) {
	t.Parallel()

	jobs := &countingJobs{}
	clock, err := NewJobClock(jobs, jobs, 0, domain.Clock{Hour: 9}, nil)
	if err != nil {
		t.Fatalf("NewJobClock() error = %v", err)
	}
	if clock.overdueInterval != defaultOverdueInterval {
		t.Fatalf("interval = %s, want %s", clock.overdueInterval, defaultOverdueInterval)
	}

	clock.now = func() time.Time { return time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC) }
	if got := clock.untilNextDigest(); got != time.Hour {
		t.Fatalf("untilNextDigest() = %s, want 1h", got)
	}

	clock.now = func() time.Time { return time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC) }
	if got := clock.untilNextDigest(); got != 24*time.Hour {
		t.Fatalf("untilNextDigest() at slot = %s, want 24h", got)
	}
}

func TestJobClockRunsOverdueOnTicker(t *testing.T) {
	t.Parallel()

	jobs := &countingJobs{}
	clock, err := NewJobClock(jobs, jobs, 10*time.Millisecond, domain.Clock{Hour: 9}, nil)
	if err != nil {
		t.Fatalf("NewJobClock() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- clock.Start(ctx)
	}()

	deadline := time.After(time.Second)
	for jobs.overdue.Load() < 2 {
		select {
		case <-deadline:
			t.Fatal("overdue sweep did not run on the ticker")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()

	if err := <-done; err != nil {
		t.Fatalf("Start() error = %v", err)
	}
}
