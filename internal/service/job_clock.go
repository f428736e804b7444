package service

import (
	"context"
	"fmt"
	"time"

	"github.com/kursadbilgin/content-reminders/internal/domain"
	"go.uber.org/zap"
)

const defaultOverdueInterval = time.Hour

// OverdueChecker is the entry point of the overdue sweep.
type OverdueChecker interface {
	CheckOverdue(ctx context.Context) (*domain.JobRun, error)
}

// DigestFanOut is the entry point of the daily digest job.
type DigestFanOut interface {
	SendDailyReminders(ctx context.Context) (*domain.JobRun, error)
}

// JobClock is the in-process external clock: the overdue sweep every interval
// and the digest fan-out once a day at a fixed UTC time. Deployments driving the
// job endpoints from cron leave it disabled.
type JobClock struct {
	overdue         OverdueChecker
	digest          DigestFanOut
	overdueInterval time.Duration
	digestAt        domain.Clock
	logger          *zap.Logger
	now             func() time.Time
}

func NewJobClock(
	overdue OverdueChecker,
	digest DigestFanOut,
	overdueInterval time.Duration,
	digestAt domain.Clock,
	logger *zap.Logger,
) (*JobClock, error) {
	if overdue == nil {
		return nil, fmt.Errorf("overdue checker is required")
	}
	if digest == nil {
		return nil, fmt.Errorf("digest fan-out is required")
	}
	if overdueInterval <= 0 {
		overdueInterval = defaultOverdueInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &JobClock{
		overdue:         overdue,
		digest:          digest,
		overdueInterval: overdueInterval,
		digestAt:        digestAt,
		logger:          logger,
		now:             time.Now,
	}, nil
}

func (c *JobClock) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	ticker := time.NewTicker(c.overdueInterval)
	defer ticker.Stop()

	digestTimer := time.NewTimer(c.untilNextDigest())
	defer digestTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.runOverdue(ctx)
		case <-digestTimer.C:
			c.runDigest(ctx)
			digestTimer.Reset(c.untilNextDigest())
		}
	}
}

func (c *JobClock) untilNextDigest() time.Duration {
	now := c.now().UTC()
	next := c.digestAt.NextOccurrence(now, time.UTC)
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next.Sub(now)
}

func (c *JobClock) runOverdue(ctx context.Context) {
	run, err := c.overdue.CheckOverdue(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		c.logger.Error("scheduled overdue sweep failed", zap.Error(err))
		return
	}
	c.logger.Debug("scheduled overdue sweep done", zap.String("jobRunId", run.ID))
}

func (c *JobClock) runDigest(ctx context.Context) {
	run, err := c.digest.SendDailyReminders(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		c.logger.Error("scheduled daily digest failed", zap.Error(err))
		return
	}
	c.logger.Debug("scheduled daily digest done", zap.String("jobRunId", run.ID))
}
