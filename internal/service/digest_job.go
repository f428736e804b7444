package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/content-reminders/internal/domain"
	"github.com/kursadbilgin/content-reminders/internal/observability"
	"github.com/kursadbilgin/content-reminders/internal/render"
	"github.com/kursadbilgin/content-reminders/internal/repository"
	"github.com/kursadbilgin/content-reminders/internal/trigger"
	"go.uber.org/zap"
)

const (
	defaultDigestGrace = 5 * time.Minute
	digestWindow       = 24 * time.Hour
)

// DigestJob builds one DailyDigest record per opted-in user. It is driven by a
// single external daily trigger and never re-arms itself.
type DigestJob struct {
	items         repository.ContentItemRepository
	users         repository.UserRepository
	notifications repository.NotificationRepository
	runs          repository.JobRunRepository
	triggers      trigger.Store
	grace         time.Duration
	pageSize      int
	logger        *zap.Logger
	metrics       *observability.Metrics
	now           func() time.Time
}

func NewDigestJob(
	items repository.ContentItemRepository,
	users repository.UserRepository,
	notifications repository.NotificationRepository,
	runs repository.JobRunRepository,
	triggers trigger.Store,
	grace time.Duration,
	logger *zap.Logger,
) (*DigestJob, error) {
	if items == nil || users == nil || notifications == nil || runs == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if triggers == nil {
		return nil, fmt.Errorf("trigger store is required")
	}
	if grace < 0 {
		grace = defaultDigestGrace
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &DigestJob{
		items:         items,
		users:         users,
		notifications: notifications,
		runs:          runs,
		triggers:      triggers,
		grace:         grace,
		pageSize:      defaultSweepPageSize,
		logger:        logger,
		now:           time.Now,
	}, nil
}

func (j *DigestJob) SetMetrics(metrics *observability.Metrics) {
	if j == nil {
		return
	}
	j.metrics = metrics
}

// SendDailyReminders fans the digest out over every opted-in user.
func (j *DigestJob) SendDailyReminders(ctx context.Context) (*domain.JobRun, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	run := &domain.JobRun{
		ID:        uuid.NewString(),
		Job:       domain.JobDailyDigest,
		Status:    domain.JobRunStatusProcessing,
		StartedAt: j.now().UTC(),
	}
	if err := j.runs.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to create job run: %w", err)
	}

	logger := observability.WithContextLogger(j.logger, ctx).With(zap.String("jobRunId", run.ID))

	total, failed, created := 0, 0, 0
	afterID := ""
	for {
		users, err := j.users.ListDigestRecipients(ctx, afterID, j.pageSize)
		if err != nil {
			j.finish(ctx, run, total, failed+1, created, logger)
			return run, fmt.Errorf("failed to list digest recipients: %w", err)
		}

		for i := range users {
			total++
			record, err := j.SendDailyDigest(ctx, users[i].ID)
			if err != nil {
				failed++
				logger.Error("failed to build daily digest",
					zap.String("userId", users[i].ID),
					zap.Error(err),
				)
				continue
			}
			if record != nil {
				created++
			}
		}

		if len(users) < j.pageSize {
			break
		}
		afterID = users[len(users)-1].ID
	}

	j.finish(ctx, run, total, failed, created, logger)
	return run, nil
}

// SendDailyDigest creates the user's digest record due at the next occurrence of
// their preferred local time. It returns nil when there is nothing to send or the
// digest for that instant already exists.
func (j *DigestJob) SendDailyDigest(ctx context.Context, userID string) (*domain.NotificationRecord, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	id := strings.TrimSpace(userID)
	if id == "" {
		return nil, fmt.Errorf("%w: user id is required", domain.ErrValidation)
	}

	user, err := j.users.GetByID(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if _, ok := user.DeliverableEmail(); !ok || !user.Preferences.DailyDigest {
		return nil, nil
	}

	now := j.now().UTC()
	windowEnd := now.Add(digestWindow)
	scheduled, err := j.items.Query(ctx, user.ID, repository.ItemFilter{
		Statuses:        []domain.ContentStatus{domain.ContentStatusScheduled},
		ScheduledFrom:   &now,
		ScheduledBefore: &windowEnd,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query scheduled items: %w", err)
	}
	ideas, err := j.items.Query(ctx, user.ID, repository.ItemFilter{
		Statuses: []domain.ContentStatus{domain.ContentStatusIdea},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query ideas: %w", err)
	}
	if len(scheduled) == 0 && len(ideas) == 0 {
		return nil, nil
	}

	loc := userLocation(user)
	clock := digestClock(user, scheduled, ideas)
	// The grace keeps a fan-out that runs a few minutes late on today's slot.
	dueAt := clock.NextOccurrence(now.Add(-j.grace), loc).UTC()

	exists, err := j.notifications.ExistsByOwnerKindDueAt(ctx, user.ID, domain.KindDailyDigest, dueAt)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing digest: %w", err)
	}
	if exists {
		return nil, nil
	}

	representative := representativeItem(scheduled, ideas)
	record := &domain.NotificationRecord{
		ID:            uuid.NewString(),
		OwnerID:       user.ID,
		ContentItemID: &representative,
		Kind:          domain.KindDailyDigest,
		Message:       render.DigestMessage(scheduled, ideas, loc),
		DueAt:         dueAt,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := j.notifications.Create(ctx, record); err != nil {
		if isUniqueViolationError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to create digest notification: %w", err)
	}
	j.metrics.IncRecordCreated(record.Kind.String())

	if err := j.triggers.Arm(ctx, record.ID, record.DueAt); err != nil {
		j.logger.Warn("failed to arm digest trigger",
			zap.String("notificationId", record.ID),
			zap.Error(err),
		)
		return record, nil
	}
	j.metrics.IncTriggerArmed(record.Kind.String())

	return record, nil
}

func (j *DigestJob) finish(ctx context.Context, run *domain.JobRun, total, failed, created int, logger *zap.Logger) {
	run.Finish(total, failed, j.now().UTC())
	if err := j.runs.Finish(ctx, run); err != nil {
		logger.Error("failed to finish job run", zap.Error(err))
	}
	j.metrics.IncJobRun(run.Job.String(), run.Status.String())

	logger.Info("daily digest fan-out finished",
		zap.Int("total", total),
		zap.Int("failed", failed),
		zap.Int("created", created),
		zap.String("status", run.Status.String()),
	)
}

// digestClock prefers the user's own setting, then the first item's.
func digestClock(user *domain.User, scheduled, ideas []domain.ContentItem) domain.Clock {
	if clock, err := domain.ParseClock(user.Preferences.DigestTime); err == nil {
		return clock
	}
	if len(scheduled) > 0 {
		return scheduled[0].DigestClock()
	}
	if len(ideas) > 0 {
		return ideas[0].DigestClock()
	}
	return domain.DefaultDigestClock()
}

func representativeItem(scheduled, ideas []domain.ContentItem) string {
	if len(scheduled) > 0 {
		return scheduled[0].ID
	}
	return ideas[0].ID
}
