package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/content-reminders/internal/domain"
	"github.com/kursadbilgin/content-reminders/internal/observability"
	"github.com/kursadbilgin/content-reminders/internal/render"
	"github.com/kursadbilgin/content-reminders/internal/repository"
	"go.uber.org/zap"
)

const defaultSweepPageSize = 100

// OverdueSweeper raises an Overdue notification for every scheduled, opted-in
// item whose instant passed without being marked complete.
type OverdueSweeper struct {
	items         repository.ContentItemRepository
	users         repository.UserRepository
	notifications repository.NotificationRepository
	runs          repository.JobRunRepository
	dispatcher    NotificationDispatcher
	policy        domain.OverduePolicy
	pageSize      int
	logger        *zap.Logger
	metrics       *observability.Metrics
	now           func() time.Time
}

func NewOverdueSweeper(
	items repository.ContentItemRepository,
	users repository.UserRepository,
	notifications repository.NotificationRepository,
	runs repository.JobRunRepository,
	dispatcher NotificationDispatcher,
	policy domain.OverduePolicy,
	logger *zap.Logger,
) (*OverdueSweeper, error) {
	if items == nil || users == nil || notifications == nil || runs == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if policy == "" {
		policy = domain.OverduePolicyRepeat
	}
	if !policy.IsValid() {
		return nil, fmt.Errorf("%w: invalid overdue policy %q", domain.ErrValidation, policy)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &OverdueSweeper{
		items:         items,
		users:         users,
		notifications: notifications,
		runs:          runs,
		dispatcher:    dispatcher,
		policy:        policy,
		pageSize:      defaultSweepPageSize,
		logger:        logger,
		now:           time.Now,
	}, nil
}

func (s *OverdueSweeper) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// CheckOverdue runs one sweep. A failing item is logged and counted; it never
// stops the sweep.
func (s *OverdueSweeper) CheckOverdue(ctx context.Context) (*domain.JobRun, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	now := s.now().UTC()
	run := &domain.JobRun{
		ID:        uuid.NewString(),
		Job:       domain.JobOverdueSweep,
		Status:    domain.JobRunStatusProcessing,
		StartedAt: now,
	}
	if err := s.runs.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to create job run: %w", err)
	}

	logger := observability.WithContextLogger(s.logger, ctx).With(zap.String("jobRunId", run.ID))

	total, failed := 0, 0
	afterID := ""
	for {
		items, err := s.items.ListOverdue(ctx, now, afterID, s.pageSize)
		if err != nil {
			s.finish(ctx, run, total, failed+1, logger)
			return run, fmt.Errorf("failed to list overdue items: %w", err)
		}

		for i := range items {
			item := items[i]
			total++
			if err := s.raise(ctx, &item, now); err != nil {
				failed++
				logger.Error("failed to raise overdue notification",
					zap.String("contentItemId", item.ID),
					zap.Error(err),
				)
			}
		}

		if len(items) < s.pageSize {
			break
		}
		afterID = items[len(items)-1].ID
	}

	s.finish(ctx, run, total, failed, logger)
	return run, nil
}

func (s *OverdueSweeper) raise(ctx context.Context, item *domain.ContentItem, now time.Time) error {
	if s.policy == domain.OverduePolicyOnce {
		exists, err := s.notifications.ExistsByItemKindSince(ctx, item.ID, domain.KindOverdue, *item.ScheduledAt)
		if err != nil {
			return fmt.Errorf("failed to check previous overdue notification: %w", err)
		}
		if exists {
			return nil
		}
	}

	user, err := s.users.GetByID(ctx, item.OwnerID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("failed to load owner: %w", err)
	}
	if _, ok := user.DeliverableEmail(); !ok {
		return nil
	}

	itemID := item.ID
	record := &domain.NotificationRecord{
		ID:            uuid.NewString(),
		OwnerID:       item.OwnerID,
		ContentItemID: &itemID,
		Kind:          domain.KindOverdue,
		Message:       render.OverdueMessage(*item, userLocation(user)),
		DueAt:         now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.notifications.Create(ctx, record); err != nil {
		return fmt.Errorf("failed to create overdue notification: %w", err)
	}
	s.metrics.IncRecordCreated(record.Kind.String())

	result, err := s.dispatcher.Dispatch(ctx, record.ID)
	if err != nil {
		return fmt.Errorf("failed to dispatch overdue notification: %w", err)
	}
	if result.Outcome == OutcomeFailed || result.Outcome == OutcomeRenderFailed {
		return fmt.Errorf("overdue notification %s not delivered: %s", record.ID, result.Outcome)
	}
	return nil
}

func (s *OverdueSweeper) finish(ctx context.Context, run *domain.JobRun, total, failed int, logger *zap.Logger) {
	run.Finish(total, failed, s.now().UTC())
	if err := s.runs.Finish(ctx, run); err != nil {
		logger.Error("failed to finish job run", zap.Error(err))
	}
	s.metrics.IncJobRun(run.Job.String(), run.Status.String())

	logger.Info("overdue sweep finished",
		zap.Int("total", total),
		zap.Int("failed", failed),
		zap.String("status", run.Status.String()),
	)
}
