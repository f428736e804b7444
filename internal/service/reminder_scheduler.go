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
	"gorm.io/gorm"
)

const maxReplaceAttempts = 3

type ScheduleResult struct {
	Purged  int64
	Created []domain.NotificationRecord
}

// ReminderScheduler derives an item's Reminder and Published records from its
// schedule and arms a trigger for each.
type ReminderScheduler struct {
	items         repository.ContentItemRepository
	users         repository.UserRepository
	notifications repository.NotificationRepository
	triggers      trigger.Store
	logger        *zap.Logger
	metrics       *observability.Metrics
	now           func() time.Time
}

func NewReminderScheduler(
	items repository.ContentItemRepository,
	users repository.UserRepository,
	notifications repository.NotificationRepository,
	triggers trigger.Store,
	logger *zap.Logger,
) *ReminderScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ReminderScheduler{
		items:         items,
		users:         users,
		notifications: notifications,
		triggers:      triggers,
		logger:        logger,
		now:           time.Now,
	}
}

func (s *ReminderScheduler) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// ScheduleForItemID loads the item and schedules it. A non-empty actorID must
// own the item.
func (s *ReminderScheduler) ScheduleForItemID(ctx context.Context, itemID, actorID string) (*ScheduleResult, error) {
	id := strings.TrimSpace(itemID)
	if id == "" {
		return nil, fmt.Errorf("%w: content item id is required", domain.ErrValidation)
	}

	item, err := s.items.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if actor := strings.TrimSpace(actorID); actor != "" && actor != item.OwnerID {
		return nil, fmt.Errorf("%w: content item %s is not owned by %s", domain.ErrUnauthorized, item.ID, actor)
	}

	return s.ScheduleForItem(ctx, item)
}

// ScheduleForItem replaces the item's unsent Reminder and Published records with
// ones derived from its current state. Running it twice on the same state is a
// no-op in effect.
func (s *ReminderScheduler) ScheduleForItem(ctx context.Context, item *domain.ContentItem) (*ScheduleResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if item == nil || strings.TrimSpace(item.ID) == "" {
		return nil, fmt.Errorf("%w: content item is required", domain.ErrValidation)
	}

	logger := observability.WithContextLogger(s.logger, ctx).With(zap.String("contentItemId", item.ID))

	if !item.IsSchedulable() {
		purged, err := s.notifications.PurgePending(ctx, item.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to purge pending notifications: %w", err)
		}
		s.metrics.AddRecordsPurged(purged)
		logger.Debug("item not schedulable, pending notifications purged", zap.Int64("purged", purged))
		return &ScheduleResult{Purged: purged}, nil
	}

	user, err := s.users.GetByID(ctx, item.OwnerID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("failed to load owner: %w", err)
	}

	var records []*domain.NotificationRecord
	if _, ok := user.DeliverableEmail(); ok {
		records = s.buildRecords(item, userLocation(user))
	} else {
		logger.Debug("owner has no deliverable email, nothing scheduled")
	}

	purged, err := s.replacePending(ctx, item.ID, records)
	if err != nil {
		return nil, err
	}
	s.metrics.AddRecordsPurged(purged)

	result := &ScheduleResult{Purged: purged, Created: make([]domain.NotificationRecord, 0, len(records))}
	for _, record := range records {
		s.metrics.IncRecordCreated(record.Kind.String())
		result.Created = append(result.Created, *record)

		// Arm failures are recovered by the pending sweep.
		if err := s.triggers.Arm(ctx, record.ID, record.DueAt); err != nil {
			logger.Warn("failed to arm trigger",
				zap.String("notificationId", record.ID),
				zap.String("kind", record.Kind.String()),
				zap.Error(err),
			)
			continue
		}
		s.metrics.IncTriggerArmed(record.Kind.String())
	}

	logger.Info("item scheduled",
		zap.Int64("purged", purged),
		zap.Int("created", len(result.Created)),
	)
	return result, nil
}

func (s *ReminderScheduler) buildRecords(item *domain.ContentItem, loc *time.Location) []*domain.NotificationRecord {
	now := s.now().UTC()
	itemID := item.ID
	records := make([]*domain.NotificationRecord, 0, 2)

	if reminderAt := item.ReminderAt(); reminderAt.After(now) {
		records = append(records, &domain.NotificationRecord{
			ID:            uuid.NewString(),
			OwnerID:       item.OwnerID,
			ContentItemID: &itemID,
			Kind:          domain.KindReminder,
			Message:       render.ReminderMessage(*item, loc),
			DueAt:         reminderAt.UTC(),
			CreatedAt:     now,
			UpdatedAt:     now,
		})
	}

	// Published is created even when scheduledAt has passed; its trigger fires at once.
	records = append(records, &domain.NotificationRecord{
		ID:            uuid.NewString(),
		OwnerID:       item.OwnerID,
		ContentItemID: &itemID,
		Kind:          domain.KindPublished,
		Message:       render.PublishedMessage(*item, loc),
		DueAt:         item.ScheduledAt.UTC(),
		CreatedAt:     now,
		UpdatedAt:     now,
	})

	return records
}

// replacePending retries when a concurrent schedule of the same item won the
// unique index race; the retry purges what that schedule inserted.
func (s *ReminderScheduler) replacePending(
	ctx context.Context,
	itemID string,
	records []*domain.NotificationRecord,
) (int64, error) {
	var lastErr error
	for attempt := 1; attempt <= maxReplaceAttempts; attempt++ {
		purged, err := s.notifications.ReplacePending(ctx, itemID, records)
		if err == nil {
			return purged, nil
		}
		if !isUniqueViolationError(err) {
			return 0, fmt.Errorf("failed to replace pending notifications: %w", err)
		}
		lastErr = err
	}
	return 0, fmt.Errorf("%w: concurrent schedule of content item %s: %v", domain.ErrConflict, itemID, lastErr)
}

// ScheduleRelevantChange reports whether an item update touched a field that
// feeds the schedule. A nil before means the item was just created.
func ScheduleRelevantChange(before, after *domain.ContentItem) bool {
	if after == nil {
		return false
	}
	if before == nil {
		return true
	}

	return before.NotificationsEnabled != after.NotificationsEnabled ||
		!equalTimePtr(before.ScheduledAt, after.ScheduledAt) ||
		before.ReminderLeadHours != after.ReminderLeadHours ||
		before.DailyDigestTime != after.DailyDigestTime ||
		before.Status != after.Status
}

func equalTimePtr(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func userLocation(user *domain.User) *time.Location {
	if user == nil {
		return time.UTC
	}
	loc, err := user.Preferences.Location()
	if err != nil {
		return time.UTC
	}
	return loc
}

func isUniqueViolationError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}
