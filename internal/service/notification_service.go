package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/kursadbilgin/content-reminders/internal/domain"
	"github.com/kursadbilgin/content-reminders/internal/observability"
	"github.com/kursadbilgin/content-reminders/internal/queue"
	"github.com/kursadbilgin/content-reminders/internal/repository"
	"go.uber.org/zap"
)

// NotificationService serves the read API and manual re-dispatch.
type NotificationService struct {
	notifications repository.NotificationRepository
	attempts      repository.AttemptRepository
	publisher     queue.Publisher
	logger        *zap.Logger
	metrics       *observability.Metrics
}

type NotificationDetails struct {
	Record   *domain.NotificationRecord
	Attempts []domain.DeliveryAttempt
}

func NewNotificationService(
	notifications repository.NotificationRepository,
	attempts repository.AttemptRepository,
	publisher queue.Publisher,
	logger *zap.Logger,
) (*NotificationService, error) {
	if notifications == nil || attempts == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &NotificationService{
		notifications: notifications,
		attempts:      attempts,
		publisher:     publisher,
		logger:        logger,
	}, nil
}

func (s *NotificationService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

func (s *NotificationService) GetByID(ctx context.Context, id string) (*NotificationDetails, error) {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: notification id is required", domain.ErrValidation)
	}

	record, err := s.notifications.GetByID(ctx, trimmed)
	if err != nil {
		return nil, err
	}

	attempts, err := s.attempts.GetByNotificationID(ctx, trimmed)
	if err != nil {
		return nil, fmt.Errorf("failed to load delivery attempts: %w", err)
	}

	return &NotificationDetails{Record: record, Attempts: attempts}, nil
}

func (s *NotificationService) List(
	ctx context.Context,
	params repository.ListParams,
) ([]domain.NotificationRecord, int64, error) {
	return s.notifications.List(ctx, params)
}

// Redispatch queues an unsent record for immediate delivery. The dispatcher's
// sent check keeps it at most once even if its trigger fires too.
func (s *NotificationService) Redispatch(ctx context.Context, id string) (*domain.NotificationRecord, error) {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: notification id is required", domain.ErrValidation)
	}

	record, err := s.notifications.GetByID(ctx, trimmed)
	if err != nil {
		return nil, err
	}
	if record.Sent {
		return nil, fmt.Errorf("%w: notification %s was already sent", domain.ErrConflict, record.ID)
	}

	correlationID, ok := observability.CorrelationIDFromContext(ctx)
	if !ok {
		correlationID = record.ID
	}

	msg := queue.NotificationMessage{
		NotificationID: record.ID,
		Kind:           record.Kind,
		Source:         queue.SourceRedispatch,
		CorrelationID:  correlationID,
	}
	if err := s.publisher.Publish(ctx, queue.DispatchQueue, msg); err != nil {
		return nil, fmt.Errorf("failed to publish notification: %w", err)
	}

	s.metrics.IncRedispatchScheduled(string(queue.SourceRedispatch))
	observability.WithContextLogger(s.logger, ctx).Info("notification queued for redispatch",
		zap.String("notificationId", record.ID),
	)
	return record, nil
}
