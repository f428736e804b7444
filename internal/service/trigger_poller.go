package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kursadbilgin/content-reminders/internal/domain"
	"github.com/kursadbilgin/content-reminders/internal/observability"
	"github.com/kursadbilgin/content-reminders/internal/queue"
	"github.com/kursadbilgin/content-reminders/internal/repository"
	"github.com/kursadbilgin/content-reminders/internal/trigger"
	"go.uber.org/zap"
)

const (
	defaultTriggerPollInterval = time.Second
	defaultTriggerBatchSize    = 100
	triggerRearmDelay          = 30 * time.Second
)

// TriggerPoller moves fired triggers onto the dispatch queue.
type TriggerPoller struct {
	triggers      trigger.Store
	notifications repository.NotificationRepository
	publisher     queue.Publisher
	logger        *zap.Logger
	metrics       *observability.Metrics
	interval      time.Duration
	batchSize     int
	now           func() time.Time
}

func NewTriggerPoller(
	triggers trigger.Store,
	notifications repository.NotificationRepository,
	publisher queue.Publisher,
	interval time.Duration,
	batchSize int,
	logger *zap.Logger,
) (*TriggerPoller, error) {
	if triggers == nil {
		return nil, fmt.Errorf("trigger store is required")
	}
	if notifications == nil {
		return nil, fmt.Errorf("notification repository is required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	if interval <= 0 {
		interval = defaultTriggerPollInterval
	}
	if batchSize <= 0 {
		batchSize = defaultTriggerBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &TriggerPoller{
		triggers:      triggers,
		notifications: notifications,
		publisher:     publisher,
		logger:        logger,
		interval:      interval,
		batchSize:     batchSize,
		now:           time.Now,
	}, nil
}

func (p *TriggerPoller) SetMetrics(metrics *observability.Metrics) {
	if p == nil {
		return
	}
	p.metrics = metrics
}

func (p *TriggerPoller) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if _, err := p.poll(ctx); err != nil && ctx.Err() == nil {
		p.logger.Error("trigger poller initial poll failed", zap.Error(err))
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := p.poll(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				p.logger.Error("trigger poll failed", zap.Error(err))
			}
		}
	}
}

// poll drains every due trigger and returns how many were fired.
func (p *TriggerPoller) poll(ctx context.Context) (int, error) {
	fired := 0
	for {
		ids, err := p.triggers.PopDue(ctx, p.now().UTC(), p.batchSize)
		if err != nil {
			return fired, fmt.Errorf("failed to pop due triggers: %w", err)
		}

		for _, id := range ids {
			if p.fire(ctx, id) {
				fired++
			}
		}
		p.metrics.AddTriggersFired(len(ids))

		if len(ids) < p.batchSize {
			return fired, nil
		}
	}
}

// fire publishes one popped trigger. A trigger that cannot be handed off is
// re-armed so the record is retried shortly.
func (p *TriggerPoller) fire(ctx context.Context, id string) bool {
	logger := p.logger.With(zap.String("notificationId", id))

	record, err := p.notifications.GetByID(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		// Purged by a reschedule.
		logger.Debug("trigger fired for missing notification, dropping")
		return false
	}
	if err != nil {
		logger.Error("failed to load notification for trigger", zap.Error(err))
		p.rearm(ctx, id, logger)
		return false
	}
	if record.Sent {
		return false
	}

	msg := queue.NotificationMessage{
		NotificationID: record.ID,
		Kind:           record.Kind,
		Source:         queue.SourceTrigger,
		CorrelationID:  record.ID,
	}
	if err := p.publisher.Publish(ctx, queue.DispatchQueue, msg); err != nil {
		logger.Error("failed to enqueue fired trigger", zap.Error(err))
		p.rearm(ctx, id, logger)
		return false
	}
	return true
}

func (p *TriggerPoller) rearm(ctx context.Context, id string, logger *zap.Logger) {
	if err := p.triggers.Arm(ctx, id, p.now().UTC().Add(triggerRearmDelay)); err != nil {
		logger.Error("failed to re-arm trigger, pending sweep will recover it", zap.Error(err))
	}
}
