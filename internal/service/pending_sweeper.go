package service

import (
	"context"
	"fmt"
	"time"

	"github.com/kursadbilgin/content-reminders/internal/observability"
	"github.com/kursadbilgin/content-reminders/internal/queue"
	"github.com/kursadbilgin/content-reminders/internal/repository"
	"github.com/kursadbilgin/content-reminders/internal/trigger"
	"go.uber.org/zap"
)

const (
	defaultPendingSweepInterval = 5 * time.Minute
	defaultPendingSweepGrace    = 10 * time.Minute
	defaultPendingSweepLimit    = 100
	defaultMaxDeliveryAttempts  = 5
)

// PendingSweeper re-dispatches unsent records whose due instant passed a while
// ago without a live trigger. It recovers triggers lost to a Redis flush or a
// failed arm and retries transport failures a bounded number of times.
type PendingSweeper struct {
	notifications repository.NotificationRepository
	attempts      repository.AttemptRepository
	triggers      trigger.Store
	publisher     queue.Publisher
	logger        *zap.Logger
	metrics       *observability.Metrics
	interval      time.Duration
	grace         time.Duration
	limit         int
	maxAttempts   int
	now           func() time.Time
}

type PendingSweeperConfig struct {
	Interval    time.Duration
	Grace       time.Duration
	Limit       int
	MaxAttempts int
}

func NewPendingSweeper(
	notifications repository.NotificationRepository,
	attempts repository.AttemptRepository,
	triggers trigger.Store,
	publisher queue.Publisher,
	cfg PendingSweeperConfig,
	logger *zap.Logger,
) (*PendingSweeper, error) {
	if notifications == nil || attempts == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if triggers == nil {
		return nil, fmt.Errorf("trigger store is required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaultPendingSweepInterval
	}
	if cfg.Grace <= 0 {
		cfg.Grace = defaultPendingSweepGrace
	}
	if cfg.Limit <= 0 {
		cfg.Limit = defaultPendingSweepLimit
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxDeliveryAttempts
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &PendingSweeper{
		notifications: notifications,
		attempts:      attempts,
		triggers:      triggers,
		publisher:     publisher,
		logger:        logger,
		interval:      cfg.Interval,
		grace:         cfg.Grace,
		limit:         cfg.Limit,
		maxAttempts:   cfg.MaxAttempts,
		now:           time.Now,
	}, nil
}

func (s *PendingSweeper) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

func (s *PendingSweeper) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// Records stranded while the worker was down should not wait for the first tick.
	if _, err := s.sweep(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("pending sweep initial scan failed", zap.Error(err))
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.sweep(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.logger.Error("pending sweep failed", zap.Error(err))
			}
		}
	}
}

// sweep returns the number of records it re-published.
func (s *PendingSweeper) sweep(ctx context.Context) (int, error) {
	now := s.now().UTC()
	dueBefore := now.Add(-s.grace)

	published := 0
	offset := 0
	for {
		records, err := s.notifications.ListDueUnsent(ctx, dueBefore, offset, s.limit)
		if err != nil {
			return published, fmt.Errorf("failed to list stranded notifications: %w", err)
		}

		for i := range records {
			record := records[i]
			logger := s.logger.With(zap.String("notificationId", record.ID))

			if record.IsClaimed(now) {
				continue
			}

			armed, err := s.triggers.IsArmed(ctx, record.ID)
			if err != nil {
				logger.Error("failed to check trigger", zap.Error(err))
				continue
			}
			if armed {
				continue
			}

			count, err := s.attempts.CountByNotificationID(ctx, record.ID)
			if err != nil {
				logger.Error("failed to count delivery attempts", zap.Error(err))
				continue
			}
			if count >= int64(s.maxAttempts) {
				logger.Debug("delivery attempts exhausted, leaving notification unsent", zap.Int64("attempts", count))
				continue
			}

			msg := queue.NotificationMessage{
				NotificationID: record.ID,
				Kind:           record.Kind,
				Source:         queue.SourceSweep,
				CorrelationID:  record.ID,
			}
			if err := s.publisher.Publish(ctx, queue.DispatchQueue, msg); err != nil {
				logger.Error("failed to enqueue stranded notification", zap.Error(err))
				continue
			}
			published++
			s.metrics.IncRedispatchScheduled(string(queue.SourceSweep))
		}

		// Published records stay unsent until a worker gets to them, so the
		// offset advances past every row seen.
		if len(records) < s.limit {
			break
		}
		offset += len(records)
	}

	if published > 0 {
		s.logger.Info("stranded notifications re-dispatched", zap.Int("count", published))
	}
	return published, nil
}
