package service

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/kursadbilgin/content-reminders/internal/observability"
	"github.com/kursadbilgin/content-reminders/internal/queue"
	"github.com/kursadbilgin/content-reminders/internal/repository"
	"github.com/kursadbilgin/content-reminders/internal/trigger"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	minWorkerConcurrency = 1
	maxRetryDelay        = 60 * time.Second
	baseRetryDelay       = time.Second
	maxRetryJitterMillis = 250
)

// WorkerService consumes the dispatch queue and hands each message to the
// dispatcher.
type WorkerService struct {
	consumer    queue.Consumer
	dispatcher  NotificationDispatcher
	triggers    trigger.Store
	attempts    repository.AttemptRepository
	logger      *zap.Logger
	metrics     *observability.Metrics
	concurrency int
	now         func() time.Time
	randIntn    func(n int) int
}

func NewWorkerService(
	consumer queue.Consumer,
	dispatcher NotificationDispatcher,
	triggers trigger.Store,
	attempts repository.AttemptRepository,
	concurrency int,
	logger *zap.Logger,
) (*WorkerService, error) {
	if consumer == nil {
		return nil, fmt.Errorf("consumer is required")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if triggers == nil {
		return nil, fmt.Errorf("trigger store is required")
	}
	if attempts == nil {
		return nil, fmt.Errorf("attempt repository is required")
	}
	if concurrency < minWorkerConcurrency {
		concurrency = minWorkerConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &WorkerService{
		consumer:    consumer,
		dispatcher:  dispatcher,
		triggers:    triggers,
		attempts:    attempts,
		logger:      logger,
		concurrency: concurrency,
		now:         time.Now,
		randIntn:    rand.Intn,
	}, nil
}

func (s *WorkerService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// Start consumes the work queues until context cancellation.
func (s *WorkerService) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	queueNames := queue.WorkQueueNames()
	if len(queueNames) == 0 {
		return fmt.Errorf("no work queues configured")
	}

	g, groupCtx := errgroup.WithContext(ctx)
	for i := 0; i < s.concurrency; i++ {
		queueName := queueNames[i%len(queueNames)]
		workerID := i + 1

		g.Go(func() error {
			s.logger.Info("worker started",
				zap.Int("workerId", workerID),
				zap.String("queue", queueName),
			)

			err := s.consumer.Consume(groupCtx, queueName, s.processMessage)
			if err != nil {
				s.logger.Error("worker stopped with error",
					zap.Int("workerId", workerID),
					zap.String("queue", queueName),
					zap.Error(err),
				)
				return err
			}

			s.logger.Info("worker stopped",
				zap.Int("workerId", workerID),
				zap.String("queue", queueName),
			)
			return nil
		})
	}

	return g.Wait()
}

// processMessage acks everything the dispatcher resolved, including transport
// failures. Storage errors re-arm the trigger with backoff; only a failed re-arm
// is returned so the broker redelivers the message.
func (s *WorkerService) processMessage(ctx context.Context, msg queue.NotificationMessage) error {
	correlationID := msg.CorrelationID
	if correlationID == "" {
		correlationID = msg.NotificationID
	}
	ctx = observability.WithCorrelationID(ctx, correlationID)
	logger := observability.WithContextLogger(s.logger, ctx).With(
		zap.String("notificationId", msg.NotificationID),
		zap.String("source", string(msg.Source)),
	)

	s.metrics.IncWorkerInFlight()
	defer s.metrics.DecWorkerInFlight()

	result, err := s.dispatcher.Dispatch(ctx, msg.NotificationID)
	if err == nil {
		logger.Debug("dispatch finished", zap.String("outcome", string(result.Outcome)))
		if msg.Source != queue.SourceTrigger && result.Outcome.Finalised() {
			// A redispatched or swept record may still have its original trigger armed.
			if disarmErr := s.triggers.Disarm(ctx, msg.NotificationID); disarmErr != nil {
				logger.Warn("failed to disarm trigger", zap.Error(disarmErr))
			}
		}
		return nil
	}

	logger.Error("dispatch failed", zap.Error(err))

	attempts, countErr := s.attempts.CountByNotificationID(ctx, msg.NotificationID)
	if countErr != nil {
		logger.Warn("failed to count delivery attempts", zap.Error(countErr))
	}

	retryAt := s.now().UTC().Add(s.computeRetryDelay(int(attempts) + 1))
	if armErr := s.triggers.Arm(ctx, msg.NotificationID, retryAt); armErr != nil {
		return fmt.Errorf("failed to re-arm trigger after dispatch error: %w", armErr)
	}
	s.metrics.IncRedispatchScheduled("worker")
	return nil
}

func (s *WorkerService) computeRetryDelay(attemptNumber int) time.Duration {
	if attemptNumber < 1 {
		attemptNumber = 1
	}

	delay := baseRetryDelay
	for i := 1; i < attemptNumber; i++ {
		delay *= 2
		if delay >= maxRetryDelay {
			delay = maxRetryDelay
			break
		}
	}

	jitterMillis := 0
	if s.randIntn != nil && maxRetryJitterMillis > 0 {
		jitterMillis = s.randIntn(maxRetryJitterMillis + 1)
	}

	return delay + time.Duration(jitterMillis)*time.Millisecond
}
