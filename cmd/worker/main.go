package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/kursadbilgin/content-reminders/internal/app"
	"github.com/kursadbilgin/content-reminders/internal/config"
	"github.com/kursadbilgin/content-reminders/internal/handler"
	"github.com/kursadbilgin/content-reminders/internal/observability"
	"github.com/kursadbilgin/content-reminders/internal/queue"
	"github.com/kursadbilgin/content-reminders/internal/service"
	"github.com/kursadbilgin/content-reminders/internal/transport"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	triggerBatchSize = 100
	shutdownTimeout  = 10 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config: ", err)
	}

	logger, err := observability.NewLogger("content-reminders-worker", cfg.LogLevel)
	if err != nil {
		log.Fatal("failed to initialize logger: ", err)
	}
	defer logger.Sync() //nolint:errcheck

	infra, err := app.OpenInfra(cfg, false, logger)
	if err != nil {
		logger.Fatal("infrastructure initialization failed", zap.Error(err))
	}
	defer infra.Close() //nolint:errcheck

	metrics := observability.NewMetrics()

	services, err := app.NewServices(cfg, infra, metrics, logger)
	if err != nil {
		logger.Fatal("service initialization failed", zap.Error(err))
	}

	consumer := queue.NewRabbitMQConsumer(infra.Broker, cfg.WorkerConcurrency, logger)
	defer consumer.Close() //nolint:errcheck

	worker, err := service.NewWorkerService(
		consumer,
		services.Dispatcher,
		services.Triggers,
		services.Repos.Attempts,
		cfg.WorkerConcurrency,
		logger,
	)
	if err != nil {
		logger.Fatal("worker service init failed", zap.Error(err))
	}
	worker.SetMetrics(metrics)

	poller, err := service.NewTriggerPoller(
		services.Triggers,
		services.Repos.Notifications,
		services.Publisher,
		cfg.TriggerPollInterval,
		triggerBatchSize,
		logger,
	)
	if err != nil {
		logger.Fatal("trigger poller init failed", zap.Error(err))
	}
	poller.SetMetrics(metrics)

	ops := fiber.New(fiber.Config{
		AppName:               "content-reminders-worker",
		ErrorHandler:          transport.ErrorHandler(logger),
		DisableStartupMessage: true,
	})
	ops.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
	handler.RegisterHealthRoutes(ops, infra.SQL, infra.Redis, infra.Broker)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, groupCtx := errgroup.WithContext(ctx)

	g.Go(func() error { return worker.Start(groupCtx) })
	g.Go(func() error { return poller.Start(groupCtx) })

	if cfg.PendingSweepEnabled {
		sweeper, err := service.NewPendingSweeper(
			services.Repos.Notifications,
			services.Repos.Attempts,
			services.Triggers,
			services.Publisher,
			service.PendingSweeperConfig{
				Interval: cfg.PendingSweepInterval,
				Grace:    cfg.PendingSweepGrace,
			},
			logger,
		)
		if err != nil {
			logger.Fatal("pending sweeper init failed", zap.Error(err))
		}
		sweeper.SetMetrics(metrics)
		g.Go(func() error { return sweeper.Start(groupCtx) })
	}

	if cfg.InProcessClock {
		clock, err := service.NewJobClock(services.Overdue, services.Digest, cfg.OverdueInterval, cfg.DigestClock(), logger)
		if err != nil {
			logger.Fatal("job clock init failed", zap.Error(err))
		}
		g.Go(func() error { return clock.Start(groupCtx) })
	}

	g.Go(func() error {
		return ops.Listen(fmt.Sprintf(":%d", cfg.WorkerPort))
	})
	g.Go(func() error {
		<-groupCtx.Done()
		return ops.ShutdownWithTimeout(shutdownTimeout)
	})

	logger.Info("content-reminders worker started",
		zap.Int("concurrency", cfg.WorkerConcurrency),
		zap.Bool("pendingSweep", cfg.PendingSweepEnabled),
		zap.Bool("inProcessClock", cfg.InProcessClock),
	)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped with error", zap.Error(err))
		return
	}
	logger.Info("worker stopped")
}
