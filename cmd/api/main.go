package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/kursadbilgin/content-reminders/internal/app"
	"github.com/kursadbilgin/content-reminders/internal/config"
	"github.com/kursadbilgin/content-reminders/internal/handler"
	"github.com/kursadbilgin/content-reminders/internal/observability"
	"github.com/kursadbilgin/content-reminders/internal/transport"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config: ", err)
	}

	logger, err := observability.NewLogger("content-reminders-api", cfg.LogLevel)
	if err != nil {
		log.Fatal("failed to initialize logger: ", err)
	}
	defer logger.Sync() //nolint:errcheck

	infra, err := app.OpenInfra(cfg, true, logger)
	if err != nil {
		logger.Fatal("infrastructure initialization failed", zap.Error(err))
	}
	defer infra.Close() //nolint:errcheck

	metrics := observability.NewMetrics()

	services, err := app.NewServices(cfg, infra, metrics, logger)
	if err != nil {
		logger.Fatal("service initialization failed", zap.Error(err))
	}

	server := fiber.New(fiber.Config{
		AppName:      "content-reminders",
		ErrorHandler: transport.ErrorHandler(logger),
	})
	server.Use(recover.New())
	server.Use(requestid.New())
	server.Use(metrics.HTTPMiddleware())

	server.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
	handler.RegisterHealthRoutes(server, infra.SQL, infra.Redis, infra.Broker)

	if err := handler.RegisterWebhookRoutes(server, services.Dispatcher, services.EmailEvents); err != nil {
		logger.Fatal("webhook routes registration failed", zap.Error(err))
	}
	if err := handler.RegisterScheduleRoutes(server, services.Scheduler); err != nil {
		logger.Fatal("schedule routes registration failed", zap.Error(err))
	}
	if err := handler.RegisterJobRoutes(server, services.Overdue, services.Digest); err != nil {
		logger.Fatal("job routes registration failed", zap.Error(err))
	}
	if err := handler.RegisterNotificationRoutes(server, services.Notifications); err != nil {
		logger.Fatal("notification routes registration failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Listen(fmt.Sprintf(":%d", cfg.APIPort))
	}()

	logger.Info("content-reminders api started", zap.Int("port", cfg.APIPort))

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Error("http server stopped", zap.Error(err))
		}
	}

	if err := server.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Error("http server shutdown failed", zap.Error(err))
	}
}
