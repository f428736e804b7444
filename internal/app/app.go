// Package app wires configuration, infrastructure and services for the api and
// worker binaries.
package app

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/kursadbilgin/content-reminders/internal/config"
	"github.com/kursadbilgin/content-reminders/internal/domain"
	"github.com/kursadbilgin/content-reminders/internal/infra/postgresql"
	"github.com/kursadbilgin/content-reminders/internal/infra/postgresql/migrations"
	infraredis "github.com/kursadbilgin/content-reminders/internal/infra/redis"
	"github.com/kursadbilgin/content-reminders/internal/media"
	"github.com/kursadbilgin/content-reminders/internal/observability"
	"github.com/kursadbilgin/content-reminders/internal/provider"
	"github.com/kursadbilgin/content-reminders/internal/queue"
	"github.com/kursadbilgin/content-reminders/internal/render"
	"github.com/kursadbilgin/content-reminders/internal/repository"
	"github.com/kursadbilgin/content-reminders/internal/service"
	"github.com/kursadbilgin/content-reminders/internal/trigger"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Infra holds the process-wide connections.
type Infra struct {
	DB     *gorm.DB
	SQL    *sql.DB
	Redis  *redis.Client
	Broker *queue.RabbitMQ
}

// OpenInfra connects to Postgres, Redis and RabbitMQ. Migrations run only when
// migrate is set so that a single process owns the schema.
func OpenInfra(cfg *config.Config, migrate bool, logger *zap.Logger) (*Infra, error) {
	db, err := postgresql.NewPostgres(cfg.DatabaseDSN, postgresql.PoolConfig{})
	if err != nil {
		return nil, fmt.Errorf("postgres initialization failed: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("postgres underlying db init failed: %w", err)
	}

	if migrate {
		if err := migrations.Migrate(db); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("database migrations failed: %w", err)
		}
		logger.Info("database migrations applied")
	}

	rdb, err := infraredis.NewRedis(cfg.RedisURL)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("redis initialization failed: %w", err)
	}

	broker, err := queue.NewRabbitMQ(cfg.RabbitMQURL)
	if err != nil {
		_ = rdb.Close()
		_ = sqlDB.Close()
		return nil, fmt.Errorf("rabbitmq initialization failed: %w", err)
	}

	return &Infra{DB: db, SQL: sqlDB, Redis: rdb, Broker: broker}, nil
}

func (i *Infra) Close() error {
	if i == nil {
		return nil
	}
	return errors.Join(i.Broker.Close(), i.Redis.Close(), i.SQL.Close())
}

// NewMailer builds the configured email transport.
func NewMailer(cfg *config.Config) (provider.Mailer, error) {
	switch cfg.EmailTransport {
	case config.EmailTransportSMTP:
		mailer, err := provider.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword)
		if err != nil {
			return nil, err
		}
		return mailer, nil
	case config.EmailTransportResend, "":
		mailer, err := provider.NewResendMailer(cfg.ResendAPIURL, cfg.ResendAPIKey)
		if err != nil {
			return nil, err
		}
		return mailer, nil
	default:
		return nil, fmt.Errorf("unsupported email transport %q", cfg.EmailTransport)
	}
}

// Repositories groups the gorm-backed stores.
type Repositories struct {
	Items         *repository.GormContentItemRepo
	Users         *repository.GormUserRepo
	Notifications *repository.GormNotificationRepo
	Attempts      *repository.GormAttemptRepo
	Runs          *repository.GormJobRunRepo
}

func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Items:         repository.NewGormContentItemRepo(db),
		Users:         repository.NewGormUserRepo(db),
		Notifications: repository.NewGormNotificationRepo(db),
		Attempts:      repository.NewGormAttemptRepo(db),
		Runs:          repository.NewGormJobRunRepo(db),
	}
}

// Services is the set of core components shared by both binaries.
type Services struct {
	Repos         *Repositories
	Triggers      trigger.Store
	Publisher     *queue.RabbitMQPublisher
	Scheduler     *service.ReminderScheduler
	Dispatcher    *service.Dispatcher
	Overdue       *service.OverdueSweeper
	Digest        *service.DigestJob
	Notifications *service.NotificationService
	EmailEvents   *service.EmailEventRecorder
}

func NewServices(cfg *config.Config, infra *Infra, metrics *observability.Metrics, logger *zap.Logger) (*Services, error) {
	repos := NewRepositories(infra.DB)

	triggers, err := infraredis.NewRedisTriggerStore(infra.Redis, "")
	if err != nil {
		return nil, fmt.Errorf("trigger store init failed: %w", err)
	}

	limiter, err := infraredis.NewRedisRateLimiter(infra.Redis, cfg.RateLimitPerSec)
	if err != nil {
		return nil, fmt.Errorf("rate limiter init failed: %w", err)
	}

	mailer, err := NewMailer(cfg)
	if err != nil {
		return nil, fmt.Errorf("email transport init failed: %w", err)
	}

	renderer, err := render.NewRenderer(cfg.AppURL)
	if err != nil {
		return nil, fmt.Errorf("renderer init failed: %w", err)
	}

	resolver, err := media.NewURLResolver(cfg.MediaBaseURL)
	if err != nil {
		return nil, fmt.Errorf("media resolver init failed: %w", err)
	}

	publisher := queue.NewRabbitMQPublisher(infra.Broker)

	scheduler := service.NewReminderScheduler(repos.Items, repos.Users, repos.Notifications, triggers, logger)
	scheduler.SetMetrics(metrics)

	dispatcher, err := service.NewDispatcher(
		repos.Notifications,
		repos.Items,
		repos.Users,
		repos.Attempts,
		mailer,
		renderer,
		resolver,
		limiter,
		service.DispatcherConfig{From: cfg.EmailFrom, ClaimLease: cfg.DispatchLease},
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("dispatcher init failed: %w", err)
	}
	dispatcher.SetMetrics(metrics)

	policy, err := domain.ParseOverduePolicyFromString(cfg.OverduePolicy)
	if err != nil {
		return nil, err
	}
	overdue, err := service.NewOverdueSweeper(repos.Items, repos.Users, repos.Notifications, repos.Runs, dispatcher, policy, logger)
	if err != nil {
		return nil, fmt.Errorf("overdue sweeper init failed: %w", err)
	}
	overdue.SetMetrics(metrics)

	digest, err := service.NewDigestJob(repos.Items, repos.Users, repos.Notifications, repos.Runs, triggers, cfg.DigestGrace, logger)
	if err != nil {
		return nil, fmt.Errorf("digest job init failed: %w", err)
	}
	digest.SetMetrics(metrics)

	notifications, err := service.NewNotificationService(repos.Notifications, repos.Attempts, publisher, logger)
	if err != nil {
		return nil, fmt.Errorf("notification service init failed: %w", err)
	}
	notifications.SetMetrics(metrics)

	events := service.NewEmailEventRecorder(logger)
	events.SetMetrics(metrics)

	return &Services{
		Repos:         repos,
		Triggers:      triggers,
		Publisher:     publisher,
		Scheduler:     scheduler,
		Dispatcher:    dispatcher,
		Overdue:       overdue,
		Digest:        digest,
		Notifications: notifications,
		EmailEvents:   events,
	}, nil
}
