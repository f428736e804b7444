package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/kursadbilgin/content-reminders/internal/domain"
)

const (
	EmailTransportResend = "resend"
	EmailTransportSMTP   = "smtp"
)

type Config struct {
	DatabaseDSN string `env:"DATABASE_DSN,required=true"`
	RabbitMQURL string `env:"RABBITMQ_URL,required=true"`
	RedisURL    string `env:"REDIS_URL,required=true"`
	EmailFrom   string `env:"EMAIL_FROM,required=true"`

	EmailTransport string `env:"EMAIL_TRANSPORT,default=resend"`
	ResendAPIKey   string `env:"RESEND_API_KEY"`
	ResendAPIURL   string `env:"RESEND_API_URL,default=https://api.resend.com"`
	SMTPHost       string `env:"SMTP_HOST"`
	SMTPPort       int    `env:"SMTP_PORT,default=587"`
	SMTPUsername   string `env:"SMTP_USERNAME"`
	SMTPPassword   string `env:"SMTP_PASSWORD"`

	MediaBaseURL string `env:"MEDIA_BASE_URL"`
	AppURL       string `env:"APP_URL,default=http://localhost:3000"`

	RateLimitPerSec   int    `env:"RATE_LIMIT_PER_SEC,default=10"`
	WorkerConcurrency int    `env:"WORKER_CONCURRENCY,default=8"`
	APIPort           int    `env:"API_PORT,default=8080"`
	WorkerPort        int    `env:"WORKER_PORT,default=8081"`
	LogLevel          string `env:"LOG_LEVEL,default=info"`

	TriggerPollInterval time.Duration `env:"TRIGGER_POLL_INTERVAL,default=1s"`
	OverdueInterval     time.Duration `env:"OVERDUE_INTERVAL,default=1h"`
	DigestAtUTC         string        `env:"DIGEST_AT_UTC,default=06:00"`
	DigestGrace         time.Duration `env:"DIGEST_GRACE,default=5m"`
	OverduePolicy       string        `env:"OVERDUE_POLICY,default=repeat"`
	InProcessClock      bool          `env:"IN_PROCESS_CLOCK,default=true"`

	PendingSweepEnabled  bool          `env:"PENDING_SWEEP_ENABLED,default=false"`
	PendingSweepInterval time.Duration `env:"PENDING_SWEEP_INTERVAL,default=5m"`
	PendingSweepGrace    time.Duration `env:"PENDING_SWEEP_GRACE,default=10m"`
	DispatchLease        time.Duration `env:"DISPATCH_LEASE,default=2m"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values go-env accepts syntactically but the services cannot run with.
func (c *Config) Validate() error {
	c.EmailTransport = strings.ToLower(strings.TrimSpace(c.EmailTransport))
	switch c.EmailTransport {
	case EmailTransportResend:
		if strings.TrimSpace(c.ResendAPIKey) == "" {
			return fmt.Errorf("RESEND_API_KEY is required when EMAIL_TRANSPORT=resend")
		}
		if err := validateURL("RESEND_API_URL", c.ResendAPIURL); err != nil {
			return err
		}
	case EmailTransportSMTP:
		if strings.TrimSpace(c.SMTPHost) == "" {
			return fmt.Errorf("SMTP_HOST is required when EMAIL_TRANSPORT=smtp")
		}
		if c.SMTPPort < 1 || c.SMTPPort > 65535 {
			return fmt.Errorf("SMTP_PORT must be between 1 and 65535")
		}
	default:
		return fmt.Errorf("EMAIL_TRANSPORT must be %q or %q, got %q", EmailTransportResend, EmailTransportSMTP, c.EmailTransport)
	}

	if _, err := domain.ParseOverduePolicyFromString(c.OverduePolicy); err != nil {
		return fmt.Errorf("OVERDUE_POLICY: %w", err)
	}
	if _, err := domain.ParseClock(c.DigestAtUTC); err != nil {
		return fmt.Errorf("DIGEST_AT_UTC: %w", err)
	}

	if err := validateURL("APP_URL", c.AppURL); err != nil {
		return err
	}
	if strings.TrimSpace(c.MediaBaseURL) != "" {
		if err := validateURL("MEDIA_BASE_URL", c.MediaBaseURL); err != nil {
			return err
		}
	}

	if c.RateLimitPerSec < 1 {
		return fmt.Errorf("RATE_LIMIT_PER_SEC must be positive")
	}
	if c.WorkerConcurrency < 1 {
		return fmt.Errorf("WORKER_CONCURRENCY must be positive")
	}

	durations := []struct {
		name  string
		value time.Duration
	}{
		{"TRIGGER_POLL_INTERVAL", c.TriggerPollInterval},
		{"OVERDUE_INTERVAL", c.OverdueInterval},
		{"PENDING_SWEEP_INTERVAL", c.PendingSweepInterval},
		{"DISPATCH_LEASE", c.DispatchLease},
	}
	for _, d := range durations {
		if d.value <= 0 {
			return fmt.Errorf("%s must be positive", d.name)
		}
	}
	if c.DigestGrace < 0 || c.PendingSweepGrace < 0 {
		return fmt.Errorf("DIGEST_GRACE and PENDING_SWEEP_GRACE must not be negative")
	}

	return nil
}

// DigestClock returns the parsed DIGEST_AT_UTC. Call after Validate.
func (c *Config) DigestClock() domain.Clock {
	clock, err := domain.ParseClock(c.DigestAtUTC)
	if err != nil {
		return domain.DefaultDigestClock()
	}
	return clock
}

func validateURL(name, raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s must be an absolute URL", name)
	}
	return nil
}
