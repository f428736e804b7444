package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/kursadbilgin/content-reminders/internal/domain"
	"github.com/kursadbilgin/content-reminders/internal/observability"
	"github.com/kursadbilgin/content-reminders/internal/provider"
	"go.uber.org/zap"
)

// EmailEventRecorder logs asynchronous delivery events. Records are not touched:
// sent means handed to the provider, not delivered.
type EmailEventRecorder struct {
	logger  *zap.Logger
	metrics *observability.Metrics
}

func NewEmailEventRecorder(logger *zap.Logger) *EmailEventRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailEventRecorder{logger: logger}
}

func (r *EmailEventRecorder) SetMetrics(metrics *observability.Metrics) {
	if r == nil {
		return
	}
	r.metrics = metrics
}

func (r *EmailEventRecorder) OnEmailEvent(ctx context.Context, event provider.EmailEvent) error {
	if err := event.Validate(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	fields := []zap.Field{
		zap.String("type", event.Type),
		zap.String("providerMessageId", event.Data.EmailID),
		zap.String("to", strings.Join(event.Data.To, ",")),
	}

	logger := observability.WithContextLogger(r.logger, ctx)
	if event.IsFailure() {
		logger.Warn("email delivery failed", fields...)
	} else {
		logger.Info("email event received", fields...)
	}

	r.metrics.IncEmailEvent(event.Type)
	return nil
}
