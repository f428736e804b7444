package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/content-reminders/internal/domain"
	"github.com/kursadbilgin/content-reminders/internal/media"
	"github.com/kursadbilgin/content-reminders/internal/observability"
	"github.com/kursadbilgin/content-reminders/internal/provider"
	"github.com/kursadbilgin/content-reminders/internal/ratelimit"
	"github.com/kursadbilgin/content-reminders/internal/render"
	"github.com/kursadbilgin/content-reminders/internal/repository"
	"go.uber.org/zap"
)

const defaultClaimLease = 2 * time.Minute

// DispatchOutcome says what a dispatch did with the record.
type DispatchOutcome string

const (
	// OutcomeSkipped: the record is absent, already sent or held by another dispatch.
	OutcomeSkipped DispatchOutcome = "skipped"
	// OutcomeUndeliverable: the owner has no email; the record was finalised unsent.
	OutcomeUndeliverable DispatchOutcome = "undeliverable"
	// OutcomeOrphaned: the item the record points at no longer exists; finalised.
	OutcomeOrphaned  DispatchOutcome = "orphaned"
	OutcomeDelivered DispatchOutcome = "delivered"
	// OutcomeFailed: the transport rejected the message; the record stays unsent.
	OutcomeFailed       DispatchOutcome = "failed"
	OutcomeRenderFailed DispatchOutcome = "render_failed"
)

// Finalised reports whether the record is now sent, by delivery or by giving up.
func (o DispatchOutcome) Finalised() bool {
	switch o {
	case OutcomeDelivered, OutcomeUndeliverable, OutcomeOrphaned:
		return true
	}
	return false
}

type DispatchResult struct {
	NotificationID    string
	Kind              domain.Kind
	Outcome           DispatchOutcome
	Transient         bool
	ProviderMessageID string
}

// NotificationDispatcher sends a single notification record.
type NotificationDispatcher interface {
	Dispatch(ctx context.Context, notificationID string) (*DispatchResult, error)
}

// Dispatcher delivers a notification record by email at most once. Transport
// failures leave the record unsent and are reported through the result; only
// storage and rate limiter failures are returned as errors.
type Dispatcher struct {
	notifications repository.NotificationRepository
	items         repository.ContentItemRepository
	users         repository.UserRepository
	attempts      repository.AttemptRepository
	mailer        provider.Mailer
	renderer      *render.Renderer
	media         media.Resolver
	rateLimiter   ratelimit.RateLimiter
	from          string
	lease         time.Duration
	logger        *zap.Logger
	metrics       *observability.Metrics
	now           func() time.Time
}

type DispatcherConfig struct {
	From       string
	ClaimLease time.Duration
}

func NewDispatcher(
	notifications repository.NotificationRepository,
	items repository.ContentItemRepository,
	users repository.UserRepository,
	attempts repository.AttemptRepository,
	mailer provider.Mailer,
	renderer *render.Renderer,
	resolver media.Resolver,
	rateLimiter ratelimit.RateLimiter,
	cfg DispatcherConfig,
	logger *zap.Logger,
) (*Dispatcher, error) {
	if notifications == nil || items == nil || users == nil || attempts == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if mailer == nil {
		return nil, fmt.Errorf("mailer is required")
	}
	if renderer == nil {
		return nil, fmt.Errorf("renderer is required")
	}
	if strings.TrimSpace(cfg.From) == "" {
		return nil, fmt.Errorf("from address is required")
	}
	if resolver == nil {
		resolver = &media.URLResolver{}
	}
	if cfg.ClaimLease <= 0 {
		cfg.ClaimLease = defaultClaimLease
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Dispatcher{
		notifications: notifications,
		items:         items,
		users:         users,
		attempts:      attempts,
		mailer:        mailer,
		renderer:      renderer,
		media:         resolver,
		rateLimiter:   rateLimiter,
		from:          strings.TrimSpace(cfg.From),
		lease:         cfg.ClaimLease,
		logger:        logger,
		now:           time.Now,
	}, nil
}

func (d *Dispatcher) SetMetrics(metrics *observability.Metrics) {
	if d == nil {
		return
	}
	d.metrics = metrics
}

func (d *Dispatcher) Dispatch(ctx context.Context, notificationID string) (*DispatchResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	id := strings.TrimSpace(notificationID)
	if id == "" {
		return nil, fmt.Errorf("%w: notification id is required", domain.ErrValidation)
	}

	logger := observability.WithContextLogger(d.logger, ctx).With(zap.String("notificationId", id))
	result := &DispatchResult{NotificationID: id, Outcome: OutcomeSkipped}

	record, err := d.notifications.ClaimForDispatch(ctx, id, d.now().UTC(), d.lease)
	if errors.Is(err, domain.ErrNotFound) {
		logger.Info("notification not found, skipping dispatch")
		return result, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim notification: %w", err)
	}
	if record == nil {
		logger.Debug("notification already sent or claimed, skipping dispatch")
		return result, nil
	}

	result.Kind = record.Kind
	logger = logger.With(zap.String("kind", record.Kind.String()))

	outcome, err := d.deliver(ctx, record, result, logger)
	if err != nil {
		d.release(ctx, record.ID, logger)
		return nil, err
	}
	result.Outcome = outcome
	return result, nil
}

func (d *Dispatcher) deliver(
	ctx context.Context,
	record *domain.NotificationRecord,
	result *DispatchResult,
	logger *zap.Logger,
) (DispatchOutcome, error) {
	user, err := d.users.GetByID(ctx, record.OwnerID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return "", fmt.Errorf("failed to load owner: %w", err)
	}

	to, ok := user.DeliverableEmail()
	if !ok {
		if err := d.finalise(ctx, record.ID, nil); err != nil {
			return "", err
		}
		logger.Info("owner has no deliverable email, notification finalised without sending")
		d.metrics.IncNotificationSent(record.Kind.String(), string(OutcomeUndeliverable))
		return OutcomeUndeliverable, nil
	}

	view, orphaned, err := d.itemView(ctx, record, userLocation(user))
	if err != nil {
		return "", err
	}
	if orphaned {
		if err := d.finalise(ctx, record.ID, nil); err != nil {
			return "", err
		}
		logger.Info("content item no longer exists, notification finalised without sending")
		d.metrics.IncNotificationSent(record.Kind.String(), string(OutcomeOrphaned))
		return OutcomeOrphaned, nil
	}

	html, err := d.renderer.Render(record, view)
	if err != nil {
		d.release(ctx, record.ID, logger)
		logger.Error("failed to render notification", zap.Error(err))
		d.metrics.IncNotificationFailed(record.Kind.String(), "render")
		return OutcomeRenderFailed, nil
	}

	if d.rateLimiter != nil {
		if err := d.rateLimiter.Wait(ctx, d.mailer.Name()); err != nil {
			return "", fmt.Errorf("rate limiter wait failed: %w", err)
		}
	}

	sendStart := d.now()
	sendResult, sendErr := d.mailer.Send(ctx, provider.Email{
		From:    d.from,
		To:      to,
		Subject: render.Subject(record.Kind),
		HTML:    html,
	})
	d.metrics.ObserveNotificationSendDuration(record.Kind.String(), d.now().Sub(sendStart))

	if err := d.recordAttempt(ctx, record.ID, to, sendResult, sendErr); err != nil {
		logger.Error("failed to record delivery attempt", zap.Error(err))
	}

	if sendErr != nil {
		d.release(ctx, record.ID, logger)
		result.Transient = provider.IsTransient(sendErr)
		reason := provider.FailureReason(sendErr)

		logger.Warn("email transport failed, notification left unsent",
			zap.String("reason", reason),
			zap.Error(sendErr),
		)
		d.metrics.IncNotificationFailed(record.Kind.String(), reason)
		return OutcomeFailed, nil
	}

	var messageID *string
	if sendResult != nil && strings.TrimSpace(sendResult.MessageID) != "" {
		value := strings.TrimSpace(sendResult.MessageID)
		messageID = &value
		result.ProviderMessageID = value
	}

	if err := d.notifications.MarkSent(ctx, record.ID, messageID, d.now().UTC()); err != nil {
		// The email is out. Keep the claim so the lease blocks an immediate resend.
		logger.Error("email sent but notification could not be marked sent", zap.Error(err))
	}

	logger.Info("notification delivered", zap.String("providerMessageId", result.ProviderMessageID))
	d.metrics.IncNotificationSent(record.Kind.String(), string(OutcomeDelivered))
	return OutcomeDelivered, nil
}

// itemView re-reads the linked item so the email shows its current title and media.
func (d *Dispatcher) itemView(
	ctx context.Context,
	record *domain.NotificationRecord,
	loc *time.Location,
) (*render.ItemView, bool, error) {
	if record.ContentItemID == nil || strings.TrimSpace(*record.ContentItemID) == "" {
		return nil, false, nil
	}

	item, err := d.items.GetByID(ctx, *record.ContentItemID)
	if errors.Is(err, domain.ErrNotFound) {
		// Digests only point at a representative item; they still go out.
		return nil, record.Kind.IsItemLinked(), nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load content item: %w", err)
	}

	return render.ItemViewFor(*item, loc, d.media.Resolve(item.MediaKeys)), false, nil
}

func (d *Dispatcher) finalise(ctx context.Context, id string, messageID *string) error {
	err := d.notifications.MarkSent(ctx, id, messageID, d.now().UTC())
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("failed to finalise notification: %w", err)
	}
	return nil
}

func (d *Dispatcher) release(ctx context.Context, id string, logger *zap.Logger) {
	if err := d.notifications.ReleaseClaim(ctx, id); err != nil {
		logger.Warn("failed to release dispatch claim", zap.Error(err))
	}
}

func (d *Dispatcher) recordAttempt(
	ctx context.Context,
	notificationID string,
	recipient string,
	sendResult *provider.SendResult,
	sendErr error,
) error {
	attempt := &domain.DeliveryAttempt{
		ID:             uuid.NewString(),
		NotificationID: notificationID,
		Recipient:      recipient,
		CreatedAt:      d.now().UTC(),
	}

	if sendResult != nil {
		if sendResult.StatusCode > 0 {
			value := sendResult.StatusCode
			attempt.StatusCode = &value
		}
		if id := strings.TrimSpace(sendResult.MessageID); id != "" {
			attempt.ProviderMessageID = &id
		}
	}

	if sendErr != nil {
		value := sendErr.Error()
		attempt.Error = &value

		var providerErr *provider.ProviderError
		if errors.As(sendErr, &providerErr) && providerErr.StatusCode > 0 && attempt.StatusCode == nil {
			code := providerErr.StatusCode
			attempt.StatusCode = &code
		}
	}

	return d.attempts.Create(ctx, attempt)
}
