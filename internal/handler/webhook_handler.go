package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/content-reminders/internal/observability"
	"github.com/kursadbilgin/content-reminders/internal/provider"
	"github.com/kursadbilgin/content-reminders/internal/service"
)

// WebhookTypeScheduledReminder is the only payload type the dispatch webhook acts on.
// Other types are acknowledged without dispatching.
const WebhookTypeScheduledReminder = "scheduled_post_reminder"

type Dispatcher interface {
	Dispatch(ctx context.Context, notificationID string) (*service.DispatchResult, error)
}

type EmailEventRecorder interface {
	OnEmailEvent(ctx context.Context, event provider.EmailEvent) error
}

type WebhookHandler struct {
	dispatcher Dispatcher
	events     EmailEventRecorder
}

func NewWebhookHandler(dispatcher Dispatcher, events EmailEventRecorder) (*WebhookHandler, error) {
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if events == nil {
		return nil, fmt.Errorf("email event recorder is required")
	}
	return &WebhookHandler{dispatcher: dispatcher, events: events}, nil
}

func RegisterWebhookRoutes(router fiber.Router, dispatcher Dispatcher, events EmailEventRecorder) error {
	h, err := NewWebhookHandler(dispatcher, events)
	if err != nil {
		return err
	}

	router.Post("/webhook/notifications", h.DispatchNotification)
	router.Post("/resend-webhook", h.EmailEvent)

	return nil
}

type dispatchWebhookRequest struct {
	Type           string `json:"type"`
	NotificationID string `json:"notificationId"`
}

// DispatchNotification is the trigger runtime's entry point. Skips, unknown types
// and transport failures still answer 200; only unexpected errors surface as 500.
func (h *WebhookHandler) DispatchNotification(c *fiber.Ctx) error {
	var req dispatchWebhookRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Type) != WebhookTypeScheduledReminder {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"success": true})
	}

	correlationID := requestCorrelationID(c)
	if correlationID == "" {
		correlationID = strings.TrimSpace(req.NotificationID)
	}
	ctx := observability.WithCorrelationID(c.UserContext(), correlationID)

	if _, err := h.dispatcher.Dispatch(ctx, req.NotificationID); err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"success": true})
}

func (h *WebhookHandler) EmailEvent(c *fiber.Ctx) error {
	var event provider.EmailEvent
	if err := c.BodyParser(&event); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	ctx := observability.WithCorrelationID(c.UserContext(), requestCorrelationID(c))
	if err := h.events.OnEmailEvent(ctx, event); err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"success": true})
}
