package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/content-reminders/internal/observability"
	"github.com/kursadbilgin/content-reminders/internal/service"
)

// HeaderUserID carries the acting user of the content CRUD layer.
const HeaderUserID = "X-User-ID"

type ItemScheduler interface {
	ScheduleForItemID(ctx context.Context, itemID, actorID string) (*service.ScheduleResult, error)
}

type ScheduleHandler struct {
	scheduler ItemScheduler
}

func NewScheduleHandler(scheduler ItemScheduler) (*ScheduleHandler, error) {
	if scheduler == nil {
		return nil, fmt.Errorf("item scheduler is required")
	}
	return &ScheduleHandler{scheduler: scheduler}, nil
}

func RegisterScheduleRoutes(router fiber.Router, scheduler ItemScheduler) error {
	h, err := NewScheduleHandler(scheduler)
	if err != nil {
		return err
	}

	router.Group("/v1").Post("/content-items/:id/schedule", h.ScheduleItem)
	return nil
}

type scheduleResponse struct {
	ContentItemID string                 `json:"contentItemId"`
	Purged        int64                  `json:"purged"`
	Created       []notificationResponse `json:"created"`
}

// ScheduleItem is called by the CRUD layer after an item is created or a
// schedule-relevant field changed.
func (h *ScheduleHandler) ScheduleItem(c *fiber.Ctx) error {
	itemID := strings.TrimSpace(c.Params("id"))
	ctx := observability.WithCorrelationID(c.UserContext(), requestCorrelationID(c))

	result, err := h.scheduler.ScheduleForItemID(ctx, itemID, c.Get(HeaderUserID))
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(scheduleResponse{
		ContentItemID: itemID,
		Purged:        result.Purged,
		Created:       toNotificationResponses(result.Created),
	})
}
