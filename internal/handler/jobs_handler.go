package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/content-reminders/internal/domain"
	"github.com/kursadbilgin/content-reminders/internal/observability"
)

type OverdueChecker interface {
	CheckOverdue(ctx context.Context) (*domain.JobRun, error)
}

type DigestRunner interface {
	SendDailyReminders(ctx context.Context) (*domain.JobRun, error)
	SendDailyDigest(ctx context.Context, userID string) (*domain.NotificationRecord, error)
}

// JobsHandler lets an external clock drive the periodic jobs.
type JobsHandler struct {
	overdue OverdueChecker
	digest  DigestRunner
}

func NewJobsHandler(overdue OverdueChecker, digest DigestRunner) (*JobsHandler, error) {
	if overdue == nil {
		return nil, fmt.Errorf("overdue checker is required")
	}
	if digest == nil {
		return nil, fmt.Errorf("digest runner is required")
	}
	return &JobsHandler{overdue: overdue, digest: digest}, nil
}

func RegisterJobRoutes(router fiber.Router, overdue OverdueChecker, digest DigestRunner) error {
	h, err := NewJobsHandler(overdue, digest)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/jobs/check-overdue", h.CheckOverdue)
	v1.Post("/jobs/daily-digest", h.DailyDigest)
	v1.Post("/users/:id/digest", h.UserDigest)

	return nil
}

type jobRunResponse struct {
	ID          string     `json:"id"`
	Job         string     `json:"job"`
	Status      string     `json:"status"`
	TotalCount  int        `json:"totalCount"`
	FailedCount int        `json:"failedCount"`
	StartedAt   time.Time  `json:"startedAt"`
	FinishedAt  *time.Time `json:"finishedAt,omitempty"`
}

func (h *JobsHandler) CheckOverdue(c *fiber.Ctx) error {
	ctx := observability.WithCorrelationID(c.UserContext(), requestCorrelationID(c))
	run, err := h.overdue.CheckOverdue(ctx)
	return h.respondRun(c, run, err)
}

func (h *JobsHandler) DailyDigest(c *fiber.Ctx) error {
	ctx := observability.WithCorrelationID(c.UserContext(), requestCorrelationID(c))
	run, err := h.digest.SendDailyReminders(ctx)
	return h.respondRun(c, run, err)
}

func (h *JobsHandler) UserDigest(c *fiber.Ctx) error {
	userID := strings.TrimSpace(c.Params("id"))
	ctx := observability.WithCorrelationID(c.UserContext(), requestCorrelationID(c))

	record, err := h.digest.SendDailyDigest(ctx, userID)
	if err != nil {
		return toHTTPError(err)
	}
	if record == nil {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"userId":  userID,
			"created": false,
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"userId":       userID,
		"created":      true,
		"notification": toNotificationResponse(record),
	})
}

// respondRun reports a run that ended early together with its error.
func (h *JobsHandler) respondRun(c *fiber.Ctx, run *domain.JobRun, err error) error {
	if err != nil && run == nil {
		return toHTTPError(err)
	}

	body := fiber.Map{"run": toJobRunResponse(run)}
	if err != nil {
		body["error"] = err.Error()
		return c.Status(fiber.StatusInternalServerError).JSON(body)
	}
	return c.Status(fiber.StatusOK).JSON(body)
}

func toJobRunResponse(run *domain.JobRun) jobRunResponse {
	return jobRunResponse{
		ID:          run.ID,
		Job:         run.Job.String(),
		Status:      run.Status.String(),
		TotalCount:  run.TotalCount,
		FailedCount: run.FailedCount,
		StartedAt:   run.StartedAt,
		FinishedAt:  run.FinishedAt,
	}
}
