package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/content-reminders/internal/domain"
	"github.com/kursadbilgin/content-reminders/internal/observability"
	"github.com/kursadbilgin/content-reminders/internal/repository"
	"github.com/kursadbilgin/content-reminders/internal/service"
)

const (
	defaultPage     = 1
	defaultPageSize = 50
	maxPageSize     = 100
)

type NotificationService interface {
	GetByID(ctx context.Context, id string) (*service.NotificationDetails, error)
	List(ctx context.Context, params repository.ListParams) ([]domain.NotificationRecord, int64, error)
	Redispatch(ctx context.Context, id string) (*domain.NotificationRecord, error)
}

type NotificationHandler struct {
	service NotificationService
}

func NewNotificationHandler(service NotificationService) (*NotificationHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("notification service is required")
	}
	return &NotificationHandler{service: service}, nil
}

func RegisterNotificationRoutes(router fiber.Router, service NotificationService) error {
	h, err := NewNotificationHandler(service)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Get("/notifications", h.ListNotifications)
	v1.Get("/notifications/:id", h.GetNotification)
	v1.Post("/notifications/:id/dispatch", h.RedispatchNotification)

	return nil
}

type notificationResponse struct {
	ID                string     `json:"id"`
	OwnerID           string     `json:"ownerId"`
	ContentItemID     *string    `json:"contentItemId,omitempty"`
	Kind              string     `json:"kind"`
	Message           string     `json:"message"`
	DueAt             time.Time  `json:"dueAt"`
	Sent              bool       `json:"sent"`
	SentAt            *time.Time `json:"sentAt,omitempty"`
	ProviderMessageID *string    `json:"providerMessageId,omitempty"`
	CreatedAt         time.Time  `json:"createdAt,omitempty"`
	UpdatedAt         time.Time  `json:"updatedAt,omitempty"`
}

type attemptResponse struct {
	ID                string    `json:"id"`
	Recipient         string    `json:"recipient"`
	StatusCode        *int      `json:"statusCode,omitempty"`
	ProviderMessageID *string   `json:"providerMessageId,omitempty"`
	Error             *string   `json:"error,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
}

type notificationDetailsResponse struct {
	notificationResponse
	Attempts []attemptResponse `json:"attempts"`
}

type listNotificationsResponse struct {
	Data []notificationResponse `json:"data"`
	Meta listMeta               `json:"meta"`
}

type listMeta struct {
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
	Total    int64 `json:"total"`
}

func (h *NotificationHandler) GetNotification(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	details, err := h.service.GetByID(c.UserContext(), id)
	if err != nil {
		return toHTTPError(err)
	}

	attempts := make([]attemptResponse, 0, len(details.Attempts))
	for _, a := range details.Attempts {
		attempts = append(attempts, attemptResponse{
			ID:                a.ID,
			Recipient:         a.Recipient,
			StatusCode:        a.StatusCode,
			ProviderMessageID: a.ProviderMessageID,
			Error:             a.Error,
			CreatedAt:         a.CreatedAt,
		})
	}

	return c.Status(fiber.StatusOK).JSON(notificationDetailsResponse{
		notificationResponse: toNotificationResponse(details.Record),
		Attempts:             attempts,
	})
}

func (h *NotificationHandler) RedispatchNotification(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	ctx := observability.WithCorrelationID(c.UserContext(), requestCorrelationID(c))

	record, err := h.service.Redispatch(ctx, id)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"notificationId": record.ID,
		"status":         "queued",
	})
}

func (h *NotificationHandler) ListNotifications(c *fiber.Ctx) error {
	params, err := parseListParams(c)
	if err != nil {
		return toHTTPError(err)
	}

	records, total, err := h.service.List(c.UserContext(), params)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(listNotificationsResponse{
		Data: toNotificationResponses(records),
		Meta: listMeta{
			Page:     params.Page,
			PageSize: params.PageSize,
			Total:    total,
		},
	})
}

func parseListParams(c *fiber.Ctx) (repository.ListParams, error) {
	params := repository.ListParams{
		Page:     c.QueryInt("page", defaultPage),
		PageSize: c.QueryInt("pageSize", defaultPageSize),
	}

	if params.Page < 1 {
		return repository.ListParams{}, fmt.Errorf("%w: page must be >= 1", domain.ErrValidation)
	}
	if params.PageSize < 1 || params.PageSize > maxPageSize {
		return repository.ListParams{}, fmt.Errorf("%w: pageSize must be between 1 and %d", domain.ErrValidation, maxPageSize)
	}

	if ownerID := strings.TrimSpace(c.Query("ownerId")); ownerID != "" {
		params.OwnerID = &ownerID
	}
	if itemID := strings.TrimSpace(c.Query("contentItemId")); itemID != "" {
		params.ContentItemID = &itemID
	}

	if rawKind := strings.TrimSpace(c.Query("kind")); rawKind != "" {
		kind, err := domain.ParseKindFromString(rawKind)
		if err != nil {
			return repository.ListParams{}, err
		}
		params.Kind = &kind
	}

	if rawSent := strings.TrimSpace(c.Query("sent")); rawSent != "" {
		sent, err := strconv.ParseBool(rawSent)
		if err != nil {
			return repository.ListParams{}, fmt.Errorf("%w: sent must be a boolean", domain.ErrValidation)
		}
		params.Sent = &sent
	}

	from, err := parseRFC3339Query(c.Query("from"), "from")
	if err != nil {
		return repository.ListParams{}, err
	}
	to, err := parseRFC3339Query(c.Query("to"), "to")
	if err != nil {
		return repository.ListParams{}, err
	}
	if from != nil && to != nil && to.Before(*from) {
		return repository.ListParams{}, fmt.Errorf("%w: to must not be before from", domain.ErrValidation)
	}
	params.From = from
	params.To = to

	return params, nil
}

func parseRFC3339Query(value string, field string) (*time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}

	t, err := time.Parse(time.RFC3339, trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be RFC3339", domain.ErrValidation, field)
	}
	return &t, nil
}

func requestCorrelationID(c *fiber.Ctx) string {
	if value := strings.TrimSpace(c.Get(fiber.HeaderXRequestID)); value != "" {
		return value
	}
	if value, ok := c.Locals("requestid").(string); ok {
		return strings.TrimSpace(value)
	}
	return ""
}

func toNotificationResponses(records []domain.NotificationRecord) []notificationResponse {
	responses := make([]notificationResponse, 0, len(records))
	for i := range records {
		responses = append(responses, toNotificationResponse(&records[i]))
	}
	return responses
}

func toNotificationResponse(n *domain.NotificationRecord) notificationResponse {
	if n == nil {
		return notificationResponse{}
	}

	return notificationResponse{
		ID:                n.ID,
		OwnerID:           n.OwnerID,
		ContentItemID:     n.ContentItemID,
		Kind:              n.Kind.String(),
		Message:           n.Message,
		DueAt:             n.DueAt,
		Sent:              n.Sent,
		SentAt:            n.SentAt,
		ProviderMessageID: n.ProviderMessageID,
		CreatedAt:         n.CreatedAt,
		UpdatedAt:         n.UpdatedAt,
	}
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		return fiber.NewError(fiber.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	default:
		return err
	}
}
