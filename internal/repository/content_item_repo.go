package repository

import (
	"context"
	"errors"
	"time"

	"github.com/kursadbilgin/content-reminders/internal/domain"
	"gorm.io/gorm"
)

// ItemFilter narrows an owner's content items. Zero values do not filter.
type ItemFilter struct {
	Statuses        []domain.ContentStatus
	ScheduledFrom   *time.Time
	ScheduledBefore *time.Time
}

type ContentItemRepository interface {
	GetByID(ctx context.Context, id string) (*domain.ContentItem, error)
	Query(ctx context.Context, ownerID string, filter ItemFilter) ([]domain.ContentItem, error)
	// ListOverdue pages through scheduled, opted-in, incomplete items whose instant
	// is before now, ordered by id and starting after afterID.
	ListOverdue(ctx context.Context, now time.Time, afterID string, limit int) ([]domain.ContentItem, error)
}

type GormContentItemRepo struct {
	db *gorm.DB
}

func NewGormContentItemRepo(db *gorm.DB) *GormContentItemRepo {
	return &GormContentItemRepo{db: db}
}

func (r *GormContentItemRepo) GetByID(ctx context.Context, id string) (*domain.ContentItem, error) {
	var model ContentItemModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return contentItemModelToDomain(&model), nil
}

func (r *GormContentItemRepo) Query(ctx context.Context, ownerID string, filter ItemFilter) ([]domain.ContentItem, error) {
	query := r.db.WithContext(ctx).Where("owner_id = ?", ownerID)

	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", filter.Statuses)
	}
	if filter.ScheduledFrom != nil {
		query = query.Where("scheduled_at >= ?", *filter.ScheduledFrom)
	}
	if filter.ScheduledBefore != nil {
		query = query.Where("scheduled_at < ?", *filter.ScheduledBefore)
	}

	var models []ContentItemModel
	if err := query.Order("scheduled_at ASC NULLS LAST, created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	return contentItemModelsToDomain(models), nil
}

func (r *GormContentItemRepo) ListOverdue(ctx context.Context, now time.Time, afterID string, limit int) ([]domain.ContentItem, error) {
	query := r.db.WithContext(ctx).
		Where("status = ? AND scheduled_at < ?", domain.ContentStatusScheduled, now).
		Where("notifications_enabled = ? AND completed_at IS NULL", true)
	if afterID != "" {
		query = query.Where("id > ?", afterID)
	}

	var models []ContentItemModel
	if err := query.Order("id ASC").Limit(limit).Find(&models).Error; err != nil {
		return nil, err
	}
	return contentItemModelsToDomain(models), nil
}

func contentItemModelsToDomain(models []ContentItemModel) []domain.ContentItem {
	items := make([]domain.ContentItem, 0, len(models))
	for i := range models {
		items = append(items, *contentItemModelToDomain(&models[i]))
	}
	return items
}
