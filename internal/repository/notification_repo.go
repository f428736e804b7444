package repository

import (
	"context"
	"errors"
	"time"

	"github.com/kursadbilgin/content-reminders/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ListParams struct {
	OwnerID       *string
	ContentItemID *string
	Kind          *domain.Kind
	Sent          *bool
	From          *time.Time
	To            *time.Time
	Page          int
	PageSize      int
}

type NotificationRepository interface {
	Create(ctx context.Context, n *domain.NotificationRecord) error
	GetByID(ctx context.Context, id string) (*domain.NotificationRecord, error)
	List(ctx context.Context, params ListParams) ([]domain.NotificationRecord, int64, error)
	// ReplacePending deletes the unsent schedule-owned records of an item and
	// inserts records in the same transaction. It returns the number purged.
	ReplacePending(ctx context.Context, contentItemID string, records []*domain.NotificationRecord) (int64, error)
	PurgePending(ctx context.Context, contentItemID string) (int64, error)
	// ClaimForDispatch locks the row and takes a lease on it. A nil record with a nil
	// error means the record is sent or already claimed by another dispatch.
	ClaimForDispatch(ctx context.Context, id string, now time.Time, lease time.Duration) (*domain.NotificationRecord, error)
	MarkSent(ctx context.Context, id string, providerMsgID *string, sentAt time.Time) error
	ReleaseClaim(ctx context.Context, id string) error
	// ListDueUnsent pages through unsent records due at or before dueBefore, oldest first.
	ListDueUnsent(ctx context.Context, dueBefore time.Time, offset, limit int) ([]domain.NotificationRecord, error)
	ExistsByItemKindSince(ctx context.Context, contentItemID string, kind domain.Kind, since time.Time) (bool, error)
	ExistsByOwnerKindDueAt(ctx context.Context, ownerID string, kind domain.Kind, dueAt time.Time) (bool, error)
}

type GormNotificationRepo struct {
	db *gorm.DB
}

func NewGormNotificationRepo(db *gorm.DB) *GormNotificationRepo {
	return &GormNotificationRepo{db: db}
}

func (r *GormNotificationRepo) Create(ctx context.Context, n *domain.NotificationRecord) error {
	model := notificationModelFromDomain(n)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if n != nil {
		*n = *notificationModelToDomain(model)
	}
	return nil
}

func (r *GormNotificationRepo) GetByID(ctx context.Context, id string) (*domain.NotificationRecord, error) {
	var model NotificationModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return notificationModelToDomain(&model), nil
}

func (r *GormNotificationRepo) List(ctx context.Context, params ListParams) ([]domain.NotificationRecord, int64, error) {
	query := r.db.WithContext(ctx).Model(&NotificationModel{})

	if params.OwnerID != nil {
		query = query.Where("owner_id = ?", *params.OwnerID)
	}
	if params.ContentItemID != nil {
		query = query.Where("content_item_id = ?", *params.ContentItemID)
	}
	if params.Kind != nil {
		query = query.Where("kind = ?", *params.Kind)
	}
	if params.Sent != nil {
		query = query.Where("sent = ?", *params.Sent)
	}
	if params.From != nil {
		query = query.Where("due_at >= ?", *params.From)
	}
	if params.To != nil {
		query = query.Where("due_at <= ?", *params.To)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := max(params.Page, 1)
	pageSize := params.PageSize
	if pageSize < 1 {
		pageSize = 50
	}
	pageSize = min(pageSize, 100)

	var models []NotificationModel
	err := query.
		Order("due_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&models).Error
	if err != nil {
		return nil, 0, err
	}

	return notificationModelsToDomain(models), total, nil
}

func (r *GormNotificationRepo) ReplacePending(
	ctx context.Context,
	contentItemID string,
	records []*domain.NotificationRecord,
) (int64, error) {
	var purged int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := pendingScheduleRecords(tx, contentItemID).Delete(&NotificationModel{})
		if result.Error != nil {
			return result.Error
		}
		purged = result.RowsAffected

		for _, record := range records {
			model := notificationModelFromDomain(record)
			if model == nil {
				continue
			}
			if err := tx.Create(model).Error; err != nil {
				return err
			}
			*record = *notificationModelToDomain(model)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return purged, nil
}

func (r *GormNotificationRepo) PurgePending(ctx context.Context, contentItemID string) (int64, error) {
	result := pendingScheduleRecords(r.db.WithContext(ctx), contentItemID).Delete(&NotificationModel{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func pendingScheduleRecords(db *gorm.DB, contentItemID string) *gorm.DB {
	return db.Where(
		"content_item_id = ? AND sent = ? AND kind IN ?",
		contentItemID, false, domain.ScheduleKinds(),
	)
}

func (r *GormNotificationRepo) ClaimForDispatch(
	ctx context.Context,
	id string,
	now time.Time,
	lease time.Duration,
) (*domain.NotificationRecord, error) {
	var claimed *domain.NotificationRecord
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model NotificationModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&model, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}

		// Sent, or held by a concurrent delivery of the same trigger.
		if model.Sent || (model.ClaimedUntil != nil && model.ClaimedUntil.After(now)) {
			return nil
		}

		until := now.Add(lease)
		if err := tx.Model(&model).Update("claimed_until", until).Error; err != nil {
			return err
		}
		model.ClaimedUntil = &until
		claimed = notificationModelToDomain(&model)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (r *GormNotificationRepo) MarkSent(ctx context.Context, id string, providerMsgID *string, sentAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&NotificationModel{}).
		Where("id = ? AND sent = ?", id, false).
		Updates(map[string]any{
			"sent":                true,
			"sent_at":             sentAt,
			"provider_message_id": providerMsgID,
			"claimed_until":       nil,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}

	// Already sent is fine; a missing row is not.
	var count int64
	if err := r.db.WithContext(ctx).Model(&NotificationModel{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormNotificationRepo) ReleaseClaim(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Model(&NotificationModel{}).
		Where("id = ? AND sent = ?", id, false).
		Update("claimed_until", nil).Error
}

func (r *GormNotificationRepo) ListDueUnsent(
	ctx context.Context,
	dueBefore time.Time,
	offset, limit int,
) ([]domain.NotificationRecord, error) {
	var models []NotificationModel
	err := r.db.WithContext(ctx).
		Where("sent = ? AND due_at <= ?", false, dueBefore).
		Order("due_at ASC, id ASC").
		Offset(max(offset, 0)).
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return notificationModelsToDomain(models), nil
}

func (r *GormNotificationRepo) ExistsByItemKindSince(
	ctx context.Context,
	contentItemID string,
	kind domain.Kind,
	since time.Time,
) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&NotificationModel{}).
		Where("content_item_id = ? AND kind = ? AND due_at >= ?", contentItemID, kind, since).
		Limit(1).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *GormNotificationRepo) ExistsByOwnerKindDueAt(
	ctx context.Context,
	ownerID string,
	kind domain.Kind,
	dueAt time.Time,
) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&NotificationModel{}).
		Where("owner_id = ? AND kind = ? AND due_at = ?", ownerID, kind, dueAt).
		Limit(1).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func notificationModelsToDomain(models []NotificationModel) []domain.NotificationRecord {
	records := make([]domain.NotificationRecord, 0, len(models))
	for i := range models {
		records = append(records, *notificationModelToDomain(&models[i]))
	}
	return records
}
