package repository

import (
	"context"
	"errors"

	"github.com/kursadbilgin/content-reminders/internal/domain"
	"gorm.io/gorm"
)

type UserRepository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	// ListDigestRecipients pages through users with an email on file who opted into
	// the daily digest.
	ListDigestRecipients(ctx context.Context, afterID string, limit int) ([]domain.User, error)
}

type GormUserRepo struct {
	db *gorm.DB
}

func NewGormUserRepo(db *gorm.DB) *GormUserRepo {
	return &GormUserRepo{db: db}
}

func (r *GormUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	var model UserModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return userModelToDomain(&model), nil
}

func (r *GormUserRepo) ListDigestRecipients(ctx context.Context, afterID string, limit int) ([]domain.User, error) {
	query := r.db.WithContext(ctx).
		Where("daily_digest = ? AND email IS NOT NULL AND email <> ''", true)
	if afterID != "" {
		query = query.Where("id > ?", afterID)
	}

	var models []UserModel
	if err := query.Order("id ASC").Limit(limit).Find(&models).Error; err != nil {
		return nil, err
	}

	users := make([]domain.User, 0, len(models))
	for i := range models {
		users = append(users, *userModelToDomain(&models[i]))
	}
	return users, nil
}
