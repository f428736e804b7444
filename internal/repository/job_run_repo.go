package repository

import (
	"context"
	"errors"

	"github.com/kursadbilgin/content-reminders/internal/domain"
	"gorm.io/gorm"
)

type JobRunRepository interface {
	Create(ctx context.Context, run *domain.JobRun) error
	GetByID(ctx context.Context, id string) (*domain.JobRun, error)
	Finish(ctx context.Context, run *domain.JobRun) error
}

type GormJobRunRepo struct {
	db *gorm.DB
}

func NewGormJobRunRepo(db *gorm.DB) *GormJobRunRepo {
	return &GormJobRunRepo{db: db}
}

func (r *GormJobRunRepo) Create(ctx context.Context, run *domain.JobRun) error {
	model := jobRunModelFromDomain(run)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if run != nil {
		*run = *jobRunModelToDomain(model)
	}
	return nil
}

func (r *GormJobRunRepo) GetByID(ctx context.Context, id string) (*domain.JobRun, error) {
	var model JobRunModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return jobRunModelToDomain(&model), nil
}

func (r *GormJobRunRepo) Finish(ctx context.Context, run *domain.JobRun) error {
	if run == nil {
		return domain.ErrNotFound
	}

	result := r.db.WithContext(ctx).
		Model(&JobRunModel{}).
		Where("id = ?", run.ID).
		Updates(map[string]any{
			"status":       run.Status,
			"total_count":  run.TotalCount,
			"failed_count": run.FailedCount,
			"finished_at":  run.FinishedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
