package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/content-reminders/internal/repository"
	"gorm.io/gorm"
)

func createJobRunsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000007_create_job_runs",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.JobRunModel{}); err != nil {
				return err
			}
			return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_job_runs_job_started ON job_runs (job, started_at DESC)`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.JobRunModel{})
		},
	}
}
