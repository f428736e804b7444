package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/content-reminders/internal/repository"
	"gorm.io/gorm"
)

func createContentItemsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_content_items",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.ContentItemModel{}); err != nil {
				return err
			}
			return execAll(tx, []string{
				`CREATE INDEX IF NOT EXISTS idx_content_items_owner_status ON content_items (owner_id, status, scheduled_at)`,
				`CREATE INDEX IF NOT EXISTS idx_content_items_overdue ON content_items (scheduled_at) WHERE status = 'SCHEDULED' AND notifications_enabled = true AND completed_at IS NULL`,
			})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.ContentItemModel{})
		},
	}
}
