package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/content-reminders/internal/repository"
	"gorm.io/gorm"
)

func createNotificationsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000003_create_notifications",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.NotificationModel{}); err != nil {
				return err
			}
			return execAll(tx, []string{
				`CREATE INDEX IF NOT EXISTS idx_notifications_due_unsent ON notifications (due_at) WHERE sent = false`,
				`CREATE INDEX IF NOT EXISTS idx_notifications_owner_kind_due ON notifications (owner_id, kind, due_at)`,
				`CREATE INDEX IF NOT EXISTS idx_notifications_item_kind ON notifications (content_item_id, kind)`,
			})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.NotificationModel{})
		},
	}
}
