package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// Older deployments referenced the item through notifications.post_id. Copy it into
// content_item_id and drop it. Fresh databases have no such column.
func migrateLegacyPostID() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000004_migrate_legacy_post_id",
		Migrate: func(tx *gorm.DB) error {
			if !tx.Migrator().HasColumn("notifications", "post_id") {
				return nil
			}
			return execAll(tx, []string{
				`UPDATE notifications SET content_item_id = post_id::uuid WHERE content_item_id IS NULL AND post_id IS NOT NULL`,
				`ALTER TABLE notifications DROP COLUMN post_id`,
			})
		},
		Rollback: func(tx *gorm.DB) error {
			return execAll(tx, []string{
				`ALTER TABLE notifications ADD COLUMN IF NOT EXISTS post_id UUID`,
				`UPDATE notifications SET post_id = content_item_id`,
			})
		},
	}
}
