package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

const (
	dedupePendingScheduleSQL = `DELETE FROM notifications a USING notifications b
		 WHERE a.sent = false AND b.sent = false
		   AND a.kind IN ('REMINDER', 'PUBLISHED')
		   AND a.kind = b.kind
		   AND a.content_item_id = b.content_item_id
		   AND (a.created_at, a.id) < (b.created_at, b.id)`

	pendingScheduleIndexSQL = `CREATE UNIQUE INDEX IF NOT EXISTS idx_notifications_pending_schedule
		 ON notifications (content_item_id, kind)
		 WHERE sent = false AND kind IN ('REMINDER', 'PUBLISHED')`
)

// At most one unsent REMINDER and one unsent PUBLISHED record per item. Duplicates
// left over from legacy data are collapsed to the newest row first.
func addPendingScheduleUniqueIndex() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000005_add_pending_schedule_unique_index",
		Migrate: func(tx *gorm.DB) error {
			return execAll(tx, []string{dedupePendingScheduleSQL, pendingScheduleIndexSQL})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Exec(`DROP INDEX IF EXISTS idx_notifications_pending_schedule`).Error
		},
	}
}
