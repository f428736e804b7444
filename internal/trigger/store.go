// Package trigger defines deferred "dispatch this record at or after T" triggers.
package trigger

import (
	"context"
	"time"
)

// Store persists armed triggers keyed by notification record id. Arming an id
// that is already armed moves it to the new instant.
type Store interface {
	Arm(ctx context.Context, notificationID string, at time.Time) error
	Disarm(ctx context.Context, notificationID string) error
	IsArmed(ctx context.Context, notificationID string) (bool, error)
	// PopDue atomically removes and returns up to limit ids due at or before now.
	PopDue(ctx context.Context, now time.Time, limit int) ([]string, error)
}
