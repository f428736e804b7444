package domain

import (
	"fmt"
	"strings"
	"time"
)

// Kind represents the reason a notification record exists.
type Kind string

const (
	KindReminder    Kind = "REMINDER"
	KindOverdue     Kind = "OVERDUE"
	KindPublished   Kind = "PUBLISHED"
	KindDailyDigest Kind = "DAILY_DIGEST"
)

func (k Kind) String() string { return string(k) }

func (k Kind) IsValid() bool {
	switch k {
	case KindReminder, KindOverdue, KindPublished, KindDailyDigest:
		return true
	}
	return false
}

// IsScheduleOwned reports whether records of this kind are derived from an item's
// schedule and therefore replaced whenever the item is rescheduled.
func (k Kind) IsScheduleOwned() bool {
	return k == KindReminder || k == KindPublished
}

// IsItemLinked reports whether the record refers to a single content item whose
// current state is re-read at send time. Digests only carry a representative item.
func (k Kind) IsItemLinked() bool {
	return k == KindReminder || k == KindPublished || k == KindOverdue
}

func ParseKindFromString(s string) (Kind, error) {
	k := Kind(strings.ToUpper(strings.TrimSpace(s)))
	if !k.IsValid() {
		return "", fmt.Errorf("%w: invalid kind %q", ErrValidation, s)
	}
	return k, nil
}

// ScheduleKinds returns the kinds that are purged on reschedule.
func ScheduleKinds() []Kind {
	return []Kind{KindReminder, KindPublished}
}

const MaxMessageLength = 2000

// NotificationRecord is a durable, idempotent unit of email delivery.
type NotificationRecord struct {
	ID                string
	OwnerID           string
	ContentItemID     *string
	Kind              Kind
	Message           string
	DueAt             time.Time
	Sent              bool
	SentAt            *time.Time
	ProviderMessageID *string
	ClaimedUntil      *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (n *NotificationRecord) Validate() error {
	if strings.TrimSpace(n.OwnerID) == "" {
		return fmt.Errorf("%w: owner id is required", ErrValidation)
	}
	if !n.Kind.IsValid() {
		return fmt.Errorf("%w: invalid kind %q", ErrValidation, n.Kind)
	}
	if n.Kind.IsItemLinked() && (n.ContentItemID == nil || strings.TrimSpace(*n.ContentItemID) == "") {
		return fmt.Errorf("%w: content item id is required for %s", ErrValidation, n.Kind)
	}
	if strings.TrimSpace(n.Message) == "" {
		return fmt.Errorf("%w: message is required", ErrValidation)
	}
	if l := len([]rune(n.Message)); l > MaxMessageLength {
		return fmt.Errorf("%w: message exceeds %d characters (got %d)", ErrValidation, MaxMessageLength, l)
	}
	if n.DueAt.IsZero() {
		return fmt.Errorf("%w: due time is required", ErrValidation)
	}
	return nil
}

// IsClaimed reports whether a dispatch currently holds the record.
func (n *NotificationRecord) IsClaimed(now time.Time) bool {
	return n.ClaimedUntil != nil && n.ClaimedUntil.After(now)
}
