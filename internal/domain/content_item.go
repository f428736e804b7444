package domain

import (
	"fmt"
	"strings"
	"time"
)

// ContentStatus is the planning state of a content item.
type ContentStatus string

const (
	ContentStatusIdea      ContentStatus = "IDEA"
	ContentStatusScheduled ContentStatus = "SCHEDULED"
)

func (s ContentStatus) String() string { return string(s) }

func (s ContentStatus) IsValid() bool {
	switch s {
	case ContentStatusIdea, ContentStatusScheduled:
		return true
	}
	return false
}

func ParseContentStatusFromString(s string) (ContentStatus, error) {
	st := ContentStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid content status %q", ErrValidation, s)
	}
	return st, nil
}

const (
	// DefaultReminderLeadHours is the column default applied when the CRUD layer
	// omits a lead. An explicit 0 is a real lead.
	DefaultReminderLeadHours = 24
	DefaultDailyDigestTime   = "09:00"
)

// ContentItem is a planned social-media post. It is owned by the CRUD layer and
// only read here.
type ContentItem struct {
	ID                   string
	OwnerID              string
	Title                string
	Body                 string
	Platform             string
	Status               ContentStatus
	ScheduledAt          *time.Time
	NotificationsEnabled bool
	ReminderLeadHours    int
	DailyDigestTime      string
	MediaKeys            []string
	CompletedAt          *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

func (c *ContentItem) Validate() error {
	if strings.TrimSpace(c.OwnerID) == "" {
		return fmt.Errorf("%w: owner id is required", ErrValidation)
	}
	if !c.Status.IsValid() {
		return fmt.Errorf("%w: invalid status %q", ErrValidation, c.Status)
	}
	if c.Status == ContentStatusScheduled && c.ScheduledAt == nil {
		return fmt.Errorf("%w: scheduled items require scheduledAt", ErrValidation)
	}
	if c.ReminderLeadHours < 0 {
		return fmt.Errorf("%w: reminder lead hours must be >= 0", ErrValidation)
	}
	if strings.TrimSpace(c.DailyDigestTime) != "" {
		if _, err := ParseClock(c.DailyDigestTime); err != nil {
			return err
		}
	}
	return nil
}

// LeadHours returns the reminder lead. Zero reminds at scheduledAt itself.
func (c ContentItem) LeadHours() int {
	if c.ReminderLeadHours < 0 {
		return 0
	}
	return c.ReminderLeadHours
}

// ReminderAt returns scheduledAt minus the lead. The zero time is returned for
// unscheduled items.
func (c ContentItem) ReminderAt() time.Time {
	if c.ScheduledAt == nil {
		return time.Time{}
	}
	return c.ScheduledAt.Add(-time.Duration(c.LeadHours()) * time.Hour)
}

// IsSchedulable reports whether the item should currently own pending reminders.
func (c ContentItem) IsSchedulable() bool {
	return c.NotificationsEnabled && c.Status == ContentStatusScheduled && c.ScheduledAt != nil
}

func (c ContentItem) IsCompleted() bool {
	return c.CompletedAt != nil
}

// IsOverdue reports whether a scheduled, opted-in item passed its instant without
// being marked complete.
func (c ContentItem) IsOverdue(now time.Time) bool {
	return c.IsSchedulable() && !c.IsCompleted() && c.ScheduledAt.Before(now)
}

// DigestClock returns the item's preferred digest time of day.
func (c ContentItem) DigestClock() Clock {
	clock, err := ParseClock(c.DailyDigestTime)
	if err != nil {
		return DefaultDigestClock()
	}
	return clock
}

// DisplayTitle never returns an empty string so rendered messages stay readable.
func (c ContentItem) DisplayTitle() string {
	if title := strings.TrimSpace(c.Title); title != "" {
		return title
	}
	return "Untitled"
}
