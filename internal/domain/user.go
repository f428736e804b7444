package domain

import (
	"fmt"
	"strings"
	"time"
)

// NotificationPreferences are the per-user delivery settings kept by the user directory.
type NotificationPreferences struct {
	DailyDigest bool
	DigestTime  string
	Timezone    string
}

// Location resolves the preferred IANA timezone, defaulting to UTC.
func (p NotificationPreferences) Location() (*time.Location, error) {
	name := strings.TrimSpace(p.Timezone)
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC, fmt.Errorf("%w: invalid timezone %q", ErrValidation, p.Timezone)
	}
	return loc, nil
}

// User is the subset of the user directory the notification engine needs.
type User struct {
	ID          string
	Email       *string
	Preferences NotificationPreferences
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// DeliverableEmail returns the address email can be sent to. Anonymous users have none.
func (u *User) DeliverableEmail() (string, bool) {
	if u == nil || u.Email == nil {
		return "", false
	}
	email := strings.TrimSpace(*u.Email)
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return "", false
	}
	return email, true
}
