package domain

import "time"

// DeliveryAttempt records a single email transport invocation for a notification record.
type DeliveryAttempt struct {
	ID                string
	NotificationID    string
	Recipient         string
	StatusCode        *int
	ProviderMessageID *string
	Error             *string
	CreatedAt         time.Time
}

func (a *DeliveryAttempt) Succeeded() bool {
	return a != nil && a.Error == nil
}
