package provider

import (
	"fmt"
	"strings"
	"time"
)

// EmailEvent is an asynchronous delivery notice posted back by the email
// provider, e.g. email.delivered or email.bounced.
type EmailEvent struct {
	Type      string         `json:"type"`
	CreatedAt time.Time      `json:"created_at"`
	Data      EmailEventData `json:"data"`
}

type EmailEventData struct {
	EmailID string   `json:"email_id"`
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
}

func (e EmailEvent) Validate() error {
	if strings.TrimSpace(e.Type) == "" {
		return fmt.Errorf("event type is required")
	}
	return nil
}

// IsFailure reports whether the event means the message did not reach the inbox.
func (e EmailEvent) IsFailure() bool {
	switch e.Type {
	case "email.bounced", "email.complained", "email.failed":
		return true
	}
	return false
}
