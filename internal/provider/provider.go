package provider

import (
	"context"
	"fmt"
	"strings"
)

// Email is a single rendered message ready for the transport.
type Email struct {
	From    string
	To      string
	Subject string
	HTML    string
}

func (e Email) Validate() error {
	if strings.TrimSpace(e.From) == "" {
		return fmt.Errorf("from address is required")
	}
	if strings.TrimSpace(e.To) == "" {
		return fmt.Errorf("recipient is required")
	}
	if strings.TrimSpace(e.Subject) == "" {
		return fmt.Errorf("subject is required")
	}
	if strings.TrimSpace(e.HTML) == "" {
		return fmt.Errorf("html body is required")
	}
	return nil
}

// Mailer is the outbound email delivery port.
type Mailer interface {
	// Name identifies the transport, used as the rate limit bucket.
	Name() string
	Send(ctx context.Context, email Email) (*SendResult, error)
}

// SendResult stores transport call metadata for audit and persistence.
type SendResult struct {
	StatusCode int
	Body       string
	MessageID  string
}
