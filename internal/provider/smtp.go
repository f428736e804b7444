package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/textproto"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/mail.v2"
)

const defaultSMTPTimeout = 15 * time.Second

type smtpSender interface {
	DialAndSend(m ...*mail.Message) error
}

// SMTPMailer sends email through a plain SMTP relay.
type SMTPMailer struct {
	sender smtpSender
	host   string
}

func NewSMTPMailer(host string, port int, username, password string) (*SMTPMailer, error) {
	if strings.TrimSpace(host) == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if port <= 0 {
		return nil, fmt.Errorf("smtp port must be positive")
	}

	dialer := mail.NewDialer(host, port, username, password)
	dialer.Timeout = defaultSMTPTimeout

	return newSMTPMailer(dialer, host), nil
}

func newSMTPMailer(sender smtpSender, host string) *SMTPMailer {
	return &SMTPMailer{sender: sender, host: host}
}

func (m *SMTPMailer) Name() string { return "smtp" }

func (m *SMTPMailer) Send(ctx context.Context, email Email) (*SendResult, error) {
	if m == nil || m.sender == nil {
		return nil, fmt.Errorf("mailer is not initialized")
	}
	if err := email.Validate(); err != nil {
		return nil, &ProviderError{Message: "invalid email", Cause: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, &ProviderError{Message: "smtp send canceled", Cause: err}
	}

	messageID := fmt.Sprintf("<%s@%s>", uuid.NewString(), m.host)

	message := mail.NewMessage()
	message.SetHeader("From", email.From)
	message.SetHeader("To", email.To)
	message.SetHeader("Subject", email.Subject)
	message.SetHeader("Message-ID", messageID)
	message.SetBody("text/html", email.HTML)

	if err := m.sender.DialAndSend(message); err != nil {
		return nil, classifySMTPError(err)
	}

	return &SendResult{
		StatusCode: 250,
		MessageID:  messageID,
	}, nil
}

// classifySMTPError treats 4xx replies and network failures as transient and 5xx
// replies as permanent.
func classifySMTPError(err error) *ProviderError {
	var protoErr *textproto.Error
	if errors.As(err, &protoErr) {
		return &ProviderError{
			StatusCode: protoErr.Code,
			Message:    "smtp server rejected message",
			Transient:  protoErr.Code >= 400 && protoErr.Code < 500,
			Cause:      err,
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return &ProviderError{Message: "smtp connection failed", Transient: true, Cause: err}
	}

	return &ProviderError{Message: "smtp send failed", Transient: true, Cause: err}
}
