package provider

import (
	"context"
	"errors"
	"mime"
	"net"
	"net/textproto"
	"strings"
	"testing"

	"gopkg.in/mail.v2"
)

type fakeSMTPSender struct {
	err      error
	messages []*mail.Message
}

func (f *fakeSMTPSender) DialAndSend(m ...*mail.Message) error {
	f.messages = append(f.messages, m...)
	return f.err
}

func TestSMTPMailerSendSuccess(t *testing.T) {
	t.Parallel()

	sender := &fakeSMTPSender{}
	m := newSMTPMailer(sender, "smtp.example.com")

	email := testEmail()
	resp, err := m.Send(context.Background(), email)
	if err != nil {
		t.Fatalf("Send() unexpected error: %v", err)
	}
	if len(sender.messages) != 1 {
		t.Fatalf("messages sent = %d, want 1", len(sender.messages))
	}

	msg := sender.messages[0]
	if got := msg.GetHeader("To"); len(got) != 1 || got[0] != email.To {
		t.Fatalf("To header = %v, want %s", got, email.To)
	}
	if got := decodedHeader(t, msg, "Subject"); got != email.Subject {
		t.Fatalf("Subject header = %q, want %q", got, email.Subject)
	}
	if !strings.HasSuffix(resp.MessageID, "@smtp.example.com>") {
		t.Fatalf("MessageID = %q, want host suffix", resp.MessageID)
	}
	if got := msg.GetHeader("Message-ID"); len(got) != 1 || got[0] != resp.MessageID {
		t.Fatalf("Message-ID header = %v, want %s", got, resp.MessageID)
	}
}

func TestSMTPMailerSendEncodesNonASCIISubject(t *testing.T) {
	t.Parallel()

	sender := &fakeSMTPSender{}
	m := newSMTPMailer(sender, "smtp.example.com")

	email := testEmail()
	email.Subject = "📬 Your daily digest"
	if _, err := m.Send(context.Background(), email); err != nil {
		t.Fatalf("Send() unexpected error: %v", err)
	}

	raw := sender.messages[0].GetHeader("Subject")
	if len(raw) != 1 || !strings.HasPrefix(raw[0], "=?UTF-8?") {
		t.Fatalf("raw Subject header = %v, want RFC 2047 encoded word", raw)
	}
	if got := decodedHeader(t, sender.messages[0], "Subject"); got != email.Subject {
		t.Fatalf("decoded Subject = %q, want %q", got, email.Subject)
	}
}

func decodedHeader(t *testing.T, msg *mail.Message, field string) string {
	t.Helper()

	values := msg.GetHeader(field)
	if len(values) != 1 {
		t.Fatalf("%s header = %v, want exactly one value", field, values)
	}
	decoded, err := new(mime.WordDecoder).DecodeHeader(values[0])
	if err != nil {
		t.Fatalf("decode %s header %q: %v", field, values[0], err)
	}
	return decoded
}

func TestSMTPMailerErrorClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		err           error
		wantTransient bool
		wantStatus    int
	}{
		{name: "mailbox busy", err: &textproto.Error{Code: 450, Msg: "mailbox busy"}, wantTransient: true, wantStatus: 450},
		{name: "no such user", err: &textproto.Error{Code: 550, Msg: "no such user"}, wantTransient: false, wantStatus: 550},
		{name: "connection refused", err: &net.OpError{Op: "dial", Err: errors.New("connection refused")}, wantTransient: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m := newSMTPMailer(&fakeSMTPSender{err: tt.err}, "smtp.example.com")
			_, err := m.Send(context.Background(), testEmail())
			if err == nil {
				t.Fatal("expected error")
			}

			var providerErr *ProviderError
			if !errors.As(err, &providerErr) {
				t.Fatalf("expected ProviderError, got %T", err)
			}
			if providerErr.Transient != tt.wantTransient {
				t.Fatalf("Transient = %v, want %v", providerErr.Transient, tt.wantTransient)
			}
			if providerErr.StatusCode != tt.wantStatus {
				t.Fatalf("StatusCode = %d, want %d", providerErr.StatusCode, tt.wantStatus)
			}
		})
	}
}

func TestSMTPMailerCanceledContext(t *testing.T) {
	t.Parallel()

	sender := &fakeSMTPSender{}
	m := newSMTPMailer(sender, "smtp.example.com")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Send(ctx, testEmail())
	if err == nil {
		t.Fatal("expected error for canceled context")
	}
	if IsTransient(err) {
		t.Fatal("canceled send should not be transient")
	}
	if len(sender.messages) != 0 {
		t.Fatal("no message should be sent after cancellation")
	}
}

func TestNewSMTPMailerValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewSMTPMailer("", 587, "", ""); err == nil {
		t.Fatal("expected error for missing host")
	}
	if _, err := NewSMTPMailer("smtp.example.com", 0, "", ""); err == nil {
		t.Fatal("expected error for invalid port")
	}
}
