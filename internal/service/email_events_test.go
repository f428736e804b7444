package service

import (
	"context"
	"errors"
	"testing"

	"github.com/kursadbilgin/content-reminders/internal/domain"
	"github.com/kursadbilgin/content-reminders/internal/observability"
	"github.com/kursadbilgin/content-reminders/internal/provider"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestEmailEventRecorderLogsByOutcome(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.InfoLevel)
	recorder := NewEmailEventRecorder(zap.New(core))
	recorder.SetMetrics(observability.NewMetrics())

	events := []provider.EmailEvent{
		{Type: "email.delivered", Data: provider.EmailEventData{EmailID: "msg-1", To: []string{"a@example.com"}}},
		{Type: "email.bounced", Data: provider.EmailEventData{EmailID: "msg-2", To: []string{"b@example.com"}}},
	}
	for _, event := range events {
		if err := recorder.OnEmailEvent(context.Background(), event); err != nil {
			t.Fatalf("OnEmailEvent(%s) error = %v", event.Type, err)
		}
	}

	if got := logs.FilterLevelExact(zapcore.WarnLevel).FilterMessage("email delivery failed").Len(); got != 1 {
		t.Fatalf("warn logs = %d, want 1", got)
	}
	if got := logs.FilterMessage("email event received").Len(); got != 1 {
		t.Fatalf("info logs = %d, want 1", got)
	}
}

func TestEmailEventRecorderRejectsInvalidEvent(t *testing.T) {
	t.Parallel()

	recorder := NewEmailEventRecorder(nil)
	if err := recorder.OnEmailEvent(context.Background(), provider.EmailEvent{}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("OnEmailEvent() error = %v, want ErrValidation", err)
	}
}
