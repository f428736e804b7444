package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestFailureReason(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "throttled", err: &ProviderError{StatusCode: 429, Transient: true}, want: ReasonTransient},
		{name: "bad address", err: &ProviderError{StatusCode: 422, Message: "invalid email"}, want: ReasonPermanent},
		{name: "deadline", err: fmt.Errorf("send: %w", context.DeadlineExceeded), want: ReasonTransient},
		{name: "canceled", err: context.Canceled, want: ReasonPermanent},
		{name: "unknown", err: errors.New("boom"), want: ReasonPermanent},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := FailureReason(tt.err); got != tt.want {
				t.Fatalf("FailureReason() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestProviderErrorMessage(t *testing.T) {
	t.Parallel()

	err := &ProviderError{StatusCode: 550, Message: "mailbox unavailable", Cause: errors.New("no such user")}
	got := err.Error()
	want := "notification email not delivered: status=550: mailbox unavailable: no such user"
	if got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
	if !strings.Contains(fmt.Sprintf("%v", fmt.Errorf("dispatch: %w", err)), "status=550") {
		t.Fatal("wrapped error lost the status code")
	}
}
