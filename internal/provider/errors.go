package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Failure reasons recorded against a notification whose email did not go out.
const (
	ReasonTransient = "transient_error"
	ReasonPermanent = "permanent_error"
)

// ProviderError is a failed reminder or digest email. The notification stays
// unsent either way; Transient says whether the sweep's next dispatch can succeed.
type ProviderError struct {
	StatusCode int
	Message    string
	Transient  bool
	Cause      error
}

func (e *ProviderError) Error() string {
	if e == nil {
		return "<nil>"
	}

	parts := make([]string, 0, 4)
	parts = append(parts, "notification email not delivered")

	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.StatusCode))
	}
	if msg := strings.TrimSpace(e.Message); msg != "" {
		parts = append(parts, msg)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}

	return strings.Join(parts, ": ")
}

func (e *ProviderError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// IsTransient reports whether redispatching the same notification could deliver it.
// Throttling, 5xx, SMTP 4xx and timeouts qualify; a bad address never does.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		return providerErr.Transient
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout() || netErr.Temporary()
	}

	return false
}

// FailureReason labels a send error for the notifications_failed metric.
func FailureReason(err error) string {
	if IsTransient(err) {
		return ReasonTransient
	}
	return ReasonPermanent
}
