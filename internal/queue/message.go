package queue

import (
	"fmt"
	"strings"

	"github.com/kursadbilgin/content-reminders/internal/domain"
)

// Source says what asked for the dispatch. It only feeds logs and metrics.
type Source string

const (
	SourceTrigger    Source = "trigger"
	SourceRedispatch Source = "redispatch"
	SourceSweep      Source = "sweep"
)

// NotificationMessage is the broker payload for a single dispatch.
type NotificationMessage struct {
	NotificationID string      `json:"notificationId"`
	Kind           domain.Kind `json:"kind"`
	Source         Source      `json:"source,omitempty"`
	CorrelationID  string      `json:"correlationId,omitempty"`
}

func (m NotificationMessage) Validate() error {
	if strings.TrimSpace(m.NotificationID) == "" {
		return fmt.Errorf("notificationId is required")
	}
	if m.Kind != "" && !m.Kind.IsValid() {
		return fmt.Errorf("invalid kind %q", m.Kind)
	}
	return nil
}
