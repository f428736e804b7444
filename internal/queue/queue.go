package queue

import (
	"context"

	"github.com/kursadbilgin/content-reminders/internal/domain"
)

// Publisher publishes dispatch messages to a queue.
type Publisher interface {
	Publish(ctx context.Context, queue string, msg NotificationMessage) error
	Close() error
}

// MessageHandler handles a consumed queue message.
type MessageHandler func(ctx context.Context, msg NotificationMessage) error

// Consumer consumes dispatch messages from a queue.
type Consumer interface {
	Consume(ctx context.Context, queue string, handler MessageHandler) error
	Close() error
}

const (
	// DispatchQueue carries "dispatch this record now" work for the email workers.
	DispatchQueue = "reminders.dispatch"

	dispatchRoutingKey = "dispatch"

	// queueMaxPriority is the RabbitMQ x-max-priority value for the work queue.
	queueMaxPriority int32 = 3
)

// DLQName returns the dead-letter queue name for a work queue.
func DLQName(queue string) string {
	return "dlq." + queue
}

func WorkQueueNames() []string {
	return []string{DispatchQueue}
}

func DLQNames() []string {
	return []string{DLQName(DispatchQueue)}
}

// PriorityValue maps a notification kind to a RabbitMQ message priority. Overdue
// alerts jump ahead of routine reminders, digests go last.
func PriorityValue(kind domain.Kind) uint8 {
	switch kind {
	case domain.KindOverdue:
		return 3
	case domain.KindReminder, domain.KindPublished:
		return 2
	case domain.KindDailyDigest:
		return 1
	default:
		return 0
	}
}
