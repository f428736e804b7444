package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/kursadbilgin/content-reminders/internal/domain"
	"github.com/kursadbilgin/content-reminders/internal/queue"
	"go.uber.org/zap"
)

func newTestPendingSweeper(t *testing.T, engine *testEngine, publisher *fakePublisher) *PendingSweeper {
	t.Helper()

	sweeper, err := NewPendingSweeper(engine.notifications, engine.attempts, engine.triggers, publisher, PendingSweeperConfig{}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewPendingSweeper() error = %v", err)
	}
	sweeper.now = func() time.Time { return testNow }
	return sweeper
}

func seedDue(t *testing.T, engine *testEngine, id string, dueAt time.Time) {
	t.Helper()

	itemID := "item-" + id
	if err := engine.notifications.Create(context.Background(), &domain.NotificationRecord{
		ID:            id,
		OwnerID:       "user-1",
		ContentItemID: &itemID,
		Kind:          domain.KindPublished,
		Message:       "due",
		DueAt:         dueAt,
	}); err != nil {
		t.Fatalf("seed Create() error = %v", err)
	}
}

func TestNewPendingSweeperAppliesDefaults(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t, nil)
	sweeper := newTestPendingSweeper(t, engine, &fakePublisher{})

	if sweeper.interval != defaultPendingSweepInterval {
		t.Fatalf("interval = %s, want %s", sweeper.interval, defaultPendingSweepInterval)
	}
	if sweeper.grace != defaultPendingSweepGrace {
		t.Fatalf("grace = %s, want %s", sweeper.grace, defaultPendingSweepGrace)
	}
	if sweeper.limit != defaultPendingSweepLimit || sweeper.maxAttempts != defaultMaxDeliveryAttempts {
		t.Fatalf("limit = %d, maxAttempts = %d", sweeper.limit, sweeper.maxAttempts)
	}

	if _, err := NewPendingSweeper(engine.notifications, engine.attempts, engine.triggers, nil, PendingSweeperConfig{}, nil); err == nil {
		t.Fatal("expected error for missing publisher")
	}
}

func TestPendingSweeperRepublishesStrandedRecords(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t, nil)
	publisher := &fakePublisher{}
	sweeper := newTestPendingSweeper(t, engine, publisher)

	seedDue(t, engine, "stranded", testNow.Add(-time.Hour))
	seedDue(t, engine, "recent", testNow.Add(-time.Minute))
	seedDue(t, engine, "armed", testNow.Add(-time.Hour))
	seedDue(t, engine, "claimed", testNow.Add(-time.Hour))
	seedDue(t, engine, "exhausted", testNow.Add(-time.Hour))

	if err := engine.triggers.Arm(context.Background(), "armed", testNow.Add(time.Minute)); err != nil {
		t.Fatalf("Arm() error = %v", err)
	}
	if _, err := engine.notifications.ClaimForDispatch(context.Background(), "claimed", testNow, time.Minute); err != nil {
		t.Fatalf("ClaimForDispatch() error = %v", err)
	}
	for i := 0; i < defaultMaxDeliveryAttempts; i++ {
		_ = engine.attempts.Create(context.Background(), &domain.DeliveryAttempt{ID: fmt.Sprint(i), NotificationID: "exhausted"})
	}

	published, err := sweeper.sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep() error = %v", err)
	}
	if published != 1 {
		t.Fatalf("published = %d, want 1", published)
	}

	msgs := publisher.messages()
	if len(msgs) != 1 {
		t.Fatalf("messages = %d, want 1", len(msgs))
	}
	if msgs[0].NotificationID != "stranded" || msgs[0].Source != queue.SourceSweep || msgs[0].Kind != domain.KindPublished {
		t.Fatalf("message = %+v", msgs[0])
	}
}

func TestPendingSweeperPagesPastUnpublishedRecords(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t, nil)
	publisher := &fakePublisher{}
	sweeper := newTestPendingSweeper(t, engine, publisher)
	sweeper.limit = 2

	for i := 0; i < 5; i++ {
		seedDue(t, engine, fmt.Sprintf("n%d", i), testNow.Add(-time.Hour-time.Duration(i)*time.Minute))
	}

	published, err := sweeper.sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep() error = %v", err)
	}
	if published != 5 {
		t.Fatalf("published = %d, want 5", published)
	}
}

func TestPendingSweeperContinuesOnPublishError(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t, nil)
	publisher := &fakePublisher{
		publishFn: func(ctx context.Context, queueName string, msg queue.NotificationMessage) error {
			if queueName != queue.DispatchQueue {
				t.Fatalf("queue = %s, want %s", queueName, queue.DispatchQueue)
			}
			if msg.NotificationID == "n1" {
				return errors.New("broker unavailable")
			}
			return nil
		},
	}
	sweeper := newTestPendingSweeper(t, engine, publisher)

	seedDue(t, engine, "n1", testNow.Add(-2*time.Hour))
	seedDue(t, engine, "n2", testNow.Add(-time.Hour))

	published, err := sweeper.sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep() error = %v", err)
	}
	if published != 1 {
		t.Fatalf("published = %d, want 1", published)
	}
}

func TestPendingSweeperStartReturnsOnContextCancel(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t, nil)
	sweeper := newTestPendingSweeper(t, engine, &fakePublisher{})
	sweeper.interval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- sweeper.Start(ctx)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Start() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Start() did not return after cancel")
	}
}
