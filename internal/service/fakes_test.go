package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/kursadbilgin/content-reminders/internal/domain"
	"github.com/kursadbilgin/content-reminders/internal/provider"
	"github.com/kursadbilgin/content-reminders/internal/queue"
	"github.com/kursadbilgin/content-reminders/internal/repository"
)

var errUniqueViolation = errors.New(`duplicate key value violates unique constraint "uq_notifications_pending_schedule"`)

// memNotificationRepo keeps records in memory and enforces the pending schedule
// unique index the way Postgres does.
type memNotificationRepo struct {
	mu      sync.Mutex
	records map[string]*domain.NotificationRecord

	claimErr   error
	markSentFn func(id string) error
}

func newMemNotificationRepo() *memNotificationRepo {
	return &memNotificationRepo{records: make(map[string]*domain.NotificationRecord)}
}

func (r *memNotificationRepo) conflicts(n *domain.NotificationRecord) bool {
	if n.Sent || !n.Kind.IsScheduleOwned() || n.ContentItemID == nil {
		return false
	}
	for _, existing := range r.records {
		if existing.ID == n.ID || existing.Sent || existing.Kind != n.Kind || existing.ContentItemID == nil {
			continue
		}
		if *existing.ContentItemID == *n.ContentItemID {
			return true
		}
	}
	return false
}

func (r *memNotificationRepo) insert(n *domain.NotificationRecord) error {
	if _, ok := r.records[n.ID]; ok {
		return errUniqueViolation
	}
	if r.conflicts(n) {
		return errUniqueViolation
	}
	copied := *n
	r.records[n.ID] = &copied
	return nil
}

func (r *memNotificationRepo) Create(ctx context.Context, n *domain.NotificationRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.insert(n)
}

func (r *memNotificationRepo) GetByID(ctx context.Context, id string) (*domain.NotificationRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *record
	return &copied, nil
}

func (r *memNotificationRepo) List(ctx context.Context, params repository.ListParams) ([]domain.NotificationRecord, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.NotificationRecord, 0)
	for _, record := range r.records {
		if params.OwnerID != nil && record.OwnerID != *params.OwnerID {
			continue
		}
		if params.Kind != nil && record.Kind != *params.Kind {
			continue
		}
		if params.Sent != nil && record.Sent != *params.Sent {
			continue
		}
		out = append(out, *record)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueAt.After(out[j].DueAt) })
	return out, int64(len(out)), nil
}

func (r *memNotificationRepo) purge(itemID string) int64 {
	var purged int64
	for id, record := range r.records {
		if record.Sent || !record.Kind.IsScheduleOwned() || record.ContentItemID == nil || *record.ContentItemID != itemID {
			continue
		}
		delete(r.records, id)
		purged++
	}
	return purged
}

func (r *memNotificationRepo) ReplacePending(ctx context.Context, itemID string, records []*domain.NotificationRecord) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := make(map[string]*domain.NotificationRecord, len(r.records))
	for id, record := range r.records {
		snapshot[id] = record
	}

	purged := r.purge(itemID)
	for _, record := range records {
		if err := r.insert(record); err != nil {
			r.records = snapshot
			return 0, err
		}
	}
	return purged, nil
}

func (r *memNotificationRepo) PurgePending(ctx context.Context, itemID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.purge(itemID), nil
}

func (r *memNotificationRepo) ClaimForDispatch(ctx context.Context, id string, now time.Time, lease time.Duration) (*domain.NotificationRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.claimErr != nil {
		return nil, r.claimErr
	}
	record, ok := r.records[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if record.Sent || record.IsClaimed(now) {
		return nil, nil
	}
	until := now.Add(lease)
	record.ClaimedUntil = &until
	copied := *record
	return &copied, nil
}

func (r *memNotificationRepo) MarkSent(ctx context.Context, id string, providerMsgID *string, sentAt time.Time) error {
	if r.markSentFn != nil {
		if err := r.markSentFn(id); err != nil {
			return err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[id]
	if !ok {
		return domain.ErrNotFound
	}
	if record.Sent {
		return nil
	}
	record.Sent = true
	record.SentAt = &sentAt
	record.ProviderMessageID = providerMsgID
	record.ClaimedUntil = nil
	return nil
}

func (r *memNotificationRepo) ReleaseClaim(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if record, ok := r.records[id]; ok && !record.Sent {
		record.ClaimedUntil = nil
	}
	return nil
}

func (r *memNotificationRepo) ListDueUnsent(ctx context.Context, dueBefore time.Time, offset, limit int) ([]domain.NotificationRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	due := make([]domain.NotificationRecord, 0)
	for _, record := range r.records {
		if !record.Sent && !record.DueAt.After(dueBefore) {
			due = append(due, *record)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].DueAt.Equal(due[j].DueAt) {
			return due[i].ID < due[j].ID
		}
		return due[i].DueAt.Before(due[j].DueAt)
	})

	if offset >= len(due) {
		return nil, nil
	}
	due = due[offset:]
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (r *memNotificationRepo) ExistsByItemKindSince(ctx context.Context, itemID string, kind domain.Kind, since time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, record := range r.records {
		if record.ContentItemID != nil && *record.ContentItemID == itemID && record.Kind == kind && !record.DueAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

func (r *memNotificationRepo) ExistsByOwnerKindDueAt(ctx context.Context, ownerID string, kind domain.Kind, dueAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, record := range r.records {
		if record.OwnerID == ownerID && record.Kind == kind && record.DueAt.Equal(dueAt) {
			return true, nil
		}
	}
	return false, nil
}

// byItem returns the item's records of a kind, filtered by sent state.
func (r *memNotificationRepo) byItem(itemID string, kind domain.Kind, sent bool) []domain.NotificationRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.NotificationRecord, 0)
	for _, record := range r.records {
		if record.ContentItemID != nil && *record.ContentItemID == itemID && record.Kind == kind && record.Sent == sent {
			out = append(out, *record)
		}
	}
	return out
}

func (r *memNotificationRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

type fakeItemRepo struct {
	mu    sync.Mutex
	items map[string]domain.ContentItem

	queryErr error
}

func newFakeItemRepo(items ...domain.ContentItem) *fakeItemRepo {
	repo := &fakeItemRepo{items: make(map[string]domain.ContentItem, len(items))}
	for _, item := range items {
		repo.items[item.ID] = item
	}
	return repo
}

func (f *fakeItemRepo) put(item domain.ContentItem) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[item.ID] = item
}

func (f *fakeItemRepo) delete(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, id)
}

func (f *fakeItemRepo) GetByID(ctx context.Context, id string) (*domain.ContentItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	item, ok := f.items[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &item, nil
}

func (f *fakeItemRepo) Query(ctx context.Context, ownerID string, filter repository.ItemFilter) ([]domain.ContentItem, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]domain.ContentItem, 0)
	for _, item := range f.items {
		if item.OwnerID != ownerID {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, item.Status) {
			continue
		}
		if filter.ScheduledFrom != nil && (item.ScheduledAt == nil || item.ScheduledAt.Before(*filter.ScheduledFrom)) {
			continue
		}
		if filter.ScheduledBefore != nil && (item.ScheduledAt == nil || !item.ScheduledAt.Before(*filter.ScheduledBefore)) {
			continue
		}
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeItemRepo) ListOverdue(ctx context.Context, now time.Time, afterID string, limit int) ([]domain.ContentItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]domain.ContentItem, 0)
	for _, item := range f.items {
		if item.IsOverdue(now) && item.ID > afterID {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func containsStatus(statuses []domain.ContentStatus, status domain.ContentStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

type fakeUserRepo struct {
	users    map[string]domain.User
	getErr   error
	listErr  error
	listCall int
}

func newFakeUserRepo(users ...domain.User) *fakeUserRepo {
	repo := &fakeUserRepo{users: make(map[string]domain.User, len(users))}
	for _, user := range users {
		repo.users[user.ID] = user
	}
	return repo
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	user, ok := f.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &user, nil
}

func (f *fakeUserRepo) ListDigestRecipients(ctx context.Context, afterID string, limit int) ([]domain.User, error) {
	f.listCall++
	if f.listErr != nil {
		return nil, f.listErr
	}

	out := make([]domain.User, 0)
	for _, user := range f.users {
		if _, ok := user.DeliverableEmail(); ok && user.Preferences.DailyDigest && user.ID > afterID {
			out = append(out, user)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeAttemptRepo struct {
	mu       sync.Mutex
	attempts []domain.DeliveryAttempt

	createFn func(ctx context.Context, a *domain.DeliveryAttempt) error
	countFn  func(ctx context.Context, notificationID string) (int64, error)
}

func (f *fakeAttemptRepo) Create(ctx context.Context, a *domain.DeliveryAttempt) error {
	if f.createFn != nil {
		if err := f.createFn(ctx, a); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts = append(f.attempts, *a)
	return nil
}

func (f *fakeAttemptRepo) GetByNotificationID(ctx context.Context, notificationID string) ([]domain.DeliveryAttempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]domain.DeliveryAttempt, 0)
	for _, attempt := range f.attempts {
		if attempt.NotificationID == notificationID {
			out = append(out, attempt)
		}
	}
	return out, nil
}

func (f *fakeAttemptRepo) CountByNotificationID(ctx context.Context, notificationID string) (int64, error) {
	if f.countFn != nil {
		return f.countFn(ctx, notificationID)
	}
	attempts, _ := f.GetByNotificationID(ctx, notificationID)
	return int64(len(attempts)), nil
}

type fakeJobRunRepo struct {
	mu       sync.Mutex
	created  []domain.JobRun
	finished []domain.JobRun
}

func (f *fakeJobRunRepo) Create(ctx context.Context, run *domain.JobRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, *run)
	return nil
}

func (f *fakeJobRunRepo) GetByID(ctx context.Context, id string) (*domain.JobRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.finished) - 1; i >= 0; i-- {
		if f.finished[i].ID == id {
			run := f.finished[i]
			return &run, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeJobRunRepo) Finish(ctx context.Context, run *domain.JobRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finished = append(f.finished, *run)
	return nil
}

// fakeTriggerStore is an in-memory trigger.Store.
type fakeTriggerStore struct {
	mu    sync.Mutex
	armed map[string]time.Time

	armErr error
	popErr error
}

func newFakeTriggerStore() *fakeTriggerStore {
	return &fakeTriggerStore{armed: make(map[string]time.Time)}
}

func (f *fakeTriggerStore) Arm(ctx context.Context, id string, at time.Time) error {
	if f.armErr != nil {
		return f.armErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.armed[id] = at
	return nil
}

func (f *fakeTriggerStore) Disarm(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.armed, id)
	return nil
}

func (f *fakeTriggerStore) IsArmed(ctx context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.armed[id]
	return ok, nil
}

func (f *fakeTriggerStore) PopDue(ctx context.Context, now time.Time, limit int) ([]string, error) {
	if f.popErr != nil {
		return nil, f.popErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	due := make([]string, 0)
	for id, at := range f.armed {
		if !at.After(now) {
			due = append(due, id)
		}
	}
	sort.Strings(due)
	if len(due) > limit {
		due = due[:limit]
	}
	for _, id := range due {
		delete(f.armed, id)
	}
	return due, nil
}

func (f *fakeTriggerStore) at(id string) (time.Time, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	at, ok := f.armed[id]
	return at, ok
}

type fakeMailer struct {
	mu     sync.Mutex
	sent   []provider.Email
	sendFn func(ctx context.Context, email provider.Email) (*provider.SendResult, error)
}

func (f *fakeMailer) Name() string { return "fake" }

func (f *fakeMailer) Send(ctx context.Context, email provider.Email) (*provider.SendResult, error) {
	f.mu.Lock()
	f.sent = append(f.sent, email)
	f.mu.Unlock()

	if f.sendFn != nil {
		return f.sendFn(ctx, email)
	}
	return &provider.SendResult{StatusCode: 200, MessageID: "msg-1"}, nil
}

func (f *fakeMailer) calls() []provider.Email {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]provider.Email(nil), f.sent...)
}

type fakeRateLimiter struct {
	allowFn func(ctx context.Context, bucket string) (bool, error)
	waitFn  func(ctx context.Context, bucket string) error
}

func (f *fakeRateLimiter) Allow(ctx context.Context, bucket string) (bool, error) {
	if f.allowFn != nil {
		return f.allowFn(ctx, bucket)
	}
	return true, nil
}

func (f *fakeRateLimiter) Wait(ctx context.Context, bucket string) error {
	if f.waitFn != nil {
		return f.waitFn(ctx, bucket)
	}
	return nil
}

type fakePublisher struct {
	mu        sync.Mutex
	published []queue.NotificationMessage
	publishFn func(ctx context.Context, queueName string, msg queue.NotificationMessage) error
}

func (f *fakePublisher) Publish(ctx context.Context, queueName string, msg queue.NotificationMessage) error {
	if f.publishFn != nil {
		if err := f.publishFn(ctx, queueName, msg); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, msg)
	return nil
}

func (f *fakePublisher) Close() error { return nil }

func (f *fakePublisher) messages() []queue.NotificationMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]queue.NotificationMessage(nil), f.published...)
}

type fakeConsumer struct {
	consumeFn func(ctx context.Context, queueName string, handler queue.MessageHandler) error
}

func (f *fakeConsumer) Consume(ctx context.Context, queueName string, handler queue.MessageHandler) error {
	if f.consumeFn != nil {
		return f.consumeFn(ctx, queueName, handler)
	}
	<-ctx.Done()
	return nil
}

func (f *fakeConsumer) Close() error { return nil }

type fakeDispatcher struct {
	mu         sync.Mutex
	ids        []string
	dispatchFn func(ctx context.Context, id string) (*DispatchResult, error)
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, id string) (*DispatchResult, error) {
	f.mu.Lock()
	f.ids = append(f.ids, id)
	f.mu.Unlock()

	if f.dispatchFn != nil {
		return f.dispatchFn(ctx, id)
	}
	return &DispatchResult{NotificationID: id, Outcome: OutcomeDelivered}, nil
}
