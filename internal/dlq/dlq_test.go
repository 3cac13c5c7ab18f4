package dlq

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shaiso/Bastion/internal/domain"
	"github.com/shaiso/Bastion/internal/repo"
)

// fakeStore — in-memory Store для тестов.
type fakeStore struct {
	entries  map[uuid.UUID]*domain.DeadLetterEntry
	consumed map[uuid.UUID]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		entries:  make(map[uuid.UUID]*domain.DeadLetterEntry),
		consumed: make(map[uuid.UUID]bool),
	}
}

func (f *fakeStore) Insert(_ context.Context, e *domain.DeadLetterEntry) error {
	if _, ok := f.entries[e.ID]; ok {
		return repo.ErrAlreadyExists
	}
	f.entries[e.ID] = e
	return nil
}

func (f *fakeStore) GetByID(_ context.Context, id uuid.UUID) (*domain.DeadLetterEntry, error) {
	e, ok := f.entries[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	if f.consumed[id] {
		return nil, repo.ErrAlreadyConsumed
	}
	return e, nil
}

func (f *fakeStore) List(_ context.Context, queue domain.Queue, limit int) ([]domain.DeadLetterEntry, error) {
	var out []domain.DeadLetterEntry
	for id, e := range f.entries {
		if f.consumed[id] {
			continue
		}
		if queue != "" && e.Queue != queue {
			continue
		}
		out = append(out, *e)
	}
	return out, nil
}

func (f *fakeStore) MarkConsumed(_ context.Context, id uuid.UUID) error {
	if _, ok := f.entries[id]; !ok {
		return repo.ErrNotFound
	}
	if f.consumed[id] {
		return repo.ErrAlreadyConsumed
	}
	f.consumed[id] = true
	return nil
}

func (f *fakeStore) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := f.entries[id]; !ok {
		return repo.ErrNotFound
	}
	delete(f.entries, id)
	return nil
}

func (f *fakeStore) Stats(_ context.Context) ([]repo.QueueStat, error) {
	counts := make(map[domain.Queue]map[domain.JobKind]int)
	for id, e := range f.entries {
		if f.consumed[id] {
			continue
		}
		if counts[e.Queue] == nil {
			counts[e.Queue] = make(map[domain.JobKind]int)
		}
		counts[e.Queue][e.JobKind]++
	}
	var stats []repo.QueueStat
	for q, kinds := range counts {
		for k, c := range kinds {
			stats = append(stats, repo.QueueStat{Queue: q, JobKind: k, Count: c})
		}
	}
	return stats, nil
}

// fakePublisher записывает публикации.
type fakePublisher struct {
	published []struct {
		queue domain.Queue
		body  json.RawMessage
	}
	err error
}

func (f *fakePublisher) PublishRaw(_ context.Context, queue domain.Queue, body json.RawMessage) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, struct {
		queue domain.Queue
		body  json.RawMessage
	}{queue, body})
	return nil
}

// recordingAlerter считает алерты; может паниковать.
type recordingAlerter struct {
	alerts []uuid.UUID
	panic  bool
	err    error
}

func (a *recordingAlerter) Alert(_ context.Context, e *domain.DeadLetterEntry) error {
	if a.panic {
		panic("pager exploded")
	}
	a.alerts = append(a.alerts, e.ID)
	return a.err
}

func paymentJob() (*domain.Job, json.RawMessage) {
	job := &domain.Job{
		ID:          uuid.New(),
		Queue:       domain.QueuePayments,
		Kind:        domain.KindPaymentCapture,
		TenantID:    "tenant-1",
		Attempts:    5,
		MaxAttempts: 5,
	}
	raw, _ := json.Marshal(job)
	return job, raw
}

func TestService_MovePreservesJobData(t *testing.T) {
	store := newFakeStore()
	svc := New(Config{Store: store, Publisher: &fakePublisher{}})

	job, raw := paymentJob()
	if err := svc.Move(context.Background(), raw, job, errors.New("card network down")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entry := store.entries[job.ID]
	if entry == nil {
		t.Fatal("entry not stored")
	}
	if !bytes.Equal(entry.JobData, raw) {
		t.Error("job data must be preserved byte-for-byte")
	}
	if entry.Attempts != job.MaxAttempts {
		t.Errorf("attempts = %d, want %d", entry.Attempts, job.MaxAttempts)
	}
	if entry.Error != "card network down" {
		t.Errorf("error context lost: %q", entry.Error)
	}
}

func TestService_MoveIdempotentOnRedelivery(t *testing.T) {
	store := newFakeStore()
	alerter := &recordingAlerter{}
	svc := New(Config{Store: store, Publisher: &fakePublisher{}, Alerter: alerter})

	job, raw := paymentJob()
	if err := svc.Move(context.Background(), raw, job, errors.New("boom")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Redelivery того же job (воркер упал между записью и ack):
	// Move успешен, запись и алерт остаются одиночными.
	if err := svc.Move(context.Background(), raw, job, errors.New("boom")); err != nil {
		t.Fatalf("redelivered move must succeed: %v", err)
	}
	if len(store.entries) != 1 {
		t.Errorf("entries = %d, want 1", len(store.entries))
	}
	if len(alerter.alerts) != 1 {
		t.Errorf("alerts = %d, want 1", len(alerter.alerts))
	}
}

func TestService_MoveAlertsCriticalQueue(t *testing.T) {
	store := newFakeStore()
	alerter := &recordingAlerter{}
	svc := New(Config{Store: store, Publisher: &fakePublisher{}, Alerter: alerter})

	job, raw := paymentJob()
	svc.Move(context.Background(), raw, job, errors.New("boom"))

	if len(alerter.alerts) != 1 {
		t.Fatalf("critical queue must alert, got %d alerts", len(alerter.alerts))
	}

	// Некритическая очередь не алертит.
	notif := &domain.Job{
		ID: uuid.New(), Queue: domain.QueueNotifications,
		Kind: domain.KindNotification, TenantID: "t", Attempts: 3, MaxAttempts: 3,
	}
	rawNotif, _ := json.Marshal(notif)
	svc.Move(context.Background(), rawNotif, notif, errors.New("boom"))

	if len(alerter.alerts) != 1 {
		t.Errorf("non-critical queue must not alert, got %d alerts", len(alerter.alerts))
	}
}

func TestService_AlerterFailureDoesNotFailMove(t *testing.T) {
	store := newFakeStore()

	for _, alerter := range []*recordingAlerter{
		{err: errors.New("pagerduty 500")},
		{panic: true},
	} {
		svc := New(Config{Store: store, Publisher: &fakePublisher{}, Alerter: alerter})
		job, raw := paymentJob()

		if err := svc.Move(context.Background(), raw, job, errors.New("boom")); err != nil {
			t.Fatalf("alerter failure must not fail the DLQ write: %v", err)
		}
		if store.entries[job.ID] == nil {
			t.Fatal("entry must be stored despite alerter failure")
		}
	}
}

func TestService_RetryRepublishesExactPayload(t *testing.T) {
	store := newFakeStore()
	pub := &fakePublisher{}
	svc := New(Config{Store: store, Publisher: pub})

	job, raw := paymentJob()
	svc.Move(context.Background(), raw, job, errors.New("boom"))

	if err := svc.Retry(context.Background(), job.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(pub.published) != 1 {
		t.Fatalf("expected 1 publish, got %d", len(pub.published))
	}
	if pub.published[0].queue != domain.QueuePayments {
		t.Errorf("republished to wrong queue %s", pub.published[0].queue)
	}
	if !bytes.Equal(pub.published[0].body, raw) {
		t.Error("retry must re-enqueue the exact original payload")
	}

	// Запись потреблена — повторный retry отвечает конфликтом,
	// а не отсутствием записи.
	if err := svc.Retry(context.Background(), job.ID); !errors.Is(err, repo.ErrAlreadyConsumed) {
		t.Errorf("second retry of a consumed entry = %v, want ErrAlreadyConsumed", err)
	}
}

func TestService_RetryPublishFailureKeepsEntry(t *testing.T) {
	store := newFakeStore()
	pub := &fakePublisher{err: errors.New("mq down")}
	svc := New(Config{Store: store, Publisher: pub})

	job, raw := paymentJob()
	svc.Move(context.Background(), raw, job, errors.New("boom"))

	if err := svc.Retry(context.Background(), job.ID); err == nil {
		t.Fatal("expected retry error")
	}
	if store.consumed[job.ID] {
		t.Error("entry must not be consumed if republish failed")
	}
}

func TestService_BulkRetryContinuesOnFailure(t *testing.T) {
	store := newFakeStore()
	pub := &fakePublisher{}
	svc := New(Config{Store: store, Publisher: pub})

	job1, raw1 := paymentJob()
	job2, raw2 := paymentJob()
	svc.Move(context.Background(), raw1, job1, errors.New("boom"))
	svc.Move(context.Background(), raw2, job2, errors.New("boom"))

	missing := uuid.New()
	res := svc.BulkRetry(context.Background(), []uuid.UUID{job1.ID, missing, job2.ID})

	if len(res.Succeeded) != 2 {
		t.Errorf("expected 2 succeeded, got %d", len(res.Succeeded))
	}
	if len(res.Failed) != 1 {
		t.Errorf("expected 1 failed, got %v", res.Failed)
	}
	if _, ok := res.Failed[missing.String()]; !ok {
		t.Error("missing id must be reported in Failed")
	}
}

func TestService_BulkDelete(t *testing.T) {
	store := newFakeStore()
	svc := New(Config{Store: store, Publisher: &fakePublisher{}})

	job, raw := paymentJob()
	svc.Move(context.Background(), raw, job, errors.New("boom"))

	res := svc.BulkDelete(context.Background(), []uuid.UUID{job.ID})
	if len(res.Succeeded) != 1 {
		t.Fatalf("expected delete to succeed: %v", res.Failed)
	}
	if _, ok := store.entries[job.ID]; ok {
		t.Error("entry must be deleted")
	}
}

func TestService_Stats(t *testing.T) {
	store := newFakeStore()
	svc := New(Config{Store: store, Publisher: &fakePublisher{}})

	job, raw := paymentJob()
	svc.Move(context.Background(), raw, job, errors.New("boom"))

	stats, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stats) != 1 || stats[0].Count != 1 {
		t.Errorf("unexpected stats %v", stats)
	}
}
