package harness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/shaiso/Bastion/internal/breaker"
	"github.com/shaiso/Bastion/internal/domain"
	"github.com/shaiso/Bastion/internal/telemetry"
)

type fakeIdem struct {
	mu       sync.Mutex
	cached   map[string]json.RawMessage
	stored   map[string]json.RawMessage
	checkErr error
	storeErr error
}

func newFakeIdem() *fakeIdem {
	return &fakeIdem{
		cached: make(map[string]json.RawMessage),
		stored: make(map[string]json.RawMessage),
	}
}

func (f *fakeIdem) Check(_ context.Context, key string) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.checkErr != nil {
		return nil, f.checkErr
	}
	return f.cached[key], nil
}

func (f *fakeIdem) Store(_ context.Context, key string, _ domain.Queue, _ domain.JobKind, result json.RawMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.storeErr != nil {
		return f.storeErr
	}
	f.stored[key] = result
	return nil
}

type fakeLimiter struct {
	mu         sync.Mutex
	admit      bool
	acquireErr error
	wait       time.Duration
	acquired   int
	released   int
}

func (f *fakeLimiter) Acquire(_ context.Context, _, _ string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.acquireErr != nil {
		return false, f.acquireErr
	}
	if f.admit {
		f.acquired++
	}
	return f.admit, nil
}

func (f *fakeLimiter) Release(_ context.Context, _, _ string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released++
}

func (f *fakeLimiter) WaitTime(_ context.Context, _, _ string) (time.Duration, error) {
	return f.wait, nil
}

type movedEntry struct {
	raw   json.RawMessage
	job   *domain.Job
	cause error
}

type fakeDLQ struct {
	mu      sync.Mutex
	entries []movedEntry
	err     error
}

func (f *fakeDLQ) Move(_ context.Context, raw json.RawMessage, job *domain.Job, cause error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, movedEntry{raw: raw, job: job, cause: cause})
	return nil
}

// fakeOps фиксирует терминальную операцию доставки.
type fakeOps struct {
	acked     bool
	discarded bool
	requeued  bool
	retried   bool
	postponed bool
	after     time.Duration
}

func (f *fakeOps) Ack() error { f.acked = true; return nil }

func (f *fakeOps) Retry(_ context.Context, after time.Duration) error {
	f.retried = true
	f.after = after
	return nil
}

func (f *fakeOps) Postpone(_ context.Context, after time.Duration) error {
	f.postponed = true
	f.after = after
	return nil
}

func (f *fakeOps) Discard() error { f.discarded = true; return nil }
func (f *fakeOps) Requeue() error { f.requeued = true; return nil }

func (f *fakeOps) terminal(t *testing.T) string {
	t.Helper()
	ops := map[string]bool{
		"ack":      f.acked,
		"discard":  f.discarded,
		"requeue":  f.requeued,
		"retry":    f.retried,
		"postpone": f.postponed,
	}
	var called []string
	for name, v := range ops {
		if v {
			called = append(called, name)
		}
	}
	if len(called) != 1 {
		t.Fatalf("expected exactly one terminal op, got %v", called)
	}
	return called[0]
}

type env struct {
	harness *Harness
	idem    *fakeIdem
	limiter *fakeLimiter
	dlq     *fakeDLQ
}

func newEnv(t *testing.T, registry *Registry, breakerCfg breaker.Config) *env {
	t.Helper()
	idem := newFakeIdem()
	limiter := &fakeLimiter{admit: true}
	dlq := &fakeDLQ{}
	metrics := telemetry.NewMetrics(prometheus.NewRegistry())
	h := New(
		registry,
		idem,
		limiter,
		breaker.NewRegistry(breakerCfg),
		dlq,
		metrics,
		nil,
		Config{},
	)
	return &env{harness: h, idem: idem, limiter: limiter, dlq: dlq}
}

func notificationJob(attempts, maxAttempts int) (*domain.Job, json.RawMessage) {
	job := &domain.Job{
		ID:       uuid.New(),
		Queue:    domain.QueueNotifications,
		Kind:     domain.KindNotification,
		TenantID: "tenant-1",
		Payload: json.RawMessage(
			`{"recipient":"fan@example.com","template":"order-confirmed"}`,
		),
		Attempts:       attempts,
		MaxAttempts:    maxAttempts,
		IdempotencyKey: "notification.send:deadbeefdeadbeefdeadbeefdeadbeef",
	}
	body, _ := json.Marshal(job)
	return job, body
}

func staticProcessor(result string, err error) *Registry {
	r := NewRegistry()
	for _, kind := range []domain.JobKind{
		domain.KindPaymentCapture,
		domain.KindPaymentRefund,
		domain.KindTicketMint,
		domain.KindNotification,
	} {
		r.Register(kind, ProcessorFunc(func(context.Context, *domain.Job, any) (json.RawMessage, error) {
			if err != nil {
				return nil, err
			}
			return json.RawMessage(result), nil
		}))
	}
	return r
}

// recordOps возвращает ops и регистрирует проверку терминальной операции.
func recordOps(t *testing.T, want string) *fakeOps {
	t.Helper()
	ops := &fakeOps{}
	t.Cleanup(func() {
		if got := ops.terminal(t); got != want {
			t.Errorf("terminal op = %s, want %s", got, want)
		}
	})
	return ops
}

func TestHandle_SuccessStoresResultAndAcks(t *testing.T) {
	e := newEnv(t, staticProcessor(`{"message_id":"m-1"}`, nil), breaker.Config{})
	job, body := notificationJob(1, 5)

	e.harness.Handle(context.Background(), job, body, recordOps(t, "ack"))

	got, ok := e.idem.stored[job.IdempotencyKey]
	if !ok {
		t.Fatal("result not stored under idempotency key")
	}
	if string(got) != `{"message_id":"m-1"}` {
		t.Errorf("stored result = %s", got)
	}
	if e.limiter.released != 1 {
		t.Errorf("released = %d, want 1", e.limiter.released)
	}
}

func TestHandle_DuplicateAckedFromCache(t *testing.T) {
	called := false
	r := NewRegistry()
	r.Register(domain.KindNotification, ProcessorFunc(func(context.Context, *domain.Job, any) (json.RawMessage, error) {
		called = true
		return json.RawMessage(`{}`), nil
	}))

	e := newEnv(t, r, breaker.Config{})
	job, body := notificationJob(2, 5)
	e.idem.cached[job.IdempotencyKey] = json.RawMessage(`{"message_id":"m-1"}`)

	e.harness.Handle(context.Background(), job, body, recordOps(t, "ack"))

	if called {
		t.Error("processor must not run for a duplicate")
	}
	if e.limiter.acquired != 0 {
		t.Error("duplicate must not consume a rate limit token")
	}
}

func TestHandle_DerivedKeyVisibleToProcessor(t *testing.T) {
	var seen string
	r := NewRegistry()
	r.Register(domain.KindNotification, ProcessorFunc(func(_ context.Context, job *domain.Job, _ any) (json.RawMessage, error) {
		seen = job.IdempotencyKey
		return json.RawMessage(`{}`), nil
	}))

	e := newEnv(t, r, breaker.Config{})
	job, body := notificationJob(1, 5)
	job.IdempotencyKey = ""

	e.harness.Handle(context.Background(), job, body, recordOps(t, "ack"))

	// Processor передаёт ключ внешнему провайдеру: производный ключ
	// обязан быть виден в job, и store пишет результат под него же.
	if seen == "" {
		t.Fatal("processor must observe the derived idempotency key")
	}
	if _, ok := e.idem.stored[seen]; !ok {
		t.Errorf("result stored under a different key than the processor saw (%q)", seen)
	}
}

func TestHandle_RateLimitedPostponesWithoutAttempt(t *testing.T) {
	called := false
	r := NewRegistry()
	r.Register(domain.KindNotification, ProcessorFunc(func(context.Context, *domain.Job, any) (json.RawMessage, error) {
		called = true
		return json.RawMessage(`{}`), nil
	}))

	e := newEnv(t, r, breaker.Config{})
	e.limiter.admit = false
	e.limiter.wait = 7 * time.Second

	job, body := notificationJob(1, 5)
	ops := &fakeOps{}
	e.harness.Handle(context.Background(), job, body, ops)

	if ops.terminal(t) != "postpone" {
		t.Fatal("refused job must be postponed, not retried")
	}
	if ops.after != 7*time.Second {
		t.Errorf("postpone delay = %v, want 7s", ops.after)
	}
	if called {
		t.Error("processor must not run when rate limited")
	}
	if e.limiter.released != 0 {
		t.Error("release must not be called for a refused acquire")
	}
}

func TestHandle_RetryableFailureSchedulesBackoff(t *testing.T) {
	e := newEnv(t, staticProcessor("", errors.New("stripe: 503")), breaker.Config{FailureThreshold: 100})
	job, body := notificationJob(2, 5)

	ops := &fakeOps{}
	e.harness.Handle(context.Background(), job, body, ops)

	if ops.terminal(t) != "retry" {
		t.Fatal("retryable failure must schedule a retry")
	}
	if ops.after <= 0 {
		t.Errorf("retry delay = %v, want > 0", ops.after)
	}
	if e.limiter.released != 1 {
		t.Errorf("released = %d, want 1", e.limiter.released)
	}
	if len(e.dlq.entries) != 0 {
		t.Error("job with remaining attempts must not reach DLQ")
	}
}

func TestHandle_NonRetryableGoesStraightToDLQ(t *testing.T) {
	cause := domain.NonRetryable(errors.New("card declined"))
	e := newEnv(t, staticProcessor("", cause), breaker.Config{FailureThreshold: 100})
	job, body := notificationJob(1, 5)

	e.harness.Handle(context.Background(), job, body, recordOps(t, "discard"))

	if len(e.dlq.entries) != 1 {
		t.Fatalf("dlq entries = %d, want 1", len(e.dlq.entries))
	}
	if string(e.dlq.entries[0].raw) != string(body) {
		t.Error("DLQ must receive the original body byte for byte")
	}
}

func TestHandle_ExhaustedAttemptsBuryJob(t *testing.T) {
	e := newEnv(t, staticProcessor("", errors.New("timeout")), breaker.Config{FailureThreshold: 100})
	job, body := notificationJob(5, 5)

	e.harness.Handle(context.Background(), job, body, recordOps(t, "discard"))

	if len(e.dlq.entries) != 1 {
		t.Fatalf("dlq entries = %d, want 1", len(e.dlq.entries))
	}
}

func TestHandle_OpenBreakerConsumesAttempt(t *testing.T) {
	e := newEnv(t, staticProcessor("", errors.New("solana: rpc down")), breaker.Config{
		FailureThreshold: 1,
		ResetTimeout:     time.Hour,
	})

	// Первый сбой открывает breaker зависимости.
	job, body := notificationJob(1, 5)
	first := &fakeOps{}
	e.harness.Handle(context.Background(), job, body, first)
	if first.terminal(t) != "retry" {
		t.Fatal("first failure should schedule a retry")
	}

	// Вторая доставка отклоняется без вызова processor'а,
	// но попытка списывается: job переносится через Retry.
	job2, body2 := notificationJob(2, 5)
	second := &fakeOps{}
	e.harness.Handle(context.Background(), job2, body2, second)
	if second.terminal(t) != "retry" {
		t.Fatal("breaker rejection must consume an attempt via retry")
	}
}

func TestHandle_UndecodablePayloadGoesToDLQ(t *testing.T) {
	e := newEnv(t, staticProcessor(`{}`, nil), breaker.Config{})
	job, body := notificationJob(1, 5)
	job.Payload = json.RawMessage(`{"recipient": 42}`)

	e.harness.Handle(context.Background(), job, body, recordOps(t, "discard"))

	if len(e.dlq.entries) != 1 {
		t.Fatalf("dlq entries = %d, want 1", len(e.dlq.entries))
	}
}

func TestHandle_UnknownProcessorGoesToDLQ(t *testing.T) {
	e := newEnv(t, NewRegistry(), breaker.Config{})
	job, body := notificationJob(1, 5)

	e.harness.Handle(context.Background(), job, body, recordOps(t, "discard"))

	if len(e.dlq.entries) != 1 {
		t.Fatalf("dlq entries = %d, want 1", len(e.dlq.entries))
	}
	if !errors.Is(e.dlq.entries[0].cause, ErrUnknownProcessor) {
		t.Errorf("cause = %v, want ErrUnknownProcessor", e.dlq.entries[0].cause)
	}
}

func TestHandle_DLQFailureRequeuesDelivery(t *testing.T) {
	e := newEnv(t, staticProcessor("", domain.NonRetryable(errors.New("bad request"))), breaker.Config{FailureThreshold: 100})
	e.dlq.err = errors.New("postgres down")
	job, body := notificationJob(1, 5)

	e.harness.Handle(context.Background(), job, body, recordOps(t, "requeue"))
}

func TestHandle_IdempotencyOutagePostpones(t *testing.T) {
	e := newEnv(t, staticProcessor(`{}`, nil), breaker.Config{})
	e.idem.checkErr = errors.New("connection refused")
	job, body := notificationJob(1, 5)

	ops := &fakeOps{}
	e.harness.Handle(context.Background(), job, body, ops)

	if ops.terminal(t) != "postpone" {
		t.Fatal("infra outage must postpone without consuming an attempt")
	}
}

func TestHandle_StoreFailureStillAcks(t *testing.T) {
	e := newEnv(t, staticProcessor(`{"ok":true}`, nil), breaker.Config{})
	e.idem.storeErr = errors.New("connection reset")
	job, body := notificationJob(1, 5)

	// Side effect выполнен: повторное выполнение хуже потерянной записи.
	e.harness.Handle(context.Background(), job, body, recordOps(t, "ack"))
}

func TestHandle_CancelledDeliveryRequeuesWithoutAttempt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := NewRegistry()
	r.Register(domain.KindNotification, ProcessorFunc(func(ctx context.Context, _ *domain.Job, _ any) (json.RawMessage, error) {
		cancel()
		<-ctx.Done()
		return nil, ctx.Err()
	}))

	e := newEnv(t, r, breaker.Config{FailureThreshold: 100})

	// Последняя попытка: списание здесь означало бы DLQ.
	job, body := notificationJob(5, 5)
	e.harness.Handle(ctx, job, body, recordOps(t, "requeue"))

	if len(e.dlq.entries) != 0 {
		t.Error("abandoned delivery must not be dead-lettered")
	}
}

func TestStop_RefusesNewDeliveries(t *testing.T) {
	e := newEnv(t, staticProcessor(`{}`, nil), breaker.Config{})
	e.harness.Stop(time.Second)

	job, body := notificationJob(1, 5)
	e.harness.Handle(context.Background(), job, body, recordOps(t, "requeue"))
}

func TestStop_WaitsForInFlightJobs(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})

	r := NewRegistry()
	r.Register(domain.KindNotification, ProcessorFunc(func(context.Context, *domain.Job, any) (json.RawMessage, error) {
		close(started)
		<-release
		return json.RawMessage(`{}`), nil
	}))

	e := newEnv(t, r, breaker.Config{})
	job, body := notificationJob(1, 5)

	done := make(chan struct{})
	go func() {
		defer close(done)
		e.harness.Handle(context.Background(), job, body, &fakeOps{})
	}()

	<-started
	go func() {
		time.Sleep(10 * time.Millisecond)
		close(release)
	}()

	e.harness.Stop(5 * time.Second)

	select {
	case <-done:
	default:
		t.Error("Stop returned before the in-flight job finished")
	}
}

func TestHandle_ConcurrentDeliveriesShareLimiter(t *testing.T) {
	const n = 16
	e := newEnv(t, staticProcessor(`{}`, nil), breaker.Config{})

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			job, body := notificationJob(1, 5)
			job.IdempotencyKey = fmt.Sprintf("notification.send:%032d", i)
			e.harness.Handle(context.Background(), job, body, &fakeOps{})
		}(i)
	}
	wg.Wait()

	if e.limiter.acquired != n || e.limiter.released != n {
		t.Errorf("acquired/released = %d/%d, want %d/%d",
			e.limiter.acquired, e.limiter.released, n, n)
	}
}
