package idempotency

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Bastion/internal/domain"
)

func TestKey_Deterministic(t *testing.T) {
	k1 := Key(domain.KindPaymentCapture, "tenant-1", "order-42")
	k2 := Key(domain.KindPaymentCapture, "tenant-1", "order-42")

	if k1 != k2 {
		t.Fatalf("same inputs must produce same key: %s != %s", k1, k2)
	}
	if !ValidKey(k1) {
		t.Errorf("key %q should be valid", k1)
	}
}

func TestKey_DiffersByInput(t *testing.T) {
	base := Key(domain.KindPaymentCapture, "tenant-1", "order-42")

	cases := map[string]string{
		"kind":     Key(domain.KindPaymentRefund, "tenant-1", "order-42"),
		"tenant":   Key(domain.KindPaymentCapture, "tenant-2", "order-42"),
		"business": Key(domain.KindPaymentCapture, "tenant-1", "order-43"),
	}
	for name, k := range cases {
		if k == base {
			t.Errorf("key must differ by %s", name)
		}
	}
}

func TestKey_SeparatorCollisions(t *testing.T) {
	// ("ab", "c") и ("a", "bc") не должны давать один ключ.
	k1 := Key(domain.KindNotification, "t", "ab", "c")
	k2 := Key(domain.KindNotification, "t", "a", "bc")
	if k1 == k2 {
		t.Error("concatenation of business keys must not collide")
	}
}

func TestKeyForJob_UsesBusinessIdentifiers(t *testing.T) {
	job := &domain.Job{
		ID:       uuid.New(),
		Kind:     domain.KindPaymentCapture,
		TenantID: "tenant-1",
	}
	payload := &domain.PaymentCapturePayload{OrderID: "order-42"}

	k1 := KeyForJob(job, payload)

	// Другой job с теми же бизнес-полями — тот же ключ: повтор
	// логической операции коллизирует независимо от ID доставки.
	job2 := &domain.Job{
		ID:       uuid.New(),
		Kind:     domain.KindPaymentCapture,
		TenantID: "tenant-1",
	}
	k2 := KeyForJob(job2, &domain.PaymentCapturePayload{OrderID: "order-42"})

	if k1 != k2 {
		t.Fatalf("retries of the same logical operation must collide: %s != %s", k1, k2)
	}
}

func TestTTLFor_Classes(t *testing.T) {
	if ttl := TTLFor(domain.KindTicketMint); ttl < 300*24*time.Hour {
		t.Errorf("permanent-effect operations need a long TTL, got %v", ttl)
	}
	if ttl := TTLFor(domain.KindNotification); ttl > 7*24*time.Hour {
		t.Errorf("ephemeral operations need a short TTL, got %v", ttl)
	}
}

func TestValidKey(t *testing.T) {
	if ValidKey("garbage") {
		t.Error("key without separator should be invalid")
	}
	if ValidKey(":abcd") {
		t.Error("key without kind should be invalid")
	}
}
