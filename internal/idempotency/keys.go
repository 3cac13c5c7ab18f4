package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/shaiso/Bastion/internal/domain"
)

// Key строит детерминированный idempotency-ключ операции.
//
// Ключ — стабильный hash от (тип операции, tenant, бизнес-идентификаторы).
// Время в ключ не входит: повторы той же логической операции обязаны
// коллизировать на одном ключе.
func Key(kind domain.JobKind, tenantID string, businessKeys ...string) string {
	h := sha256.New()
	h.Write([]byte(string(kind)))
	h.Write([]byte{0})
	h.Write([]byte(tenantID))
	for _, k := range businessKeys {
		h.Write([]byte{0})
		h.Write([]byte(k))
	}
	return string(kind) + ":" + hex.EncodeToString(h.Sum(nil))[:32]
}

// KeyForJob строит ключ для job из его бизнес-полей.
// Используется harness'ом, когда producer не заполнил IdempotencyKey.
func KeyForJob(job *domain.Job, payload any) string {
	switch p := payload.(type) {
	case *domain.PaymentCapturePayload:
		return Key(job.Kind, job.TenantID, p.OrderID)
	case *domain.PaymentRefundPayload:
		return Key(job.Kind, job.TenantID, p.OrderID, p.ChargeID)
	case *domain.TicketMintPayload:
		return Key(job.Kind, job.TenantID, p.TicketID)
	case *domain.NotificationPayload:
		return Key(job.Kind, job.TenantID, p.Recipient, p.Template)
	default:
		// Нет бизнес-ключей — fallback на ID job.
		return Key(job.Kind, job.TenantID, job.ID.String())
	}
}

// ValidKey проверяет формат ключа: "kind:hex".
func ValidKey(key string) bool {
	kind, digest, ok := strings.Cut(key, ":")
	return ok && kind != "" && len(digest) == 32
}
