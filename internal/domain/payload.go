package domain

import (
	"encoding/json"
	"fmt"
)

// JobKind — тип job, определяет processor и форму payload.
type JobKind string

// Известные типы jobs.
const (
	KindPaymentCapture JobKind = "payment.capture"
	KindPaymentRefund  JobKind = "payment.refund"
	KindTicketMint     JobKind = "ticket.mint"
	KindNotification   JobKind = "notification.send"
)

// Valid возвращает true для известного типа job.
func (k JobKind) Valid() bool {
	switch k {
	case KindPaymentCapture, KindPaymentRefund, KindTicketMint, KindNotification:
		return true
	default:
		return false
	}
}

// Service возвращает имя внешнего сервиса, который вызывает processor
// данного типа. Используется как ключ rate limiter и circuit breaker.
func (k JobKind) Service() string {
	switch k {
	case KindPaymentCapture, KindPaymentRefund:
		return "stripe"
	case KindTicketMint:
		return "solana"
	case KindNotification:
		return "mailer"
	default:
		return string(k)
	}
}

// PaymentCapturePayload — захват оплаты за заказ билетов.
type PaymentCapturePayload struct {
	OrderID         string `json:"order_id"`
	EventID         string `json:"event_id"`
	AmountCents     int64  `json:"amount_cents"`
	Currency        string `json:"currency"`
	PaymentMethodID string `json:"payment_method_id"`
	Quantity        int    `json:"quantity"`
}

// PaymentRefundPayload — возврат средств по ранее захваченной оплате.
type PaymentRefundPayload struct {
	OrderID     string `json:"order_id"`
	ChargeID    string `json:"charge_id"`
	AmountCents int64  `json:"amount_cents"`
	Reason      string `json:"reason,omitempty"`
}

// TicketMintPayload — минт NFT-билета после успешной оплаты.
type TicketMintPayload struct {
	OrderID     string `json:"order_id"`
	EventID     string `json:"event_id"`
	TicketID    string `json:"ticket_id"`
	OwnerWallet string `json:"owner_wallet"`
	MetadataURI string `json:"metadata_uri"`
}

// NotificationPayload — отправка уведомления пользователю.
type NotificationPayload struct {
	Recipient string            `json:"recipient"`
	Template  string            `json:"template"`
	Variables map[string]string `json:"variables,omitempty"`
}

// DecodePayload декодирует сырой payload job в типизированную структуру
// согласно Kind. Вызывается один раз на границе harness — дальше по ядру
// нетипизированный JSON не распространяется.
func DecodePayload(job *Job) (any, error) {
	var target any
	switch job.Kind {
	case KindPaymentCapture:
		target = &PaymentCapturePayload{}
	case KindPaymentRefund:
		target = &PaymentRefundPayload{}
	case KindTicketMint:
		target = &TicketMintPayload{}
	case KindNotification:
		target = &NotificationPayload{}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownJobKind, job.Kind)
	}

	if err := json.Unmarshal(job.Payload, target); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", job.Kind, err)
	}
	return target, nil
}
