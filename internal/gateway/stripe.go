package gateway

import (
	"context"
	"net/http"
)

// ChargeRequest — запрос захвата оплаты.
type ChargeRequest struct {
	OrderID         string `json:"order_id"`
	AmountCents     int64  `json:"amount_cents"`
	Currency        string `json:"currency"`
	PaymentMethodID string `json:"payment_method_id"`

	// IdempotencyKey передаётся провайдеру: повторный захват с тем же
	// ключом не снимает деньги второй раз.
	IdempotencyKey string `json:"idempotency_key"`
}

// ChargeResult — итог захвата оплаты.
type ChargeResult struct {
	ChargeID    string `json:"charge_id"`
	AmountCents int64  `json:"amount_cents"`
	Status      string `json:"status"`
}

// RefundRequest — запрос возврата средств.
type RefundRequest struct {
	ChargeID       string `json:"charge_id"`
	AmountCents    int64  `json:"amount_cents"`
	Reason         string `json:"reason,omitempty"`
	IdempotencyKey string `json:"idempotency_key"`
}

// RefundResult — итог возврата.
type RefundResult struct {
	RefundID    string `json:"refund_id"`
	AmountCents int64  `json:"amount_cents"`
	Status      string `json:"status"`
}

// StripeClient — клиент платёжного провайдера.
type StripeClient struct {
	c *client
}

// NewStripeClient создаёт StripeClient.
func NewStripeClient(cfg ClientConfig) (*StripeClient, error) {
	c, err := newClient(cfg)
	if err != nil {
		return nil, err
	}
	return &StripeClient{c: c}, nil
}

// Charge захватывает оплату заказа.
func (s *StripeClient) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	var out ChargeResult
	if err := s.c.doJSON(ctx, http.MethodPost, "/v1/charges", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Refund возвращает средства по ранее захваченной оплате.
func (s *StripeClient) Refund(ctx context.Context, req RefundRequest) (*RefundResult, error) {
	var out RefundResult
	if err := s.c.doJSON(ctx, http.MethodPost, "/v1/refunds", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
