package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shaiso/Bastion/internal/domain"
)

func TestStripeClient_ChargeSendsAuthAndBody(t *testing.T) {
	var gotAuth string
	var gotReq ChargeRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotReq)
		json.NewEncoder(w).Encode(ChargeResult{ChargeID: "ch-1", AmountCents: gotReq.AmountCents, Status: "captured"})
	}))
	defer server.Close()

	client, err := NewStripeClient(ClientConfig{BaseURL: server.URL, APIKey: "sk-test"})
	if err != nil {
		t.Fatalf("NewStripeClient: %v", err)
	}

	res, err := client.Charge(context.Background(), ChargeRequest{
		OrderID:        "ord-1",
		AmountCents:    5000,
		Currency:       "usd",
		IdempotencyKey: "payment.capture:abc",
	})
	if err != nil {
		t.Fatalf("Charge: %v", err)
	}

	if gotAuth != "Bearer sk-test" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotReq.IdempotencyKey != "payment.capture:abc" {
		t.Errorf("idempotency key not forwarded: %+v", gotReq)
	}
	if res.ChargeID != "ch-1" || res.AmountCents != 5000 {
		t.Errorf("result = %+v", res)
	}
}

func TestClient_ClientErrorIsNonRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"card declined"}`, http.StatusPaymentRequired)
	}))
	defer server.Close()

	client, _ := NewStripeClient(ClientConfig{BaseURL: server.URL})
	_, err := client.Charge(context.Background(), ChargeRequest{})

	if !errors.Is(err, ErrUnexpectedStatus) {
		t.Fatalf("err = %v, want ErrUnexpectedStatus", err)
	}
	if !errors.Is(err, domain.ErrNonRetryable) {
		t.Fatalf("4xx must be non-retryable, got %v", err)
	}
}

func TestClient_ServerErrorIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer server.Close()

	client, _ := NewSolanaClient(ClientConfig{BaseURL: server.URL})
	_, err := client.Mint(context.Background(), MintRequest{TicketID: "tkt-1"})

	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, domain.ErrNonRetryable) {
		t.Fatalf("5xx must stay retryable, got %v", err)
	}
}

func TestClient_RateLimitStatusIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client, _ := NewMailerClient(ClientConfig{BaseURL: server.URL})
	_, err := client.Send(context.Background(), "fan@example.com", "order-confirmed", nil)

	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, domain.ErrNonRetryable) {
		t.Fatalf("429 must stay retryable, got %v", err)
	}
}

func TestNewClient_RequiresBaseURL(t *testing.T) {
	if _, err := NewInventoryClient(ClientConfig{}); !errors.Is(err, ErrMissingBaseURL) {
		t.Fatalf("err = %v, want ErrMissingBaseURL", err)
	}
}
