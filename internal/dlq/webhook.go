package dlq

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shaiso/Bastion/internal/domain"
)

// WebhookAlerter отправляет алерт DLQ в операторский webhook
// (PagerDuty-совместимый приёмник, Slack incoming webhook и т.п.).
type WebhookAlerter struct {
	url    string
	client *http.Client
}

// NewWebhookAlerter создаёт WebhookAlerter.
func NewWebhookAlerter(url string) *WebhookAlerter {
	return &WebhookAlerter{
		url:    url,
		client: &http.Client{Timeout: alertTimeout},
	}
}

// Alert отправляет уведомление о job в критической DLQ.
func (w *WebhookAlerter) Alert(ctx context.Context, entry *domain.DeadLetterEntry) error {
	payload, err := json.Marshal(map[string]any{
		"severity":  "critical",
		"summary":   fmt.Sprintf("job %s dead-lettered in %s", entry.JobKind, entry.Queue),
		"entry_id":  entry.ID,
		"queue":     entry.Queue,
		"job_kind":  entry.JobKind,
		"tenant_id": entry.TenantID,
		"error":     entry.Error,
		"attempts":  entry.Attempts,
		"moved_at":  entry.MovedAt.Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build alert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("post alert: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("alert webhook returned %d", resp.StatusCode)
	}
	return nil
}
