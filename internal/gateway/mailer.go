package gateway

import (
	"context"
	"net/http"
)

// MailerClient — клиент почтового шлюза.
type MailerClient struct {
	c *client
}

// NewMailerClient создаёт MailerClient.
func NewMailerClient(cfg ClientConfig) (*MailerClient, error) {
	c, err := newClient(cfg)
	if err != nil {
		return nil, err
	}
	return &MailerClient{c: c}, nil
}

// Send отправляет шаблонное уведомление. Возвращает ID сообщения шлюза.
func (m *MailerClient) Send(ctx context.Context, recipient, template string, variables map[string]string) (string, error) {
	body := map[string]any{
		"recipient": recipient,
		"template":  template,
		"variables": variables,
	}
	var out struct {
		MessageID string `json:"message_id"`
	}
	if err := m.c.doJSON(ctx, http.MethodPost, "/v1/messages", body, &out); err != nil {
		return "", err
	}
	return out.MessageID, nil
}
