package processors

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shaiso/Bastion/internal/domain"
)

// NotificationProcessor — отправка уведомления пользователю.
// Одношаговая операция без компенсации: отправленное письмо не отозвать.
type NotificationProcessor struct {
	notifier Notifier
}

// NewNotificationProcessor создаёт NotificationProcessor.
func NewNotificationProcessor(notifier Notifier) *NotificationProcessor {
	return &NotificationProcessor{notifier: notifier}
}

// NotificationOutcome — результат отправки.
type NotificationOutcome struct {
	MessageID string `json:"message_id"`
}

// Process отправляет уведомление через почтовый шлюз.
func (p *NotificationProcessor) Process(ctx context.Context, _ *domain.Job, payload any) (json.RawMessage, error) {
	note, err := payloadAs[*domain.NotificationPayload](payload)
	if err != nil {
		return nil, err
	}

	messageID, err := p.notifier.Send(ctx, note.Recipient, note.Template, note.Variables)
	if err != nil {
		return nil, fmt.Errorf("send notification to %s: %w", note.Recipient, err)
	}

	return json.Marshal(NotificationOutcome{MessageID: messageID})
}
