package api

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Bastion/internal/domain"
)

// DLQ DTOs

// DeadLetterResponse — запись DLQ в ответе API.
type DeadLetterResponse struct {
	ID       uuid.UUID       `json:"id"`
	Queue    domain.Queue    `json:"queue"`
	JobKind  domain.JobKind  `json:"job_kind"`
	JobData  json.RawMessage `json:"job_data"`
	Error    string          `json:"error"`
	Attempts int             `json:"attempts"`
	TenantID string          `json:"tenant_id"`
	MovedAt  time.Time       `json:"moved_at"`
}

// DeadLetterFromDomain конвертирует domain.DeadLetterEntry в DeadLetterResponse.
func DeadLetterFromDomain(e domain.DeadLetterEntry) DeadLetterResponse {
	return DeadLetterResponse{
		ID:       e.ID,
		Queue:    e.Queue,
		JobKind:  e.JobKind,
		JobData:  e.JobData,
		Error:    e.Error,
		Attempts: e.Attempts,
		TenantID: e.TenantID,
		MovedAt:  e.MovedAt,
	}
}

// BulkRequest — запрос bulk-операции над записями DLQ.
type BulkRequest struct {
	IDs []uuid.UUID `json:"ids"`
}

// Limiter DTOs

// EmergencyStopRequest — запрос аварийной остановки limiter'а.
type EmergencyStopRequest struct {
	// Confirm — подтверждение: остановка замораживает обработку
	// всех jobs сервиса для tenant'а.
	Confirm bool `json:"confirm"`
}
