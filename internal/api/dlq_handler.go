package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/shaiso/Bastion/internal/domain"
)

const defaultListLimit = 100

// ListDeadLetters возвращает записи DLQ, опционально по очереди.
// GET /api/v1/dlq?queue=jobs.payments&limit=50
func (h *Handler) ListDeadLetters(w http.ResponseWriter, r *http.Request) {
	queue := domain.Queue(r.URL.Query().Get("queue"))

	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			BadRequest(w, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	entries, err := h.dlq.List(r.Context(), queue, limit)
	if HandleRepoError(w, h.logger, err, "dead letters not found") {
		return
	}

	out := make([]DeadLetterResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, DeadLetterFromDomain(e))
	}
	List(w, out, len(out))
}

// DeadLetterStats возвращает количество записей по очередям и типам jobs.
// GET /api/v1/dlq/stats
func (h *Handler) DeadLetterStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.dlq.Stats(r.Context())
	if HandleRepoError(w, h.logger, err, "stats unavailable") {
		return
	}
	Success(w, stats)
}

// RetryDeadLetter перезапускает одну запись DLQ.
// POST /api/v1/dlq/{id}/retry
func (h *Handler) RetryDeadLetter(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid entry id")
		return
	}

	if err := h.dlq.Retry(r.Context(), id); HandleRepoError(w, h.logger, err, "dead letter entry not found") {
		return
	}
	NoContent(w)
}

// BulkRetryDeadLetters перезапускает набор записей DLQ.
// POST /api/v1/dlq/retry
func (h *Handler) BulkRetryDeadLetters(w http.ResponseWriter, r *http.Request) {
	var req BulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}
	if len(req.IDs) == 0 {
		BadRequest(w, "ids are required")
		return
	}

	Success(w, h.dlq.BulkRetry(r.Context(), req.IDs))
}

// BulkDeleteDeadLetters удаляет набор записей DLQ без перезапуска.
// POST /api/v1/dlq/delete
func (h *Handler) BulkDeleteDeadLetters(w http.ResponseWriter, r *http.Request) {
	var req BulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}
	if len(req.IDs) == 0 {
		BadRequest(w, "ids are required")
		return
	}

	Success(w, h.dlq.BulkDelete(r.Context(), req.IDs))
}
